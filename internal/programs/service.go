package programs

import (
	"context"

	"github.com/google/uuid"

	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
)

// Duplicator copies a program's template rows into enrollment-scoped
// rows the client can track progress against.
type Duplicator interface {
	CopyTemplate(ctx context.Context, activityID, enrollmentID uuid.UUID) (int, error)
}

type duplicator struct {
	repo Repository
}

// NewDuplicator wires a program duplicator with the provided repository.
func NewDuplicator(repo Repository) (Duplicator, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "program repository required")
	}
	return &duplicator{repo: repo}, nil
}

// CopyTemplate duplicates the activity's template rows for the
// enrollment. A second call for the same enrollment is a no-op, so
// webhook redeliveries cannot double the program.
func (d *duplicator) CopyTemplate(ctx context.Context, activityID, enrollmentID uuid.UUID) (int, error) {
	if activityID == uuid.Nil || enrollmentID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "activity id and enrollment id are required")
	}

	existing, err := d.repo.CountForEnrollment(ctx, enrollmentID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking existing program copy")
	}
	if existing > 0 {
		return 0, nil
	}

	template, err := d.repo.ListTemplate(ctx, activityID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading program template")
	}
	if len(template) == 0 {
		return 0, nil
	}

	copies := make([]models.ProgramDetail, 0, len(template))
	enrollmentRef := enrollmentID
	for _, row := range template {
		copies = append(copies, models.ProgramDetail{
			ID:           uuid.New(),
			ActivityID:   row.ActivityID,
			EnrollmentID: &enrollmentRef,
			DayNumber:    row.DayNumber,
			Title:        row.Title,
			Content:      row.Content,
		})
	}

	if err := d.repo.CreateBatch(ctx, copies); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "copying program template")
	}
	return len(copies), nil
}
