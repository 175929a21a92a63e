package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entrenaapp/entrena-backend/pkg/enums"
)

// Enrollment grants a client access to a purchased activity. Its lifecycle
// is separate from the ledger record: it exists only once a webhook
// reports at least a pending payment, and is never deleted by the
// settlement pipeline.
type Enrollment struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActivityID uuid.UUID              `gorm:"column:activity_id;type:uuid;not null;index"`
	ClientID   uuid.UUID              `gorm:"column:client_id;type:uuid;not null;index"`
	Status     enums.EnrollmentStatus `gorm:"column:status;type:enrollment_status;not null;default:'pendiente'"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
