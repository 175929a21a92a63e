package ledger

import (
	"context"
	"strings"

	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
)

// LookupKeys carries the correlation keys a gateway payment exposes, in
// declining order of reliability.
type LookupKeys struct {
	PreferenceID      string
	ExternalReference string
	GatewayPaymentID  string
}

// Resolver locates the ledger record a payment belongs to.
type Resolver interface {
	Resolve(ctx context.Context, keys LookupKeys) (*models.LedgerRecord, error)
}

type resolver struct {
	repo Repository
}

// NewResolver wires a resolver over the ledger repository.
func NewResolver(repo Repository) (Resolver, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &resolver{repo: repo}, nil
}

// Resolve tries each key in order: the gateway preference id, then the
// external reference, then a previously recorded gateway payment id.
// A nil record with nil error means no key matched.
func (r *resolver) Resolve(ctx context.Context, keys LookupKeys) (*models.LedgerRecord, error) {
	if key := strings.TrimSpace(keys.PreferenceID); key != "" {
		record, err := r.repo.FindByPreferenceID(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}

	if key := strings.TrimSpace(keys.ExternalReference); key != "" {
		record, err := r.repo.FindByExternalReference(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}

	if key := strings.TrimSpace(keys.GatewayPaymentID); key != "" {
		record, err := r.repo.FindByGatewayPaymentID(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}

	return nil, nil
}
