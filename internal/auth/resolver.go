package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// Resolver maps a caller identifier to a full principal.
type Resolver struct {
	store       store.Store
	adminUserID string
}

// NewResolver creates a Resolver. adminUserID is the privileged literal that
// bypasses the principal store.
func NewResolver(st store.Store, adminUserID string) *Resolver {
	return &Resolver{store: st, adminUserID: adminUserID}
}

// Resolve returns the principal for id. The admin literal resolves without a
// store lookup; its principal has role admin and no stored secrets.
func (r *Resolver) Resolve(ctx context.Context, id string) (*model.Principal, error) {
	if err := ValidateUserID(id); err != nil {
		return nil, err
	}
	if id == r.adminUserID {
		return &model.Principal{
			UserID:      r.adminUserID,
			DisplayName: "Administrator",
			Role:        model.RoleAdmin,
			KeyRequest:  model.KeyRequest{Status: model.KeyRequestNone},
		}, nil
	}
	p, err := r.store.Principals().Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUnauthenticated
		}
		return nil, err
	}
	return p, nil
}
