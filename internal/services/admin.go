package services

import (
	"context"
	"time"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// AdminService owns the administrator's view of key-access requests.
type AdminService struct {
	store store.Store
}

func NewAdminService(s store.Store) *AdminService {
	return &AdminService{store: s}
}

// ListKeyRequests returns every principal with a non-none request state.
func (s *AdminService) ListKeyRequests(ctx context.Context) ([]*model.Principal, error) {
	return s.store.Principals().ListKeyRequests(ctx)
}

// ProcessKeyRequest approves or denies a pending request. Only pending
// requests can be processed; the transition is monotonic.
func (s *AdminService) ProcessKeyRequest(ctx context.Context, userID, action string) error {
	var status string
	switch action {
	case "approve":
		status = model.KeyRequestApproved
	case "deny":
		status = model.KeyRequestDenied
	default:
		return model.ErrValidation
	}

	p, err := s.store.Principals().Get(ctx, userID)
	if err != nil {
		return err
	}
	if p.KeyRequest.Status != model.KeyRequestPending {
		return model.ErrConflict
	}
	now := time.Now().UTC()
	return s.store.Principals().SetKeyRequest(ctx, userID, status, nil, &now)
}
