package services

import (
	"context"
	"strings"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// UserService owns principal lifecycle use cases.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService {
	return &UserService{store: s}
}

// Create registers a principal. The display name defaults to the user id.
func (s *UserService) Create(ctx context.Context, userID, displayName string) (*model.Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, model.ErrValidation
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = userID
	}
	p := &model.Principal{UserID: userID, DisplayName: displayName, Role: model.RoleUser}
	return s.store.Principals().Create(ctx, p)
}

// Get returns the stored principal.
func (s *UserService) Get(ctx context.Context, userID string) (*model.Principal, error) {
	return s.store.Principals().Get(ctx, userID)
}

// Delete destroys the principal and its sessions. Uploaded files stay on
// disk; the tree is keyed by display name, not user id.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	return s.store.Principals().Delete(ctx, userID)
}
