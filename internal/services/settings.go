package services

import (
	"context"
	"time"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
	"github.com/insightlm/orchestrator/internal/vault"
)

// KeySettings is the settings-page mutation payload. Nil fields are left
// unchanged; empty strings clear the stored value.
type KeySettings struct {
	GeminiKey    *string `json:"geminiApiKey,omitempty"`
	GroqKey      *string `json:"groqApiKey,omitempty"`
	HostOverride *string `json:"ollamaHost,omitempty"`
}

// KeyStatus reports presence only; key material never leaves the vault.
type KeyStatus struct {
	GeminiKeySet     bool   `json:"geminiKeySet"`
	GroqKeySet       bool   `json:"groqKeySet"`
	HostOverride     string `json:"ollamaHost,omitempty"`
	KeyRequestStatus string `json:"keyRequestStatus"`
}

// SettingsService owns secret storage and the key-access request lifecycle.
type SettingsService struct {
	store store.Store
	vault *vault.Adapter
}

func NewSettingsService(s store.Store, v *vault.Adapter) *SettingsService {
	return &SettingsService{store: s, vault: v}
}

// SaveKeys encrypts and stores the submitted provider keys.
func (s *SettingsService) SaveKeys(ctx context.Context, userID string, in KeySettings) error {
	var upd store.SecretsUpdate

	seal := func(plain *string) (*string, error) {
		if plain == nil {
			return nil, nil
		}
		if *plain == "" {
			empty := ""
			return &empty, nil
		}
		cipher, err := s.vault.Seal(*plain)
		if err != nil {
			return nil, err
		}
		return &cipher, nil
	}

	var err error
	if upd.GeminiKeyCipher, err = seal(in.GeminiKey); err != nil {
		return err
	}
	if upd.GroqKeyCipher, err = seal(in.GroqKey); err != nil {
		return err
	}
	upd.HostOverride = in.HostOverride

	return s.store.Principals().UpdateSecrets(ctx, userID, upd)
}

// KeyStatus reports which secrets are stored for the principal.
func (s *SettingsService) KeyStatus(ctx context.Context, p *model.Principal) (*KeyStatus, error) {
	sec, err := s.store.Principals().GetSecrets(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return &KeyStatus{
		GeminiKeySet:     sec.GeminiKeyCipher != "",
		GroqKeySet:       sec.GroqKeyCipher != "",
		HostOverride:     sec.HostOverride,
		KeyRequestStatus: p.KeyRequest.Status,
	}, nil
}

// RequestKeyAccess moves the principal's key request to pending. Already
// processed requests are not reopened.
func (s *SettingsService) RequestKeyAccess(ctx context.Context, p *model.Principal) error {
	switch p.KeyRequest.Status {
	case model.KeyRequestPending, model.KeyRequestApproved:
		return model.ErrConflict
	}
	now := time.Now().UTC()
	return s.store.Principals().SetKeyRequest(ctx, p.UserID, model.KeyRequestPending, &now, nil)
}
