// Package vault resolves the per-request active credential set for a
// principal. Ciphertexts never leave this package in raw form and plaintext
// keys are never logged.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// AdminKeys are the process-wide provider keys owned by the administrator.
type AdminKeys struct {
	GeminiKey string
	GroqKey   string
}

// Adapter loads stored secrets and derives the active credential set.
type Adapter struct {
	store store.Store
	key   []byte
	admin AdminKeys
	log   zerolog.Logger
}

func NewAdapter(st store.Store, encryptionKey []byte, admin AdminKeys, log zerolog.Logger) *Adapter {
	return &Adapter{store: st, key: encryptionKey, admin: admin, log: log}
}

// Resolve derives the active credential set for p. An approved key-access
// request yields the administrator's process-wide keys; otherwise the
// principal's own secrets are decrypted. Decryption failures degrade to
// "absent" and never fail the request.
func (a *Adapter) Resolve(ctx context.Context, p *model.Principal) (model.Credentials, error) {
	if p.Role == model.RoleAdmin || p.KeyRequest.Status == model.KeyRequestApproved {
		return model.Credentials{
			GeminiKey:    strings.TrimSpace(a.admin.GeminiKey),
			GroqKey:      strings.TrimSpace(a.admin.GroqKey),
			HostOverride: p.HostOverride,
			AdminOwned:   true,
		}, nil
	}

	sec, err := a.store.Principals().GetSecrets(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
			return model.Credentials{HostOverride: p.HostOverride}, nil
		}
		return model.Credentials{}, err
	}

	creds := model.Credentials{HostOverride: sec.HostOverride}
	if creds.HostOverride == "" {
		creds.HostOverride = p.HostOverride
	}
	creds.GeminiKey = a.decrypt(p.UserID, "gemini", sec.GeminiKeyCipher)
	creds.GroqKey = a.decrypt(p.UserID, "groq", sec.GroqKeyCipher)
	return creds, nil
}

// Seal encrypts a plaintext provider key for storage.
func (a *Adapter) Seal(plaintext string) (string, error) {
	return Seal(a.key, plaintext)
}

// decrypt returns the trimmed plaintext or "" when the field is missing, the
// vault key is unset, or decryption fails.
func (a *Adapter) decrypt(userID, provider, cipher string) string {
	if cipher == "" || len(a.key) == 0 {
		return ""
	}
	plain, err := Open(a.key, cipher)
	if err != nil {
		// Degrade to absent; the error detail never includes key material.
		a.log.Warn().Str("user_id", userID).Str("provider", provider).
			Msg("stored key could not be decrypted; treating as absent")
		return ""
	}
	return strings.TrimSpace(plain)
}
