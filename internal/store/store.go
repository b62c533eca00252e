package store

import (
	"context"
	"time"

	"github.com/insightlm/orchestrator/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Principals() Principals
	Sessions() Sessions
}

// SecretsUpdate carries settings-page mutations. Nil fields are left
// untouched; empty strings clear the stored value.
type SecretsUpdate struct {
	GeminiKeyCipher *string
	GroqKeyCipher   *string
	HostOverride    *string
}

type Principals interface {
	Create(ctx context.Context, p *model.Principal) (*model.Principal, error)
	Get(ctx context.Context, userID string) (*model.Principal, error)
	Delete(ctx context.Context, userID string) error

	// GetSecrets returns the at-rest secret record for a principal.
	GetSecrets(ctx context.Context, userID string) (*model.StoredSecrets, error)
	UpdateSecrets(ctx context.Context, userID string, upd SecretsUpdate) error

	// Key-access request lifecycle.
	SetKeyRequest(ctx context.Context, userID, status string, requestedAt, processedAt *time.Time) error
	ListKeyRequests(ctx context.Context) ([]*model.Principal, error)
}

type Sessions interface {
	// Upsert replaces the message list of (userID, sessionID), creating the
	// session when absent.
	Upsert(ctx context.Context, s *model.ChatSession) (*model.ChatSession, error)
	List(ctx context.Context, userID string) ([]*model.ChatSession, error)
	Get(ctx context.Context, userID, sessionID string) (*model.ChatSession, error)
	// Delete removes the session if owned by userID; model.ErrNotFound
	// otherwise.
	Delete(ctx context.Context, userID, sessionID string) error
}

// HealthPinger is implemented by store adapters that support liveness pings.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
