package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// previewLength caps the derived session preview before the ellipsis.
const previewLength = 75

// SessionService owns chat-session persistence use cases. A session id is
// meaningful only together with its owning principal; every operation is
// owner-scoped.
type SessionService struct {
	store store.Store
}

func NewSessionService(s store.Store) *SessionService {
	return &SessionService{store: s}
}

// Save upserts the session under (userID, sessionID), replacing the stored
// messages with the filtered projection. An empty projection performs no
// write and returns a fresh session id for the caller to reuse. An empty
// sessionID mints one.
func (s *SessionService) Save(ctx context.Context, userID, sessionID string, messages []model.ChatMessage) (string, int, error) {
	filtered := FilterMessages(messages)
	if len(filtered) == 0 {
		return uuid.New().String(), 0, nil
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	cs := &model.ChatSession{UserID: userID, SessionID: sessionID, Messages: filtered}
	saved, err := s.store.Sessions().Upsert(ctx, cs)
	if err != nil {
		return "", 0, err
	}
	return saved.SessionID, len(saved.Messages), nil
}

// List returns session summaries sorted by updatedAt descending.
func (s *SessionService) List(ctx context.Context, userID string) ([]*model.SessionSummary, error) {
	all, err := s.store.Sessions().List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.SessionSummary, 0, len(all))
	for _, cs := range all {
		out = append(out, &model.SessionSummary{
			SessionID:    cs.SessionID,
			CreatedAt:    cs.CreatedAt,
			UpdatedAt:    cs.UpdatedAt,
			MessageCount: len(cs.Messages),
			Preview:      Preview(cs.Messages),
		})
	}
	return out, nil
}

// Get returns the full session, or model.ErrNotFound when the principal does
// not own sessionID.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	return s.store.Sessions().Get(ctx, userID, sessionID)
}

// Delete removes the session if owned; model.ErrNotFound otherwise.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	return s.store.Sessions().Delete(ctx, userID, sessionID)
}

// FilterMessages keeps turns with a non-empty role, non-empty text, and a
// present timestamp, preserving order.
func FilterMessages(in []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(in))
	for _, m := range in {
		if strings.TrimSpace(m.Role) == "" || strings.TrimSpace(m.Text) == "" || m.Timestamp.IsZero() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Preview derives the list-view preview: the first user turn truncated at 75
// characters, with an ellipsis when truncated.
func Preview(messages []model.ChatMessage) string {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		// Truncate on rune boundaries so multi-byte text stays valid UTF-8.
		if r := []rune(text); len(r) > previewLength {
			return string(r[:previewLength]) + "..."
		}
		return text
	}
	return ""
}
