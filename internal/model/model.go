package model

import "time"

// Role of a principal.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Key-access request states. Transitions are monotonic within a lifecycle:
// none -> pending -> approved|denied.
const (
	KeyRequestNone     = "none"
	KeyRequestPending  = "pending"
	KeyRequestApproved = "approved"
	KeyRequestDenied   = "denied"
)

// Principal is an authenticated caller.
type Principal struct {
	UserID       string     `json:"userId"`
	DisplayName  string     `json:"displayName"`
	Role         string     `json:"role"`
	HostOverride string     `json:"hostOverride,omitempty"`
	KeyRequest   KeyRequest `json:"keyRequest"`
	CreationTime time.Time  `json:"creationTime"`
}

// KeyRequest tracks a principal's request to use the administrator's
// process-wide provider keys.
type KeyRequest struct {
	Status      string     `json:"status"`
	RequestedAt *time.Time `json:"requestedAt,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// StoredSecrets holds the at-rest secret material for a principal. Key fields
// are AEAD ciphertexts (base64); they never leave the vault in raw form.
type StoredSecrets struct {
	UserID          string
	GeminiKeyCipher string
	GroqKeyCipher   string
	HostOverride    string
}

// Credentials is the per-request active credential set. Absent keys are empty
// strings; the set is derived per request and never persisted.
type Credentials struct {
	GeminiKey    string
	GroqKey      string
	HostOverride string
	// AdminOwned is true when the set came from process-wide configuration
	// via an approved key-access request.
	AdminOwned bool
}

// HasGemini reports whether a usable primary-cloud key is present.
func (c Credentials) HasGemini() bool { return c.GeminiKey != "" }

// HasGroq reports whether a usable secondary-cloud key is present.
func (c Credentials) HasGroq() bool { return c.GroqKey != "" }

// ChatMessage is a single turn in a session.
type ChatMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	// Model-turn metadata, absent on user turns.
	References    []Reference `json:"references,omitempty"`
	Thinking      string      `json:"thinking,omitempty"`
	Provider      string      `json:"provider,omitempty"`
	Model         string      `json:"model,omitempty"`
	ContextSource string      `json:"contextSource,omitempty"`
}

// Reference is a retrieval citation attached to a model turn.
type Reference struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// ChatSession is an owned, ordered message log.
type ChatSession struct {
	SessionID string        `json:"sessionId"`
	UserID    string        `json:"userId"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// SessionSummary is the list-view projection of a session.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
}
