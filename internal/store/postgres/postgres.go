// Package postgres is the shared-deployment store adapter, backed by the
// pgx stdlib driver. Schema migrations are applied out of band.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// Open opens a PostgreSQL connection and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store over an existing connection.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Principals() store.Principals { return &principals{db: s.db} }
func (s *pgStore) Sessions() store.Sessions     { return &sessions{db: s.db} }

// HealthPing implements store.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap performs a connectivity check; schema setup is external.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.PingContext(ctx)
}

// --- Principals ---

type principals struct{ db *sql.DB }

func (p *principals) Create(ctx context.Context, m *model.Principal) (*model.Principal, error) {
	role := m.Role
	if role == "" {
		role = model.RoleUser
	}
	var created time.Time
	row := p.db.QueryRowContext(ctx, `
        INSERT INTO principals (user_id, display_name, role, host_override, key_request_status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING creation_time`,
		m.UserID, m.DisplayName, role, m.HostOverride, model.KeyRequestNone)
	if err := row.Scan(&created); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	out := *m
	out.Role = role
	out.KeyRequest = model.KeyRequest{Status: model.KeyRequestNone}
	out.CreationTime = created
	return &out, nil
}

func (p *principals) Get(ctx context.Context, userID string) (*model.Principal, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT user_id, display_name, role, host_override, key_request_status, key_requested_at, key_processed_at, creation_time
        FROM principals WHERE user_id=$1`, userID)
	return scanPrincipal(row.Scan)
}

func (p *principals) Delete(ctx context.Context, userID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM principals WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id=$1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *principals) GetSecrets(ctx context.Context, userID string) (*model.StoredSecrets, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT user_id, gemini_key_cipher, groq_key_cipher, host_override
        FROM principals WHERE user_id=$1`, userID)
	var out model.StoredSecrets
	if err := row.Scan(&out.UserID, &out.GeminiKeyCipher, &out.GroqKeyCipher, &out.HostOverride); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (p *principals) UpdateSecrets(ctx context.Context, userID string, upd store.SecretsUpdate) error {
	set := []string{}
	args := []interface{}{}
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("gemini_key_cipher", upd.GeminiKeyCipher)
	add("groq_key_cipher", upd.GroqKeyCipher)
	add("host_override", upd.HostOverride)
	if len(set) == 0 {
		return nil
	}
	args = append(args, userID)
	q := fmt.Sprintf(`UPDATE principals SET %s WHERE user_id=$%d`, strings.Join(set, ", "), len(args))
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (p *principals) SetKeyRequest(ctx context.Context, userID, status string, requestedAt, processedAt *time.Time) error {
	res, err := p.db.ExecContext(ctx, `
        UPDATE principals
        SET key_request_status=$1, key_requested_at=COALESCE($2, key_requested_at), key_processed_at=$3
        WHERE user_id=$4`, status, requestedAt, processedAt, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (p *principals) ListKeyRequests(ctx context.Context) ([]*model.Principal, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT user_id, display_name, role, host_override, key_request_status, key_requested_at, key_processed_at, creation_time
        FROM principals WHERE key_request_status <> $1 ORDER BY key_requested_at DESC`, model.KeyRequestNone)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Principal
	for rows.Next() {
		m, err := scanPrincipal(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanPrincipal(scan func(...interface{}) error) (*model.Principal, error) {
	var out model.Principal
	var requestedAt, processedAt *time.Time
	if err := scan(&out.UserID, &out.DisplayName, &out.Role, &out.HostOverride,
		&out.KeyRequest.Status, &requestedAt, &processedAt, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.KeyRequest.RequestedAt = requestedAt
	out.KeyRequest.ProcessedAt = processedAt
	return &out, nil
}

// --- Sessions ---

type sessions struct{ db *sql.DB }

func (s *sessions) Upsert(ctx context.Context, cs *model.ChatSession) (*model.ChatSession, error) {
	msgs, err := json.Marshal(cs.Messages)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO chat_sessions (user_id, session_id, messages, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, session_id) DO UPDATE SET messages=EXCLUDED.messages, updated_at=EXCLUDED.updated_at`,
		cs.UserID, cs.SessionID, string(msgs), now, now)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cs.UserID, cs.SessionID)
}

func (s *sessions) List(ctx context.Context, userID string) ([]*model.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT session_id, messages, created_at, updated_at
        FROM chat_sessions WHERE user_id=$1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ChatSession
	for rows.Next() {
		cs, err := scanSession(userID, rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *sessions) Get(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT session_id, messages, created_at, updated_at
        FROM chat_sessions WHERE user_id=$1 AND session_id=$2`, userID, sessionID)
	cs, err := scanSession(userID, row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return cs, nil
}

func (s *sessions) Delete(ctx context.Context, userID, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM chat_sessions WHERE user_id=$1 AND session_id=$2`, userID, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanSession(userID string, scan func(...interface{}) error) (*model.ChatSession, error) {
	var cs model.ChatSession
	var msgs string
	if err := scan(&cs.SessionID, &msgs, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
		return nil, err
	}
	cs.UserID = userID
	if err := json.Unmarshal([]byte(msgs), &cs.Messages); err != nil {
		return nil, err
	}
	return &cs, nil
}
