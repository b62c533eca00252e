// Package sqlite is the embedded store adapter, the default driver for
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/store"
)

// Open opens (or creates) a SQLite database file and verifies connectivity.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite is single-writer; serialize access.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the orchestrator tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Principals (
            UserId TEXT PRIMARY KEY,
            DisplayName TEXT NOT NULL,
            Role TEXT NOT NULL,
            HostOverride TEXT NOT NULL DEFAULT '',
            GeminiKeyCipher TEXT NOT NULL DEFAULT '',
            GroqKeyCipher TEXT NOT NULL DEFAULT '',
            KeyRequestStatus TEXT NOT NULL DEFAULT 'none',
            KeyRequestedAt TIMESTAMP,
            KeyProcessedAt TIMESTAMP,
            CreationTime TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS ChatSessions (
            UserId TEXT NOT NULL,
            SessionId TEXT NOT NULL,
            Messages TEXT NOT NULL,
            CreatedAt TIMESTAMP NOT NULL,
            UpdatedAt TIMESTAMP NOT NULL,
            PRIMARY KEY(UserId, SessionId)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated
            ON ChatSessions(UserId, UpdatedAt DESC);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// New opens the database at path, ensures the schema, and returns a Store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wires a Store over an existing connection (used by tests).
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Principals() store.Principals { return &principals{db: s.db} }
func (s *sqliteStore) Sessions() store.Sessions     { return &sessions{db: s.db} }

// HealthPing implements store.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Principals ---

type principals struct{ db *sql.DB }

func (p *principals) Create(ctx context.Context, m *model.Principal) (*model.Principal, error) {
	now := time.Now().UTC()
	role := m.Role
	if role == "" {
		role = model.RoleUser
	}
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO Principals (UserId, DisplayName, Role, HostOverride, KeyRequestStatus, CreationTime)
        VALUES (?,?,?,?,?,?)`,
		m.UserID, m.DisplayName, role, m.HostOverride, model.KeyRequestNone, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	out := *m
	out.Role = role
	out.KeyRequest = model.KeyRequest{Status: model.KeyRequestNone}
	out.CreationTime = now
	return &out, nil
}

func (p *principals) Get(ctx context.Context, userID string) (*model.Principal, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT UserId, DisplayName, Role, HostOverride, KeyRequestStatus, KeyRequestedAt, KeyProcessedAt, CreationTime
        FROM Principals WHERE UserId = ?`, userID)
	var out model.Principal
	var requestedAt, processedAt *time.Time
	if err := row.Scan(&out.UserID, &out.DisplayName, &out.Role, &out.HostOverride,
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

func (p *principals) Delete(ctx context.Context, userID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM Principals WHERE UserId = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ChatSessions WHERE UserId = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *principals) GetSecrets(ctx context.Context, userID string) (*model.StoredSecrets, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT UserId, GeminiKeyCipher, GroqKeyCipher, HostOverride
        FROM Principals WHERE UserId = ?`, userID)
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
	set := ""
	args := []interface{}{}
	appendSet := func(col string, v *string) {
		if v == nil {
			return
		}
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, *v)
	}
	appendSet("GeminiKeyCipher", upd.GeminiKeyCipher)
	appendSet("GroqKeyCipher", upd.GroqKeyCipher)
	appendSet("HostOverride", upd.HostOverride)
	if set == "" {
		return nil
	}
	args = append(args, userID)
	res, err := p.db.ExecContext(ctx, `UPDATE Principals SET `+set+` WHERE UserId = ?`, args...)
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
        UPDATE Principals SET KeyRequestStatus = ?, KeyRequestedAt = COALESCE(?, KeyRequestedAt), KeyProcessedAt = ?
        WHERE UserId = ?`, status, requestedAt, processedAt, userID)
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
        SELECT UserId, DisplayName, Role, HostOverride, KeyRequestStatus, KeyRequestedAt, KeyProcessedAt, CreationTime
        FROM Principals WHERE KeyRequestStatus != ? ORDER BY KeyRequestedAt DESC`, model.KeyRequestNone)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Principal
	for rows.Next() {
		var m model.Principal
		var requestedAt, processedAt *time.Time
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.Role, &m.HostOverride,
			&m.KeyRequest.Status, &requestedAt, &processedAt, &m.CreationTime); err != nil {
			return nil, err
		}
		m.KeyRequest.RequestedAt = requestedAt
		m.KeyRequest.ProcessedAt = processedAt
		out = append(out, &m)
	}
	return out, rows.Err()
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
        INSERT INTO ChatSessions (UserId, SessionId, Messages, CreatedAt, UpdatedAt)
        VALUES (?,?,?,?,?)
        ON CONFLICT(UserId, SessionId) DO UPDATE SET Messages = excluded.Messages, UpdatedAt = excluded.UpdatedAt`,
		cs.UserID, cs.SessionID, string(msgs), now, now)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cs.UserID, cs.SessionID)
}

func (s *sessions) List(ctx context.Context, userID string) ([]*model.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT SessionId, Messages, CreatedAt, UpdatedAt
        FROM ChatSessions WHERE UserId = ? ORDER BY UpdatedAt DESC`, userID)
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
        SELECT SessionId, Messages, CreatedAt, UpdatedAt
        FROM ChatSessions WHERE UserId = ? AND SessionId = ?`, userID, sessionID)
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
        DELETE FROM ChatSessions WHERE UserId = ? AND SessionId = ?`, userID, sessionID)
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

func isUniqueViolation(err error) bool {
	// modernc sqlite reports constraint violations in the error text.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
