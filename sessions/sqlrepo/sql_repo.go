// Package sqlrepo stores hub sessions in PostgreSQL so logins survive a hub restart.
package sqlrepo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/sessions"
)

var _ sessions.Repo = (*Repo)(nil)

type Repo struct {
	db *sql.DB
}

// New returns a session repo backed by db, creating the table when missing.
func New(db *sql.DB) (*Repo, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	r := &Repo{db: db}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS hub_sessions (
	token TEXT PRIMARY KEY,
	session_id TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`
	if _, err := r.db.Exec(q); err != nil {
		return fmt.Errorf("ensure hub_sessions schema: %w", err)
	}
	return nil
}

func (r *Repo) Create(s *sessions.Session) error {
	if s == nil || s.Token == "" || s.Username == "" {
		return fmt.Errorf("session token and username are required")
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM hub_sessions WHERE username = $1`, s.Username); err != nil {
		return fmt.Errorf("replace previous session: %w", err)
	}
	const q = `
INSERT INTO hub_sessions (token, session_id, username, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(q, s.Token, s.ID, s.Username, s.CreatedAt.UTC(), s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session tx: %w", err)
	}
	return nil
}

func (r *Repo) Get(token string) (*sessions.Session, error) {
	const q = `
SELECT token, session_id, username, created_at, expires_at
FROM hub_sessions WHERE token = $1`
	var s sessions.Session
	err := r.db.QueryRow(q, token).Scan(&s.Token, &s.ID, &s.Username, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &s, nil
}

func (r *Repo) GetForUser(username string) (*sessions.Session, error) {
	const q = `
SELECT token, session_id, username, created_at, expires_at
FROM hub_sessions WHERE username = $1`
	var s sessions.Session
	err := r.db.QueryRow(q, username).Scan(&s.Token, &s.ID, &s.Username, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user session: %w", err)
	}
	return &s, nil
}

func (r *Repo) Delete(token string) error {
	if _, err := r.db.Exec(`DELETE FROM hub_sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repo) DeleteForUser(username string) error {
	if _, err := r.db.Exec(`DELETE FROM hub_sessions WHERE username = $1`, username); err != nil {
		return fmt.Errorf("delete user session: %w", err)
	}
	return nil
}

func (r *Repo) DeleteExpired(now time.Time) (int, error) {
	res, err := r.db.Exec(`DELETE FROM hub_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}
	return int(n), nil
}
