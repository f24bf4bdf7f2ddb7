package sqlrepo_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/sessions"
	"github.com/jrsteele09/go-spawn-hub/sessions/sqlrepo"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*sqlrepo.Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS hub_sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	repo, err := sqlrepo.New(db)
	require.NoError(t, err)
	return repo, mock
}

func TestNewRequiresDB(t *testing.T) {
	_, err := sqlrepo.New(nil)
	require.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &sessions.Session{ID: "sid1", Token: "tok1", Username: "nandy", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM hub_sessions WHERE username").WithArgs("nandy").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO hub_sessions").
		WithArgs("tok1", "sid1", "nandy", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Create(s))

	rows := sqlmock.NewRows([]string{"token", "session_id", "username", "created_at", "expires_at"}).
		AddRow("tok1", "sid1", "nandy", now, now.Add(time.Hour))
	mock.ExpectQuery("SELECT token, session_id, username, created_at, expires_at").WithArgs("tok1").WillReturnRows(rows)

	got, err := repo.Get("tok1")
	require.NoError(t, err)
	require.Equal(t, "sid1", got.ID)
	require.Equal(t, "nandy", got.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM hub_sessions WHERE username").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO hub_sessions").WillReturnError(fmt.Errorf("duplicate key"))
	mock.ExpectRollback()

	err := repo.Create(&sessions.Session{ID: "sid", Token: "tok", Username: "nandy", CreatedAt: now, ExpiresAt: now})
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert session")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("SELECT token, session_id").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token", "session_id", "username", "created_at", "expires_at"}))

	_, err := repo.Get("missing")
	require.True(t, errors.Is(err, errors.ErrSessionNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsWrappedNoRows(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("SELECT token, session_id").WithArgs("tok1").
		WillReturnError(fmt.Errorf("pooled conn: %w", sql.ErrNoRows))
	mock.ExpectQuery("FROM hub_sessions WHERE username").WithArgs("nandy").
		WillReturnError(fmt.Errorf("pooled conn: %w", sql.ErrNoRows))
	mock.ExpectQuery("SELECT token, session_id").WithArgs("tok2").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.Get("tok1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = repo.GetForUser("nandy")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	_, err = repo.Get("tok2")
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.False(t, errors.Is(err, errors.ErrSessionNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletes(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectExec("DELETE FROM hub_sessions WHERE token").WithArgs("tok1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM hub_sessions WHERE username").WithArgs("nandy").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM hub_sessions WHERE expires_at").WithArgs(now.UTC()).WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.Delete("tok1"))
	require.NoError(t, repo.DeleteForUser("nandy"))
	n, err := repo.DeleteExpired(now)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUser(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"token", "session_id", "username", "created_at", "expires_at"}).
		AddRow("tok1", "sid1", "nandy", now, now.Add(time.Hour))
	mock.ExpectQuery("FROM hub_sessions WHERE username").WithArgs("nandy").WillReturnRows(rows)
	mock.ExpectQuery("FROM hub_sessions WHERE username").WithArgs("burgess").
		WillReturnRows(sqlmock.NewRows([]string{"token", "session_id", "username", "created_at", "expires_at"}))

	got, err := repo.GetForUser("nandy")
	require.NoError(t, err)
	require.Equal(t, "tok1", got.Token)

	_, err = repo.GetForUser("burgess")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
