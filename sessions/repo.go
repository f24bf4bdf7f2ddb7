package sessions

import "time"

// Repo defines the interface for session storage operations.
// An identity owns at most one session: Create replaces any session the same
// user already holds.
type Repo interface {
	// Create stores a new session, removing any previous session of the same user
	Create(session *Session) error

	// Get retrieves a session by its token
	Get(token string) (*Session, error)

	// GetForUser retrieves the session held by username
	GetForUser(username string) (*Session, error)

	// Delete removes a session by token. Deleting an unknown token is not an error.
	Delete(token string) error

	// DeleteForUser removes the session held by username, if any
	DeleteForUser(username string) error

	// DeleteExpired removes sessions that expired before now and reports how many
	DeleteExpired(now time.Time) (int, error)
}
