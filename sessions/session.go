package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tokenLength is the number of random bytes in a session token (256 bits).
const tokenLength = 32

// Session is the hub's proof of authentication, bound to the session cookie.
// The Token is the secret cookie value; ID is a non-secret handle that may be
// embedded in other credentials to bind them to this session.
type Session struct {
	ID        string    // Unique session identifier (UUID)
	Token     string    // Opaque, unguessable cookie value
	Username  string    // Identity the session authenticates
	CreatedAt time.Time // When the user logged in
	ExpiresAt time.Time // When the session stops being accepted
}

// New creates a session for username valid for maxAge from now.
func New(username string, now time.Time, maxAge time.Duration) (*Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.New().String(),
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}, nil
}

// NewToken generates a random base64url session token.
func NewToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
