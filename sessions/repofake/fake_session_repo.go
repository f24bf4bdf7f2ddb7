package fakesessionrepo

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is a thread-safe in-memory session store.
type FakeSessionRepo struct {
	sessions map[string]sessions.Session // token -> session
	byUser   map[string]string           // username -> token
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]sessions.Session),
		byUser:   make(map[string]string),
	}
}

func (sr *FakeSessionRepo) Create(session *sessions.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("session token is required")
	}
	if session.Username == "" {
		return fmt.Errorf("session username is required")
	}

	sr.lock.Lock()
	defer sr.lock.Unlock()

	if previous, ok := sr.byUser[session.Username]; ok {
		delete(sr.sessions, previous)
	}
	sr.sessions[session.Token] = *session
	sr.byUser[session.Username] = session.Token
	return nil
}

func (sr *FakeSessionRepo) Get(token string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[token]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	return &session, nil
}

func (sr *FakeSessionRepo) GetForUser(username string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	token, ok := sr.byUser[username]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	session := sr.sessions[token]
	return &session, nil
}

func (sr *FakeSessionRepo) Delete(token string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[token]
	if !ok {
		return nil // Already doesn't exist, no error
	}
	delete(sr.sessions, token)
	if sr.byUser[session.Username] == token {
		delete(sr.byUser, session.Username)
	}
	return nil
}

func (sr *FakeSessionRepo) DeleteForUser(username string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if token, ok := sr.byUser[username]; ok {
		delete(sr.sessions, token)
		delete(sr.byUser, username)
	}
	return nil
}

func (sr *FakeSessionRepo) DeleteExpired(now time.Time) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	removed := 0
	for token, session := range sr.sessions {
		if session.Expired(now) {
			delete(sr.sessions, token)
			if sr.byUser[session.Username] == token {
				delete(sr.byUser, session.Username)
			}
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.sessions)
}
