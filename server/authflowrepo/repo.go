// Package authflowrepo stores the browser side state of redirect based
// handshakes between leaving the hub and coming back to a callback.
package authflowrepo

import (
	"errors"
	"time"
)

var ErrStateNotFound = errors.New("state not found")

type AuthFlowState struct {
	Owner        string // Server whose callback will redeem the code, empty for hub login
	Requester    string // Hub user who started the flow, empty for hub login
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

func (s *AuthFlowState) clone() *AuthFlowState {
	c := *s
	return &c
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	// Take returns the state and removes it, so a callback can use it once.
	Take(state string) (*AuthFlowState, error)
	Delete(state string) error
	DeleteBefore(cutoff time.Time) int
}
