// Package flows holds the pending and decided authorization requests of the
// hub's OAuth engine, together with the one-shot codes issued for them.
package flows

import "time"

// Phase of an authorization request.
type Phase string

const (
	PhaseConsentPending Phase = "consent_pending"
	PhaseGranted        Phase = "granted"
	PhaseDenied         Phase = "denied"
)

// Request is one cross-identity (or owner) authorization attempt.
type Request struct {
	ID                  string
	ClientID            string
	Owner               string // Owner of the server being reached
	Requester           string // Hub user asking for access
	SessionID           string // Requester's hub session at authorize time
	RedirectURI         string
	State               string
	Scopes              []string // Requested scopes
	GrantedScopes       []string // Scopes the issued code carries
	CodeChallenge       string
	CodeChallengeMethod string
	Phase               Phase
	Code                string
	CodeIssuedAt        time.Time
	CreatedAt           time.Time
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Scopes = append([]string(nil), r.Scopes...)
	c.GrantedScopes = append([]string(nil), r.GrantedScopes...)
	return &c
}

type Repo interface {
	// Upsert stores or replaces a request by ID
	Upsert(req *Request) error

	// Get retrieves a request by ID
	Get(id string) (*Request, error)

	// AssignCode attaches a fresh code to a request, dropping any previous one
	AssignCode(id, code string, issuedAt time.Time) error

	// TakeByCode returns the request a code was issued for and invalidates the code
	TakeByCode(code string) (*Request, error)

	// Delete removes a request and its code
	Delete(id string) error

	// DeleteBefore removes requests created before cutoff and reports how many
	DeleteBefore(cutoff time.Time) int
}
