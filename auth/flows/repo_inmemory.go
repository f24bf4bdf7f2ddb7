package flows

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	requests map[string]*Request
	codes    map[string]string // code -> request ID
}

// NewInMemoryRepo creates a new in-memory authorization request repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		requests: make(map[string]*Request),
		codes:    make(map[string]string),
	}
}

func (r *InMemoryRepo) Upsert(req *Request) error {
	if req == nil || req.ID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "request id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.requests[req.ID]; ok && prev.Code != "" && prev.Code != req.Code {
		delete(r.codes, prev.Code)
	}
	r.requests[req.ID] = req.Clone()
	if req.Code != "" {
		r.codes[req.Code] = req.ID
	}
	return nil
}

func (r *InMemoryRepo) Get(id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, errors.ErrConsentNotFound
	}
	return req.Clone(), nil
}

func (r *InMemoryRepo) AssignCode(id, code string, issuedAt time.Time) error {
	if code == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "code cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return errors.ErrConsentNotFound
	}
	if req.Code != "" {
		delete(r.codes, req.Code)
	}
	req.Code = code
	req.CodeIssuedAt = issuedAt
	r.codes[code] = id
	return nil
}

func (r *InMemoryRepo) TakeByCode(code string) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, errors.ErrInvalidGrant
	}
	delete(r.codes, code)

	req, ok := r.requests[id]
	if !ok {
		return nil, errors.ErrInvalidGrant
	}
	out := req.Clone()
	req.Code = ""
	return out, nil
}

func (r *InMemoryRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req, ok := r.requests[id]; ok {
		if req.Code != "" {
			delete(r.codes, req.Code)
		}
		delete(r.requests, id)
	}
	return nil
}

func (r *InMemoryRepo) DeleteBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, req := range r.requests {
		if req.CreatedAt.Before(cutoff) {
			if req.Code != "" {
				delete(r.codes, req.Code)
			}
			delete(r.requests, id)
			removed++
		}
	}
	return removed
}
