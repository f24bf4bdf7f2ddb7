package fakegrantrepo

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-spawn-hub/grants"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
)

var _ grants.Repo = (*FakeGrantRepo)(nil)

type grantKey struct {
	grantor string
	grantee string
}

type FakeGrantRepo struct {
	grants map[grantKey]grants.Grant
	lock   sync.RWMutex
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{
		grants: make(map[grantKey]grants.Grant),
	}
}

func (gr *FakeGrantRepo) Upsert(grantor, grantee string, scopes []string, now time.Time) (*grants.Grant, bool, error) {
	if grantor == "" || grantee == "" {
		return nil, false, errors.Wrapf(errors.ErrInvalidRequest, "grantor and grantee are required")
	}
	scopes = grants.NormalizeScopes(scopes)

	gr.lock.Lock()
	defer gr.lock.Unlock()

	key := grantKey{grantor: grantor, grantee: grantee}
	existing, ok := gr.grants[key]
	if ok && existing.Covers(scopes) {
		g := existing
		return &g, false, nil
	}
	if !ok {
		existing = grants.Grant{
			ID:      uuid.New().String(),
			Grantor: grantor,
			Grantee: grantee,
		}
	}
	existing.Scopes = grants.NormalizeScopes(append(append([]string{}, existing.Scopes...), scopes...))
	existing.IssuedAt = now
	gr.grants[key] = existing

	g := existing
	return &g, true, nil
}

func (gr *FakeGrantRepo) Get(grantor, grantee string) (*grants.Grant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	g, ok := gr.grants[grantKey{grantor: grantor, grantee: grantee}]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &g, nil
}

func (gr *FakeGrantRepo) ListForGrantor(grantor string) ([]*grants.Grant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	result := make([]*grants.Grant, 0)
	for key, g := range gr.grants {
		if key.grantor == grantor {
			g := g
			result = append(result, &g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Grantee < result[j].Grantee })
	return result, nil
}

func (gr *FakeGrantRepo) Revoke(grantor, grantee string) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	delete(gr.grants, grantKey{grantor: grantor, grantee: grantee})
	return nil
}

// Len returns the number of stored grants.
func (gr *FakeGrantRepo) Len() int {
	gr.lock.RLock()
	defer gr.lock.RUnlock()
	return len(gr.grants)
}
