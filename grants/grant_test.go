package grants_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/grants"
	fakegrantrepo "github.com/jrsteele09/go-spawn-hub/grants/repofake"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestAccessScope(t *testing.T) {
	scope := grants.AccessScope("nandy")
	require.Equal(t, "access:servers!user=nandy", scope)

	owner, ok := grants.IsAccessScope(scope)
	require.True(t, ok)
	require.Equal(t, "nandy", owner)

	_, ok = grants.IsAccessScope(grants.ScopeIdentify)
	require.False(t, ok)
}

func TestNormalizeScopes(t *testing.T) {
	require.Equal(t, []string{"a", "identify"}, grants.NormalizeScopes([]string{"identify", " a", "", "identify"}))
	require.Empty(t, grants.NormalizeScopes(nil))
}

func TestUpsertIsIdempotent(t *testing.T) {
	repo := fakegrantrepo.NewFakeGrantRepo()
	now := time.Now()

	g, created, err := repo.Upsert("nandy", "burgess", []string{grants.ScopeIdentify}, now)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, []string{"identify"}, g.Scopes)

	again, created, err := repo.Upsert("nandy", "burgess", []string{grants.ScopeIdentify}, now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, g.ID, again.ID)
	require.True(t, again.IssuedAt.Equal(now), "re-confirmation leaves the grant untouched")
	require.Equal(t, 1, repo.Len())

	widened, created, err := repo.Upsert("nandy", "burgess", []string{grants.AccessScope("nandy")}, now)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, g.ID, widened.ID)
	require.True(t, widened.Covers([]string{grants.ScopeIdentify, grants.AccessScope("nandy")}))
	require.Equal(t, 1, repo.Len())
}

func TestGetListRevoke(t *testing.T) {
	repo := fakegrantrepo.NewFakeGrantRepo()
	now := time.Now()

	_, _, err := repo.Upsert("nandy", "burgess", []string{grants.ScopeIdentify}, now)
	require.NoError(t, err)
	_, _, err = repo.Upsert("nandy", "alice", []string{grants.ScopeIdentify}, now)
	require.NoError(t, err)
	_, _, err = repo.Upsert("", "alice", nil, now)
	require.Error(t, err)

	list, err := repo.ListForGrantor("nandy")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "alice", list[0].Grantee)

	require.NoError(t, repo.Revoke("nandy", "alice"))
	require.NoError(t, repo.Revoke("nandy", "alice"))
	_, err = repo.Get("nandy", "alice")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
