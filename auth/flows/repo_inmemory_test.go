package flows

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestUpsertGetReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepo()
	req := &Request{ID: "r1", Owner: "nandy", Requester: "burgess", Scopes: []string{"identify"}, Phase: PhaseConsentPending}
	require.NoError(t, repo.Upsert(req))

	req.Scopes[0] = "mutated"
	got, err := repo.Get("r1")
	require.NoError(t, err)
	require.Equal(t, []string{"identify"}, got.Scopes)

	got.Phase = PhaseGranted
	again, err := repo.Get("r1")
	require.NoError(t, err)
	require.Equal(t, PhaseConsentPending, again.Phase)

	_, err = repo.Get("missing")
	require.ErrorIs(t, err, errors.ErrConsentNotFound)
	require.Error(t, repo.Upsert(&Request{}))
}

func TestCodesAreOneShot(t *testing.T) {
	repo := NewInMemoryRepo()
	now := time.Now()
	require.NoError(t, repo.Upsert(&Request{ID: "r1", CreatedAt: now}))
	require.NoError(t, repo.AssignCode("r1", "code-a", now))

	got, err := repo.TakeByCode("code-a")
	require.NoError(t, err)
	require.Equal(t, "r1", got.ID)
	require.Equal(t, "code-a", got.Code)

	_, err = repo.TakeByCode("code-a")
	require.ErrorIs(t, err, errors.ErrInvalidGrant)

	// The request outlives its code so consent can be re-confirmed
	_, err = repo.Get("r1")
	require.NoError(t, err)
}

func TestReassignInvalidatesOldCode(t *testing.T) {
	repo := NewInMemoryRepo()
	now := time.Now()
	require.NoError(t, repo.Upsert(&Request{ID: "r1", CreatedAt: now}))
	require.NoError(t, repo.AssignCode("r1", "code-a", now))
	require.NoError(t, repo.AssignCode("r1", "code-b", now))

	_, err := repo.TakeByCode("code-a")
	require.ErrorIs(t, err, errors.ErrInvalidGrant)
	_, err = repo.TakeByCode("code-b")
	require.NoError(t, err)

	require.ErrorIs(t, repo.AssignCode("missing", "c", now), errors.ErrConsentNotFound)
}

func TestDeleteBefore(t *testing.T) {
	repo := NewInMemoryRepo()
	now := time.Now()
	require.NoError(t, repo.Upsert(&Request{ID: "old", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Upsert(&Request{ID: "new", CreatedAt: now}))
	require.NoError(t, repo.AssignCode("old", "old-code", now))

	require.Equal(t, 1, repo.DeleteBefore(now.Add(-time.Minute)))
	_, err := repo.TakeByCode("old-code")
	require.Error(t, err)
	_, err = repo.Get("new")
	require.NoError(t, err)

	require.NoError(t, repo.Delete("new"))
	require.NoError(t, repo.Delete("new"))
}
