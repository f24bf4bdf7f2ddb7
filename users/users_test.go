package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/users"
	fakeuserrepo "github.com/jrsteele09/go-spawn-hub/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestCanAccessServerOf(t *testing.T) {
	owner := &users.User{Name: "nandy"}
	other := &users.User{Name: "burgess"}
	admin := &users.User{Name: "root", Admin: true}
	blocked := &users.User{Name: "nandy", Blocked: true}

	require.True(t, owner.CanAccessServerOf("nandy", false))
	require.False(t, other.CanAccessServerOf("nandy", true))
	require.False(t, admin.CanAccessServerOf("nandy", false))
	require.True(t, admin.CanAccessServerOf("nandy", true))
	require.False(t, blocked.CanAccessServerOf("nandy", true))

	var nobody *users.User
	require.False(t, nobody.CanAccessServerOf("nandy", true))
}

func TestPasswords(t *testing.T) {
	hash, err := users.HashPassword("s3cret")
	require.NoError(t, err)

	u := &users.User{Name: "nandy", PasswordHash: hash}
	require.True(t, u.CheckPassword("s3cret"))
	require.False(t, u.CheckPassword("wrong"))
	require.False(t, (&users.User{Name: "nohash"}).CheckPassword(""))
}

func TestValidateName(t *testing.T) {
	require.NoError(t, users.ValidateName("nandy"))
	require.NoError(t, users.ValidateName("first.last@example.com"))
	require.Error(t, users.ValidateName(""))
	require.Error(t, users.ValidateName("a/b"))
	require.Error(t, users.ValidateName("with space"))
	require.Error(t, users.ValidateName(" padded"))
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	require.NoError(t, repo.Upsert(&users.User{Name: "nandy"}))
	require.NoError(t, repo.Upsert(&users.User{Name: "burgess", Admin: true}))
	require.Error(t, repo.Upsert(&users.User{Name: "bad/name"}))

	u, err := repo.Get("nandy")
	require.NoError(t, err)
	require.False(t, u.CreatedAt.IsZero())

	// Returned users are copies
	u.Admin = true
	u, err = repo.Get("nandy")
	require.NoError(t, err)
	require.False(t, u.Admin)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "burgess", list[0].Name)

	list, err = repo.List(1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "nandy", list[0].Name)

	now := time.Now()
	require.NoError(t, repo.Touch("nandy", now))
	require.NoError(t, repo.SetBlocked("nandy", true))
	u, err = repo.Get("nandy")
	require.NoError(t, err)
	require.True(t, u.Blocked)
	require.True(t, u.LastActivity.Equal(now))

	require.NoError(t, repo.Delete("nandy"))
	_, err = repo.Get("nandy")
	require.True(t, errors.Is(err, errors.ErrUserNotFound))
	require.True(t, errors.Is(repo.Delete("nandy"), errors.ErrUserNotFound))
}
