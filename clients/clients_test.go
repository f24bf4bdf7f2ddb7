package clients_test

import (
	"testing"

	"github.com/jrsteele09/go-spawn-hub/clients"
	fakeclientrepo "github.com/jrsteele09/go-spawn-hub/clients/fakerepo"
	"github.com/stretchr/testify/require"
)

func TestNewForUser(t *testing.T) {
	c, err := clients.NewForUser("nandy", "http://hub.test/")
	require.NoError(t, err)

	require.Equal(t, "user-nandy", c.ID)
	require.Equal(t, "nandy", c.Owner)
	require.Equal(t, "http://hub.test/user/nandy/oauth_callback", c.RedirectURI)
	require.NotEmpty(t, c.Secret)

	require.NoError(t, c.ValidateRedirectURI("http://hub.test/user/nandy/oauth_callback"))
	require.ErrorIs(t, c.ValidateRedirectURI("http://evil.test/user/nandy/oauth_callback"), clients.ErrInvalidRedirectURI)
	require.ErrorIs(t, c.ValidateRedirectURI(""), clients.ErrInvalidRedirectURI)
}

func TestOwnerOf(t *testing.T) {
	owner, ok := clients.OwnerOf("user-nandy")
	require.True(t, ok)
	require.Equal(t, "nandy", owner)

	_, ok = clients.OwnerOf("user-")
	require.False(t, ok)
	_, ok = clients.OwnerOf("admin-dashboard")
	require.False(t, ok)
}

func TestFakeClientRepo(t *testing.T) {
	repo := fakeclientrepo.NewFakeClientRepo()
	c, err := clients.NewForUser("nandy", "http://hub.test")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(c))
	got, err := repo.Get("user-nandy")
	require.NoError(t, err)
	require.Equal(t, c.Secret, got.Secret)

	require.NoError(t, repo.Delete("user-nandy"))
	_, err = repo.Get("user-nandy")
	require.ErrorIs(t, err, clients.ErrClientNotFound)
	require.Error(t, repo.Upsert(&clients.Client{}))
}
