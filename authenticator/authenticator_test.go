package authenticator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/users"
	fakeuserrepo "github.com/jrsteele09/go-spawn-hub/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestPasswordAuthenticate(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	hash, err := users.HashPassword("nandy-pass")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(&users.User{Name: "nandy", PasswordHash: hash}))

	p := NewPassword(repo)
	ctx := context.Background()

	user, err := p.Authenticate(ctx, " nandy ", "nandy-pass")
	require.NoError(t, err)
	require.Equal(t, "nandy", user.Name)

	_, err = p.Authenticate(ctx, "nandy", "wrong")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	_, err = p.Authenticate(ctx, "ghost", "nandy-pass")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	_, err = p.Authenticate(ctx, "", "")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)

	require.NoError(t, repo.SetBlocked("nandy", true))
	_, err = p.Authenticate(ctx, "nandy", "nandy-pass")
	require.ErrorIs(t, err, errors.ErrUserBlocked)
}

func TestClaimsUsername(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"preferred username", Claims{PreferredUsername: "Nandy", Email: "other@example.com", Sub: "1"}, "nandy"},
		{"email local part", Claims{Email: "Burgess@example.com", Sub: "2"}, "burgess"},
		{"sub fallback", Claims{Sub: "auth0|123"}, "auth0|123"},
		{"skips unusable names", Claims{PreferredUsername: "has space", Sub: "s3"}, "s3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.claims.Username()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := Claims{}.Username()
	require.Error(t, err)
}

func TestEnsureUserCreatesOnFirstLogin(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	o := &OIDC{users: repo}

	user, err := o.ensureUser(Claims{PreferredUsername: "nandy", Sub: "1"})
	require.NoError(t, err)
	require.Equal(t, "nandy", user.Name)

	_, err = repo.Get("nandy")
	require.NoError(t, err)

	require.NoError(t, repo.SetBlocked("nandy", true))
	_, err = o.ensureUser(Claims{PreferredUsername: "nandy"})
	require.ErrorIs(t, err, errors.ErrUserBlocked)
}

func TestNewOIDCDiscovery(t *testing.T) {
	var issuer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/authorize",
			"token_endpoint":         issuer + "/token",
			"jwks_uri":               issuer + "/jwks",
		})
	}))
	defer srv.Close()
	issuer = srv.URL

	o, err := NewOIDC(context.Background(), issuer, "hub", "secret", "http://hub.test/hub/oauth_callback", fakeuserrepo.NewFakeUserRepo())
	require.NoError(t, err)

	u, err := url.Parse(o.LoginURL("st4te", "n0nce", "verifier-verifier-verifier-verifier-verifier"))
	require.NoError(t, err)
	require.Equal(t, issuer+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	require.Equal(t, "hub", q.Get("client_id"))
	require.Equal(t, "st4te", q.Get("state"))
	require.Equal(t, "n0nce", q.Get("nonce"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, "http://hub.test/hub/oauth_callback", q.Get("redirect_uri"))
	require.Contains(t, q.Get("scope"), "openid")

	_, err = NewOIDC(context.Background(), issuer+"/missing", "hub", "secret", "", nil)
	require.Error(t, err)
}
