package authenticator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Claims read from an upstream ID token.
type Claims struct {
	Nonce             string `json:"nonce"`
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

// Username derives a hub username from the claims: preferred_username, then
// the local part of email, then sub, lower-cased.
func (c Claims) Username() (string, error) {
	candidates := []string{c.PreferredUsername}
	if local, _, ok := strings.Cut(c.Email, "@"); ok {
		candidates = append(candidates, local)
	}
	candidates = append(candidates, c.Sub)

	for _, candidate := range candidates {
		name := strings.ToLower(strings.TrimSpace(candidate))
		if name != "" && users.ValidateName(name) == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no usable username in id token claims")
}

// OIDC logs users into the hub through an upstream OpenID Connect provider.
// Users seen for the first time are created.
type OIDC struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	config   oauth2.Config
	users    users.UserRepo
}

// NewOIDC discovers issuer and prepares the login flow. redirectURL is the
// hub's OIDC callback.
func NewOIDC(ctx context.Context, issuer, clientID, clientSecret, redirectURL string, userRepo users.UserRepo) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewOIDC] discover %s", issuer)
	}
	return &OIDC{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		users: userRepo,
	}, nil
}

// LoginURL is where the browser is sent to sign in upstream.
func (o *OIDC) LoginURL(state, nonce, codeVerifier string) string {
	return o.config.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.S256ChallengeOption(codeVerifier))
}

// Callback redeems the upstream code, verifies the ID token and returns the
// matching hub user.
func (o *OIDC) Callback(ctx context.Context, code, codeVerifier, nonce string) (*users.User, error) {
	oauth2Token, err := o.config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "token exchange failed: %s", err.Error())
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "no id_token in response")
	}
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "id token verification failed: %s", err.Error())
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "failed to extract claims: %s", err.Error())
	}
	if claims.Nonce != nonce {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "invalid nonce")
	}
	return o.ensureUser(claims)
}

func (o *OIDC) ensureUser(claims Claims) (*users.User, error) {
	name, err := claims.Username()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "%s", err.Error())
	}

	user, err := o.users.Get(name)
	if err == nil {
		if user.Blocked {
			return nil, errors.ErrUserBlocked
		}
		return user, nil
	}
	if !errors.Is(err, errors.ErrUserNotFound) {
		return nil, errors.Wrapf(err, "[OIDC] users.Get")
	}

	user = &users.User{Name: name, CreatedAt: time.Now()}
	if err := o.users.Upsert(user); err != nil {
		return nil, errors.Wrapf(err, "[OIDC] users.Upsert")
	}
	log.Info().Str("user", name).Str("sub", claims.Sub).Msg("created user from upstream login")
	return user, nil
}
