package oauthmodel

import (
	"net/http"
	"strings"
)

// TokenRequest holds parameters for the OAuth2 token request sent to
// /hub/api/oauth2/token.
type TokenRequest struct {
	GrantType GrantType

	// ClientID identifies the user server client making the request.
	// Example: "user-nandy"
	ClientID string

	// ClientSecret is the client's secret, from the form or HTTP basic auth.
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received on the callback. One use only.
	Code string

	// RedirectURI must repeat the redirect_uri of the authorization request.
	RedirectURI string

	// CodeVerifier is the PKCE code verifier that matches the code_challenge.
	CodeVerifier string
}

// TokenRequestFromHTTP reads a token request from a parsed form request,
// accepting client_secret_post and client_secret_basic credentials.
func TokenRequestFromHTTP(r *http.Request) TokenRequest {
	req := TokenRequest{
		GrantType:    GrantType(r.PostFormValue("grant_type")),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
	}
	if id, secret, ok := r.BasicAuth(); ok {
		if req.ClientID == "" {
			req.ClientID = id
		}
		if req.ClientSecret == "" {
			req.ClientSecret = secret
		}
	}
	return req
}

// Validate checks the request shape before any client lookup.
func (t TokenRequest) Validate() error {
	if t.GrantType != AuthorizationCodeGrant {
		return ErrUnsupportedGrantType
	}
	if strings.TrimSpace(t.ClientID) == "" {
		return ErrMissingClientID
	}
	if strings.TrimSpace(t.Code) == "" {
		return ErrMissingCode
	}
	return nil
}
