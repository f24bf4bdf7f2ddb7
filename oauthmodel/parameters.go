package oauthmodel

import (
	"net/url"
	"strings"
)

// AuthorizationParameters holds parameters for the OAuth2 authorization request.
// These are received as query parameters at /hub/api/oauth2/authorize.
type AuthorizationParameters struct {
	// ClientID identifies the user server requesting authorization.
	// Example: "user-nandy"
	ClientID string

	// ResponseType must be "code" (or empty, which means "code").
	ResponseType ResponseType

	// RedirectURI is where the authorization response will be sent. It must
	// equal the client's registered callback exactly.
	// Example: "http://hub.example.com/user/nandy/oauth_callback"
	RedirectURI string

	// Scope is the space separated list of requested scopes.
	// Example: "identify"
	Scope string

	// State is an opaque value echoed back on the redirect.
	State string

	// CodeChallenge is the optional PKCE challenge derived from code_verifier.
	CodeChallenge string

	// CodeChallengeMethod specifies how code_challenge was derived ("S256" or "plain").
	CodeChallengeMethod CodeMethodType
}

// AuthorizationParametersFromQuery reads authorization parameters from a query.
func AuthorizationParametersFromQuery(q url.Values) *AuthorizationParameters {
	return &AuthorizationParameters{
		ClientID:            q.Get("client_id"),
		ResponseType:        ResponseType(q.Get("response_type")),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: CodeMethodType(q.Get("code_challenge_method")),
	}
}

// Scopes returns the requested scopes as a list.
func (p *AuthorizationParameters) Scopes() []string {
	return strings.Fields(p.Scope)
}

// Validate checks the parameters that do not depend on the client.
func (p *AuthorizationParameters) Validate() error {
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrMissingClientID
	}
	// A PKCE challenge is 43 to 128 characters
	if strings.TrimSpace(p.CodeChallenge) != "" && (len(p.CodeChallenge) < 43 || len(p.CodeChallenge) > 128) {
		return ErrInvalidCodeChallenge
	}
	if !codeChallengeMethodValid(p.CodeChallenge, p.CodeChallengeMethod) {
		return ErrInvalidCodeChallengeMethod
	}
	if !responseTypeValid(p.ResponseType) {
		return ErrInvalidResponseType
	}
	return nil
}

func codeChallengeMethodValid(codeChallenge string, challengeMethod CodeMethodType) bool {
	if strings.TrimSpace(codeChallenge) == "" {
		return true
	}
	switch challengeMethod {
	case CodeMethodTypeS256, CodeMethodTypeNone:
		return true
	}
	return false
}

func responseTypeValid(responseType ResponseType) bool {
	if strings.TrimSpace(string(responseType)) == "" {
		return true
	}
	return responseType == CodeResponseType
}
