package oauthmodel

// TokenResponse represents the response from an OAuth2 token request (RFC 6749).
type TokenResponse struct {
	// AccessToken is the JWT a user server accepts for its owner's routes.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in,omitempty"`

	// Scope is the space separated list of scopes the token carries. It may be
	// less than requested.
	Scope string `json:"scope,omitempty"`
}
