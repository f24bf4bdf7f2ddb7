package clients

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const clientIDPrefix = "user-"

// CallbackPath is the path on a user server that receives authorization codes.
func CallbackPath(owner string) string {
	return "/user/" + owner + "/oauth_callback"
}

// ClientIDFor returns the OAuth client id registered for owner's server.
func ClientIDFor(owner string) string {
	return clientIDPrefix + owner
}

// OwnerOf extracts the server owner from a client id.
func OwnerOf(clientID string) (string, bool) {
	if !strings.HasPrefix(clientID, clientIDPrefix) || len(clientID) == len(clientIDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(clientID, clientIDPrefix), true
}

// Client is the OAuth client a user server authenticates as when it redeems
// authorization codes at the hub.
type Client struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Secret      string `json:"-"`
	RedirectURI string `json:"redirect_uri"`
	Description string `json:"description"`
}

// NewForUser creates the client for owner's server with a fresh secret.
// baseURL is the hub's public URL without a trailing slash.
func NewForUser(owner, baseURL string) (*Client, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate client secret: %w", err)
	}
	return &Client{
		ID:          ClientIDFor(owner),
		Owner:       owner,
		Secret:      base64.RawURLEncoding.EncodeToString(b),
		RedirectURI: strings.TrimSuffix(baseURL, "/") + CallbackPath(owner),
		Description: "Server of " + owner,
	}, nil
}

// ValidateRedirectURI checks a requested redirect against the registered one.
func (c *Client) ValidateRedirectURI(redirectURI string) error {
	if redirectURI == "" || redirectURI != c.RedirectURI {
		return ErrInvalidRedirectURI
	}
	return nil
}
