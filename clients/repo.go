package clients

import "errors"

var (
	ErrInvalidRedirectURI = errors.New("redirect uri does not match client")
	ErrClientNotFound     = errors.New("client not found")
)

type Repo interface {
	Get(clientID string) (*Client, error)
	Upsert(client *Client) error
	Delete(clientID string) error
}
