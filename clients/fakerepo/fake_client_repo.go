package fakeclientrepo

import (
	"fmt"
	"sync"

	"github.com/jrsteele09/go-spawn-hub/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() clients.Repo {
	return &FakeClientRepo{
		clients: make(map[string]clients.Client),
	}
}

func (cr *FakeClientRepo) Get(clientID string) (*clients.Client, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	c, ok := cr.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", clients.ErrClientNotFound, clientID)
	}
	return &c, nil
}

func (cr *FakeClientRepo) Upsert(client *clients.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("client id is required")
	}
	cr.lock.Lock()
	defer cr.lock.Unlock()

	cr.clients[client.ID] = *client
	return nil
}

func (cr *FakeClientRepo) Delete(clientID string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	delete(cr.clients, clientID)
	return nil
}
