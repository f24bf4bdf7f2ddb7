// Package routes tracks which user servers exist, their lifecycle state and
// where they can be reached.
package routes

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State of a user's server.
type State string

const (
	Unspawned State = "unspawned"
	Pending   State = "pending"
	Running   State = "running"
	Stopping  State = "stopping"
	Stopped   State = "stopped"
)

// Backend is a snapshot of one user's server.
type Backend struct {
	Owner     string           `json:"owner"`
	State     State            `json:"state"`
	Endpoint  spawner.Endpoint `json:"endpoint"`
	Options   spawner.Options  `json:"options"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

type entry struct {
	spawner spawner.Spawner
	backend Backend
	cancel  context.CancelFunc // set while Pending
	spawned bool               // backend.Options came from a spawn
}

// Table maps users to their servers. At most one server per user is live and
// at most one spawn per user runs at a time.
type Table struct {
	factory spawner.Factory
	timeout time.Duration
	client  *http.Client
	nowTime func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
}

type TableOption func(*Table)

// WithSpawnTimeout bounds start plus readiness for every spawn.
func WithSpawnTimeout(timeout time.Duration) TableOption {
	return func(t *Table) {
		t.timeout = timeout
	}
}

// WithReadinessClient sets the client used to poll a starting server.
func WithReadinessClient(client *http.Client) TableOption {
	return func(t *Table) {
		t.client = client
	}
}

func WithNowFunc(now func() time.Time) TableOption {
	return func(t *Table) {
		t.nowTime = now
	}
}

func NewTable(factory spawner.Factory, options ...TableOption) (*Table, error) {
	if factory == nil {
		return nil, errors.New("[routes.NewTable] spawner factory is required")
	}
	t := &Table{
		factory: factory,
		timeout: 60 * time.Second,
		nowTime: time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// EnsureRunning returns the endpoint of name's server, spawning it with opts
// when it is not running. A running server keeps the options it was started
// with. Concurrent callers for one user share a single spawn; the first
// caller's opts are used. ctx only bounds this caller's wait, the spawn itself
// continues for the others and is bounded by the spawn timeout.
func (t *Table) EnsureRunning(ctx context.Context, name string, opts spawner.Options) (spawner.Endpoint, error) {
	if b := t.Get(name); b.State == Running {
		return b.Endpoint, nil
	}

	ch := t.group.DoChan(name, func() (any, error) {
		return t.spawn(name, opts)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return spawner.Endpoint{}, res.Err
		}
		return res.Val.(spawner.Endpoint), nil
	case <-ctx.Done():
		return spawner.Endpoint{}, ctx.Err()
	}
}

func (t *Table) spawn(name string, opts spawner.Options) (spawner.Endpoint, error) {
	spawnCtx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	t.mu.Lock()
	e, err := t.entryLocked(name)
	if err != nil {
		t.mu.Unlock()
		return spawner.Endpoint{}, errors.Wrapf(errors.ErrSpawnFailed, "%s", err.Error())
	}
	switch e.backend.State {
	case Running:
		ep := e.backend.Endpoint
		t.mu.Unlock()
		return ep, nil
	case Stopping:
		t.mu.Unlock()
		return spawner.Endpoint{}, errors.Wrapf(errors.ErrSpawnFailed, "server for %s is stopping", name)
	}
	e.backend.State = Pending
	e.backend.Options = opts.Clone()
	e.backend.Endpoint = spawner.Endpoint{}
	e.backend.LastError = ""
	e.spawned = true
	e.cancel = cancel
	sp := e.spawner
	t.mu.Unlock()

	log.Info().Str("user", name).Bool("debug", opts.Debug).Bool("disable_user_config", opts.DisableUserConfig).Msg("spawning server")
	started := t.nowTime()

	ep, err := sp.Start(spawnCtx, opts)
	if err == nil {
		err = spawner.WaitReady(spawnCtx, t.client, ep.URL+spawner.UserPrefix(name), sp.Running)
	}
	if err == nil && spawnCtx.Err() != nil {
		err = spawnCtx.Err()
	}

	if err != nil {
		err = classify(spawnCtx, name, err)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if stopErr := sp.Stop(stopCtx); stopErr != nil {
			log.Err(stopErr).Str("user", name).Msg("failed to clean up after spawn failure")
		}
		stopCancel()

		t.mu.Lock()
		e.backend.State = Stopped
		e.backend.LastError = err.Error()
		e.cancel = nil
		t.mu.Unlock()

		log.Err(err).Str("user", name).Msg("spawn failed")
		return spawner.Endpoint{}, err
	}

	t.mu.Lock()
	e.backend.State = Running
	e.backend.Endpoint = ep
	e.backend.StartedAt = started
	e.cancel = nil
	t.mu.Unlock()

	log.Info().Str("user", name).Str("endpoint", ep.URL).Dur("took", t.nowTime().Sub(started)).Msg("server ready")
	return ep, nil
}

func classify(ctx context.Context, name string, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return errors.Wrapf(errors.ErrSpawnTimeout, "%s", name)
	case context.Canceled:
		return errors.Wrapf(errors.ErrSpawnCancelled, "%s", name)
	}
	return errors.Wrapf(errors.ErrSpawnFailed, "%s: %s", name, err.Error())
}

func (t *Table) entryLocked(name string) (*entry, error) {
	if e, ok := t.entries[name]; ok {
		return e, nil
	}
	sp, err := t.factory(name)
	if err != nil {
		return nil, err
	}
	e := &entry{spawner: sp, backend: Backend{Owner: name, State: Unspawned}}
	t.entries[name] = e
	return e, nil
}

// Cancel aborts an in-flight spawn for name. Waiters receive ErrSpawnCancelled.
// It reports whether a spawn was pending.
func (t *Table) Cancel(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[name]
	if !ok || e.backend.State != Pending || e.cancel == nil {
		return false
	}
	e.cancel()
	log.Info().Str("user", name).Msg("spawn cancelled")
	return true
}

// Stop shuts down name's server. Stopping an unknown or stopped server is a
// no-op; a pending spawn is cancelled.
func (t *Table) Stop(ctx context.Context, name string) error {
	t.mu.Lock()
	e, ok := t.entries[name]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	switch e.backend.State {
	case Pending:
		if e.cancel != nil {
			e.cancel()
		}
		t.mu.Unlock()
		return nil
	case Running:
		e.backend.State = Stopping
	default:
		t.mu.Unlock()
		return nil
	}
	sp := e.spawner
	t.mu.Unlock()

	err := sp.Stop(ctx)

	t.mu.Lock()
	e.backend.State = Stopped
	e.backend.Endpoint = spawner.Endpoint{}
	if err != nil {
		e.backend.LastError = err.Error()
	}
	t.mu.Unlock()

	if err != nil {
		return errors.Wrapf(err, "[routes.Stop] %s", name)
	}
	log.Info().Str("user", name).Msg("server stopped")
	return nil
}

// StopAll stops every running server.
func (t *Table) StopAll(ctx context.Context) {
	for _, b := range t.List() {
		t.Cancel(b.Owner)
		if err := t.Stop(ctx, b.Owner); err != nil {
			log.Err(err).Str("user", b.Owner).Msg("stop on shutdown failed")
		}
	}
}

// Get returns a snapshot of name's server.
func (t *Table) Get(name string) Backend {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[name]
	if !ok {
		return Backend{Owner: name, State: Unspawned}
	}
	return e.snapshot()
}

// List returns snapshots of every known server ordered by owner.
func (t *Table) List() []Backend {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Backend, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Options returns the options of name's most recent spawn.
func (t *Table) Options(name string) (spawner.Options, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[name]
	if !ok || !e.spawned {
		return spawner.Options{}, false
	}
	return e.backend.Options.Clone(), true
}

// Poll reconciles name's entry with its spawner: a server recorded as running
// whose process has gone is marked stopped.
func (t *Table) Poll(name string) Backend {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[name]
	if !ok {
		return Backend{Owner: name, State: Unspawned}
	}
	if e.backend.State == Running && !e.spawner.Running() {
		e.backend.State = Stopped
		e.backend.Endpoint = spawner.Endpoint{}
		e.backend.LastError = errors.ErrServerNotRunning.Error()
		log.Warn().Str("user", name).Msg("server is no longer running")
	}
	return e.snapshot()
}

func (e *entry) snapshot() Backend {
	b := e.backend
	b.Options = e.backend.Options.Clone()
	return b
}
