package spawner

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// InProcess serves a minimal single-user application from inside the hub
// process. It stands in for the real per-user application in development and
// tests.
type InProcess struct {
	username string
	delay    time.Duration

	mu       sync.Mutex
	server   *http.Server
	opts     Options
	running  atomic.Bool
	starts   atomic.Int32
	startErr error
}

type InProcessOption func(*InProcess)

// WithStartDelay makes Start block for d, modelling a slow server.
func WithStartDelay(d time.Duration) InProcessOption {
	return func(p *InProcess) {
		p.delay = d
	}
}

// WithStartError makes every Start fail with err.
func WithStartError(err error) InProcessOption {
	return func(p *InProcess) {
		p.startErr = err
	}
}

func NewInProcess(username string, options ...InProcessOption) *InProcess {
	p := &InProcess{username: username}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// InProcessFactory returns a Factory that builds InProcess spawners.
func InProcessFactory(options ...InProcessOption) Factory {
	return func(username string) (Spawner, error) {
		return NewInProcess(username, options...), nil
	}
}

// Starts reports how many times Start has been called.
func (p *InProcess) Starts() int {
	return int(p.starts.Load())
}

func (p *InProcess) Start(ctx context.Context, opts Options) (Endpoint, error) {
	p.starts.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Endpoint{}, ctx.Err()
		}
	}
	if p.startErr != nil {
		return Endpoint{}, p.startErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return Endpoint{}, fmt.Errorf("server for %s already started", p.username)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Endpoint{}, fmt.Errorf("listen: %w", err)
	}
	p.opts = opts.Clone()
	p.server = &http.Server{
		Handler:           p.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	p.running.Store(true)

	srv := p.server
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Err(err).Str("user", p.username).Msg("in-process server stopped")
		}
		p.mu.Lock()
		if p.server == srv {
			p.server = nil
			p.running.Store(false)
		}
		p.mu.Unlock()
	}()

	return Endpoint{URL: "http://" + ln.Addr().String()}, nil
}

func (p *InProcess) Stop(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.mu.Unlock()

	if srv == nil {
		return nil
	}
	p.running.Store(false)
	return srv.Shutdown(ctx)
}

func (p *InProcess) Running() bool {
	return p.running.Load()
}

// Status is what the stub application reports about itself.
type Status struct {
	User              string            `json:"user"`
	Requester         string            `json:"requester"`
	Debug             bool              `json:"debug"`
	DisableUserConfig bool              `json:"disable_user_config"`
	Env               map[string]string `json:"env,omitempty"`
}

var treeTemplate = template.Must(template.New("tree").Parse(`<!DOCTYPE html>
<html><head><title>{{.User}} - Files</title></head>
<body>
<h1>Files of {{.User}}</h1>
<p>Signed in as {{.Requester}}</p>
<ul>
<li>debug: {{.Debug}}</li>
<li>disable_user_config: {{.DisableUserConfig}}</li>
</ul>
</body></html>
`))

func (p *InProcess) status(r *http.Request) Status {
	p.mu.Lock()
	opts := p.opts.Clone()
	p.mu.Unlock()
	return Status{
		User:              p.username,
		Requester:         r.Header.Get("X-Forwarded-User"),
		Debug:             opts.Debug,
		DisableUserConfig: opts.DisableUserConfig,
		Env:               opts.Env,
	}
}

func (p *InProcess) routes() http.Handler {
	prefix := UserPrefix(p.username)
	mux := http.NewServeMux()

	mux.HandleFunc(prefix+"tree", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := treeTemplate.Execute(w, p.status(r)); err != nil {
			log.Err(err).Msg("render tree")
		}
	})
	mux.HandleFunc(prefix+"api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.status(r))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == prefix || r.URL.Path == strings.TrimSuffix(prefix, "/") {
			http.Redirect(w, r, prefix+"tree", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	return mux
}
