// Package spawner defines how the hub starts and stops per-user servers.
package spawner

import (
	"context"
	"maps"
	"net/url"
	"strings"
)

// Options are fixed for the lifetime of one server instance. Changing them
// needs a stop and a fresh start.
type Options struct {
	Debug             bool              `json:"debug"`
	DisableUserConfig bool              `json:"disable_user_config"`
	Env               map[string]string `json:"env,omitempty"`
}

// Clone returns a copy of o that shares no maps with it.
func (o Options) Clone() Options {
	c := o
	if o.Env != nil {
		c.Env = maps.Clone(o.Env)
	}
	return c
}

// Merge overlays o on top of defaults: flags set in either are set, and env
// entries in o win.
func (o Options) Merge(defaults Options) Options {
	merged := Options{
		Debug:             o.Debug || defaults.Debug,
		DisableUserConfig: o.DisableUserConfig || defaults.DisableUserConfig,
	}
	if len(o.Env) > 0 || len(defaults.Env) > 0 {
		merged.Env = make(map[string]string, len(o.Env)+len(defaults.Env))
		maps.Copy(merged.Env, defaults.Env)
		maps.Copy(merged.Env, o.Env)
	}
	return merged
}

// Endpoint is where a running server accepts HTTP traffic.
type Endpoint struct {
	URL string `json:"url"` // scheme://host:port, no path
}

// Parse returns the endpoint as a URL.
func (e Endpoint) Parse() (*url.URL, error) {
	return url.Parse(strings.TrimSuffix(e.URL, "/"))
}

// Spawner runs one user's server.
type Spawner interface {
	// Start launches the server and returns once its process is up. Callers
	// wait for readiness separately.
	Start(ctx context.Context, opts Options) (Endpoint, error)

	// Stop terminates the server. Stopping a stopped server is a no-op.
	Stop(ctx context.Context) error

	// Running reports whether the server is still alive.
	Running() bool
}

// Factory builds the spawner for a user.
type Factory func(username string) (Spawner, error)

// UserPrefix is the path every request to username's server starts with.
func UserPrefix(username string) string {
	return "/user/" + username + "/"
}
