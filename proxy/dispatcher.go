// Package proxy forwards authorized requests to user servers.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/rs/zerolog/log"
)

// ForwardedUserHeader names the hub user on behalf of whom a request is sent.
const ForwardedUserHeader = "X-Forwarded-User"

// Dispatcher reverse proxies to user servers. The hub's own credentials never
// reach a user server, in either direction.
type Dispatcher struct {
	transport     http.RoundTripper
	onUnreachable func(owner string)
}

type Option func(*Dispatcher)

func WithTransport(rt http.RoundTripper) Option {
	return func(d *Dispatcher) {
		d.transport = rt
	}
}

// WithUnreachableHook is called with the owner whenever their server cannot
// be reached.
func WithUnreachableHook(hook func(owner string)) Option {
	return func(d *Dispatcher) {
		d.onUnreachable = hook
	}
}

func New(options ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Dispatch forwards r to owner's server at endpoint on behalf of identity.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, owner, identity string, endpoint spawner.Endpoint) {
	target, err := endpoint.Parse()
	if err != nil || target.Host == "" {
		log.Error().Str("user", owner).Str("endpoint", endpoint.URL).Msg("invalid server endpoint")
		d.unreachable(w, owner)
		return
	}

	rp := &httputil.ReverseProxy{
		Transport: d.transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
			stripHubCredentials(pr.Out)
			pr.Out.Header.Set(ForwardedUserHeader, identity)
		},
		ModifyResponse: func(resp *http.Response) error {
			stripHubSetCookies(resp.Header)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
				return // client went away
			}
			log.Err(err).Str("user", owner).Str("endpoint", endpoint.URL).Msg(errors.ErrGatewayUnreachable.Error())
			d.unreachable(w, owner)
		},
	}
	rp.ServeHTTP(w, r)
}

func (d *Dispatcher) unreachable(w http.ResponseWriter, owner string) {
	if d.onUnreachable != nil {
		d.onUnreachable(owner)
	}
	http.Error(w, fmt.Sprintf("502 Bad Gateway: the server of %s is not reachable", owner), http.StatusBadGateway)
}

func stripHubCredentials(out *http.Request) {
	out.Header.Del("Authorization")

	cookies := out.Cookies()
	out.Header.Del("Cookie")
	kept := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if !auth.IsHubCookie(c.Name) {
			kept = append(kept, c.String())
		}
	}
	if len(kept) > 0 {
		out.Header.Set("Cookie", strings.Join(kept, "; "))
	}
}

func stripHubSetCookies(h http.Header) {
	values := h.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}
	h.Del("Set-Cookie")
	for _, v := range values {
		name, _, _ := strings.Cut(v, "=")
		if !auth.IsHubCookie(strings.TrimSpace(name)) {
			h.Add("Set-Cookie", v)
		}
	}
}
