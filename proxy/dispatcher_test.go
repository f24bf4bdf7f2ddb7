package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/stretchr/testify/require"
)

type seen struct {
	Method        string
	Path          string
	Query         string
	Body          string
	User          string
	Authorization string
	Cookies       []string
}

func echoBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s := seen{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Body:          string(body),
			User:          r.Header.Get(ForwardedUserHeader),
			Authorization: r.Header.Get("Authorization"),
		}
		for _, c := range r.Cookies() {
			s.Cookies = append(s.Cookies, c.Name)
		}
		http.SetCookie(w, &http.Cookie{Name: "hub-session", Value: "forged", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: auth.AccessCookieName("nandy"), Value: "forged", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "_xsrf", Value: "app", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchForwardsRequest(t *testing.T) {
	backend := echoBackend(t)
	d := New()

	r := httptest.NewRequest(http.MethodPost, "/user/nandy/api/contents?type=file", strings.NewReader(`{"name":"a.txt"}`))
	r.Header.Set("Authorization", "Bearer hub-token")
	r.AddCookie(&http.Cookie{Name: "hub-session", Value: "secret"})
	r.AddCookie(&http.Cookie{Name: auth.AccessCookieName("nandy"), Value: "jwt"})
	r.AddCookie(&http.Cookie{Name: "_xsrf", Value: "abc"})
	r.Header.Set(ForwardedUserHeader, "spoofed")
	w := httptest.NewRecorder()

	d.Dispatch(w, r, "nandy", "burgess", spawner.Endpoint{URL: backend.URL})

	resp := w.Result()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got seen
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, seen{
		Method:  http.MethodPost,
		Path:    "/user/nandy/api/contents",
		Query:   "type=file",
		Body:    `{"name":"a.txt"}`,
		User:    "burgess",
		Cookies: []string{"_xsrf"},
	}, got)

	setCookies := resp.Header.Values("Set-Cookie")
	require.Len(t, setCookies, 1)
	require.True(t, strings.HasPrefix(setCookies[0], "_xsrf="))
}

func TestDispatchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var reported []string
	d := New(WithUnreachableHook(func(owner string) { reported = append(reported, owner) }))

	w := httptest.NewRecorder()
	d.Dispatch(w, httptest.NewRequest(http.MethodGet, "/user/nandy/tree", nil), "nandy", "nandy", spawner.Endpoint{URL: url})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "nandy")
	require.Equal(t, []string{"nandy"}, reported)

	w = httptest.NewRecorder()
	d.Dispatch(w, httptest.NewRequest(http.MethodGet, "/user/nandy/tree", nil), "nandy", "nandy", spawner.Endpoint{})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, reported, 2)
}
