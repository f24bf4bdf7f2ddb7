package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// safeNext keeps post-login destinations on the hub. Anything that is not a
// local absolute path falls back.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

func loginURL(next string) string {
	if next == "" {
		return RouteLogin
	}
	return RouteLogin + "?next=" + url.QueryEscape(next)
}

// redirectToLogin sends an unauthenticated browser to the login page, coming
// back to the current URL afterwards.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	next := ""
	if r.Method == http.MethodGet {
		next = r.URL.RequestURI()
	}
	http.Redirect(w, r, loginURL(next), http.StatusFound)
}

// callbackRedirect sends the browser back to a client with an authorization code.
func callbackRedirect(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// bearerToken extracts the token of an "Authorization: Bearer" or
// "Authorization: token" header.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	switch strings.ToLower(parts[0]) {
	case "bearer", "token":
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// sameOrigin reports whether raw is a URL on this hub, either as the request
// reached us or as the configured base URL.
func (s *Server) sameOrigin(r *http.Request, raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if strings.EqualFold(u.Host, r.Host) && strings.EqualFold(u.Scheme, getScheme(r)) {
		return u, true
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, false
	}
	return u, strings.EqualFold(u.Host, base.Host) && strings.EqualFold(u.Scheme, base.Scheme)
}
