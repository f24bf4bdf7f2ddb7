package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	// SessionCookieName carries the hub session token.
	SessionCookieName = "hub-session"

	accessCookiePrefix = "hub-user-"
)

// AccessCookieName is the cookie holding the access token for owner's server.
// Usernames may hold characters a cookie name cannot, so the owner is encoded.
func AccessCookieName(owner string) string {
	return accessCookiePrefix + base64.RawURLEncoding.EncodeToString([]byte(owner))
}

// AccessCookieOwner returns the owner encoded in an access cookie name.
func AccessCookieOwner(name string) (string, bool) {
	encoded, ok := strings.CutPrefix(name, accessCookiePrefix)
	if !ok || encoded == "" {
		return "", false
	}
	owner, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(owner), true
}

// IsHubCookie reports whether name is a cookie the hub issues.
func IsHubCookie(name string) bool {
	return name == SessionCookieName || strings.HasPrefix(name, accessCookiePrefix)
}

// SetCookie writes a hub cookie scoped to the whole site.
func SetCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ExpireCookie instructs the client to drop a hub cookie.
func ExpireCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
