package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/sessions"
	fakesessionrepo "github.com/jrsteele09/go-spawn-hub/sessions/repofake"
	"github.com/jrsteele09/go-spawn-hub/users"
	fakeuserrepo "github.com/jrsteele09/go-spawn-hub/users/repofake"
	"github.com/stretchr/testify/require"
)

type brokenSessions struct{ sessions.Repo }

func (brokenSessions) Get(string) (*sessions.Session, error) {
	return nil, http.ErrServerClosed
}

func newGate(t *testing.T, options ...auth.GateOption) (*auth.Gate, *fakesessionrepo.FakeSessionRepo, users.UserRepo) {
	t.Helper()
	sr := fakesessionrepo.NewFakeSessionRepo()
	ur := fakeuserrepo.NewFakeUserRepo()
	require.NoError(t, ur.Upsert(&users.User{Name: "nandy"}))
	g, err := auth.NewGate(sr, ur, options...)
	require.NoError(t, err)
	return g, sr, ur
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/user/nandy/tree", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestGateUnauthenticatedWithoutCookie(t *testing.T) {
	g, _, _ := newGate(t)
	require.False(t, g.Authenticate(requestWith()).Authenticated)
	require.False(t, g.Authenticate(requestWith(&http.Cookie{Name: auth.SessionCookieName, Value: "bogus"})).Authenticated)
}

func TestGateLoginThenAuthenticate(t *testing.T) {
	g, sr, _ := newGate(t)

	w := httptest.NewRecorder()
	session, err := g.Login(w, "nandy")
	require.NoError(t, err)
	require.Equal(t, 1, sr.Len())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, auth.SessionCookieName, cookies[0].Name)
	require.Equal(t, session.Token, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	outcome := g.Authenticate(requestWith(cookies[0]))
	require.True(t, outcome.Authenticated)
	require.Equal(t, "nandy", outcome.Username)
	require.Equal(t, session.ID, outcome.Session.ID)
}

func TestGateExpiredSession(t *testing.T) {
	now := time.Now()
	g, _, _ := newGate(t, auth.WithSessionMaxAge(time.Minute), auth.WithGateNowTime(func() time.Time { return now }))

	w := httptest.NewRecorder()
	_, err := g.Login(w, "nandy")
	require.NoError(t, err)
	cookie := w.Result().Cookies()[0]

	now = now.Add(2 * time.Minute)
	require.False(t, g.Authenticate(requestWith(cookie)).Authenticated)
}

func TestGateBlockedUser(t *testing.T) {
	g, _, ur := newGate(t)
	w := httptest.NewRecorder()
	_, err := g.Login(w, "nandy")
	require.NoError(t, err)

	require.NoError(t, ur.SetBlocked("nandy", true))
	require.False(t, g.Authenticate(requestWith(w.Result().Cookies()[0])).Authenticated)
}

func TestGateFailsClosedOnStoreError(t *testing.T) {
	ur := fakeuserrepo.NewFakeUserRepo()
	g, err := auth.NewGate(brokenSessions{fakesessionrepo.NewFakeSessionRepo()}, ur)
	require.NoError(t, err)
	require.False(t, g.Authenticate(requestWith(&http.Cookie{Name: auth.SessionCookieName, Value: "x"})).Authenticated)
}

func TestGateLogoutExpiresEveryHubCookie(t *testing.T) {
	var loggedOut []string
	g, sr, _ := newGate(t, auth.WithLogoutHook(func(username string) { loggedOut = append(loggedOut, username) }))

	w := httptest.NewRecorder()
	_, err := g.Login(w, "nandy")
	require.NoError(t, err)
	sessionCookie := w.Result().Cookies()[0]

	w = httptest.NewRecorder()
	outcome := g.Logout(w, requestWith(
		sessionCookie,
		&http.Cookie{Name: auth.AccessCookieName("nandy"), Value: "jwt"},
		&http.Cookie{Name: auth.AccessCookieName("burgess"), Value: "jwt"},
		&http.Cookie{Name: "unrelated", Value: "keep"},
	))
	require.True(t, outcome.Authenticated)
	require.Equal(t, []string{"nandy"}, loggedOut)
	require.Equal(t, 0, sr.Len())

	expired := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		require.Less(t, c.MaxAge, 0)
		expired[c.Name] = true
	}
	require.Equal(t, map[string]bool{
		auth.SessionCookieName:           true,
		auth.AccessCookieName("nandy"):   true,
		auth.AccessCookieName("burgess"): true,
	}, expired)

	// Logging out without a session is harmless and runs no hooks
	w = httptest.NewRecorder()
	require.False(t, g.Logout(w, requestWith()).Authenticated)
	require.Len(t, loggedOut, 1)
}

func TestIsHubCookie(t *testing.T) {
	require.True(t, auth.IsHubCookie("hub-session"))
	require.True(t, auth.IsHubCookie(auth.AccessCookieName("nandy")))
	require.False(t, auth.IsHubCookie("_xsrf"))
}

func TestAccessCookieNameIsCookieSafe(t *testing.T) {
	for _, owner := range []string{"nandy", "ann@example.com", "a=b;c,d", "zoë (dev)"} {
		name := auth.AccessCookieName(owner)
		require.True(t, auth.IsHubCookie(name))

		// net/http drops cookies whose name is not a valid token
		w := httptest.NewRecorder()
		auth.SetCookie(w, name, "jwt", time.Minute, false)
		require.Len(t, w.Result().Cookies(), 1, owner)
		require.Equal(t, name, w.Result().Cookies()[0].Name)

		decoded, ok := auth.AccessCookieOwner(name)
		require.True(t, ok)
		require.Equal(t, owner, decoded)
	}

	_, ok := auth.AccessCookieOwner("hub-session")
	require.False(t, ok)
	_, ok = auth.AccessCookieOwner("hub-user-%%%")
	require.False(t, ok)
}
