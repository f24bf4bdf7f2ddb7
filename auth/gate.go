package auth

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/sessions"
	"github.com/jrsteele09/go-spawn-hub/users"
	"github.com/rs/zerolog/log"
)

// Outcome of authenticating a request.
type Outcome struct {
	Authenticated bool
	Username      string
	Session       *sessions.Session
}

// LogoutHook runs after a user's session has been removed.
type LogoutHook func(username string)

// Gate authenticates requests by their hub session cookie.
type Gate struct {
	sessions sessions.Repo
	users    users.UserRepo
	maxAge   time.Duration
	secure   bool
	nowTime  func() time.Time
	hooks    []LogoutHook
}

type GateOption func(*Gate)

func WithSessionMaxAge(maxAge time.Duration) GateOption {
	return func(g *Gate) {
		g.maxAge = maxAge
	}
}

func WithSecureCookies(secure bool) GateOption {
	return func(g *Gate) {
		g.secure = secure
	}
}

func WithGateNowTime(nowFunc func() time.Time) GateOption {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

func WithLogoutHook(hook LogoutHook) GateOption {
	return func(g *Gate) {
		g.hooks = append(g.hooks, hook)
	}
}

func NewGate(sessionRepo sessions.Repo, userRepo users.UserRepo, options ...GateOption) (*Gate, error) {
	if sessionRepo == nil {
		return nil, errors.New("[NewGate] sessions repo is required")
	}
	if userRepo == nil {
		return nil, errors.New("[NewGate] users repo is required")
	}
	g := &Gate{
		sessions: sessionRepo,
		users:    userRepo,
		maxAge:   14 * 24 * time.Hour,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// SecureCookies reports whether cookies are issued with the Secure flag.
func (g *Gate) SecureCookies() bool {
	return g.secure
}

// Authenticate resolves the request's session cookie. It never writes to the
// store; any lookup failure leaves the request unauthenticated.
func (g *Gate) Authenticate(r *http.Request) Outcome {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Outcome{}
	}

	session, err := g.sessions.Get(cookie.Value)
	if err != nil {
		if !errors.Is(err, errors.ErrSessionNotFound) {
			log.Err(err).Msg("[Gate.Authenticate] session lookup failed")
		}
		return Outcome{}
	}
	if session.Expired(g.nowTime()) {
		return Outcome{}
	}

	user, err := g.users.Get(session.Username)
	if err != nil {
		if !errors.Is(err, errors.ErrUserNotFound) {
			log.Err(err).Str("user", session.Username).Msg("[Gate.Authenticate] user lookup failed")
		}
		return Outcome{}
	}
	if user.Blocked {
		return Outcome{}
	}

	return Outcome{Authenticated: true, Username: session.Username, Session: session}
}

// Login opens a session for username, replacing any session the user held,
// and sets the session cookie.
func (g *Gate) Login(w http.ResponseWriter, username string) (*sessions.Session, error) {
	now := g.nowTime()
	session, err := sessions.New(username, now, g.maxAge)
	if err != nil {
		return nil, errors.Wrapf(err, "[Gate.Login] sessions.New")
	}
	if err := g.sessions.Create(session); err != nil {
		return nil, errors.Wrapf(err, "[Gate.Login] sessions.Create")
	}
	if err := g.users.Touch(username, now); err != nil {
		log.Err(err).Str("user", username).Msg("[Gate.Login] failed to record activity")
	}
	SetCookie(w, SessionCookieName, session.Token, g.maxAge, g.secure)
	return session, nil
}

// Logout deletes the presented session and expires every hub cookie the
// request carried. It returns the outcome the request had before logging out.
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) Outcome {
	outcome := g.Authenticate(r)

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := g.sessions.Delete(cookie.Value); err != nil {
			log.Err(err).Msg("[Gate.Logout] failed to delete session")
		}
	}

	expired := map[string]bool{SessionCookieName: true}
	ExpireCookie(w, SessionCookieName, g.secure)
	for _, c := range r.Cookies() {
		if IsHubCookie(c.Name) && !expired[c.Name] {
			expired[c.Name] = true
			ExpireCookie(w, c.Name, g.secure)
			if owner, ok := AccessCookieOwner(c.Name); ok {
				log.Debug().Str("user", outcome.Username).Str("server", owner).Msg("access cookie dropped")
			}
		}
	}

	if outcome.Authenticated {
		for _, hook := range g.hooks {
			hook(outcome.Username)
		}
	}
	return outcome
}
