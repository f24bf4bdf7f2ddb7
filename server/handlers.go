package server

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/clients"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/internal/version"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/jrsteele09/go-spawn-hub/token"
	"github.com/jrsteele09/go-spawn-hub/users"
	"github.com/rs/zerolog/log"
)

// IndexHandler sends signed in users to their own server and everyone else
// to the login page.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if outcome := s.gate.Authenticate(r); outcome.Authenticated {
			http.Redirect(w, r, spawner.UserPrefix(outcome.Username), http.StatusFound)
			return
		}
		http.Redirect(w, r, RouteLogin, http.StatusFound)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	}
}

// UserServerHandler authorizes a request for /user/<name>/ and proxies it to
// that user's server, starting the server first when needed.
func (s *Server) UserServerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("name")
		if err := users.ValidateName(owner); err != nil {
			http.NotFound(w, r)
			return
		}

		outcome := s.gate.Authenticate(r)
		if !outcome.Authenticated {
			redirectToLogin(w, r)
			return
		}

		if _, err := s.repos.Users.Get(owner); err != nil {
			if errors.Is(err, errors.ErrUserNotFound) {
				s.renderError(w, http.StatusNotFound, outcome.Username, "There is no user named "+owner)
				return
			}
			log.Err(err).Str("user", owner).Msg("[UserServerHandler] user lookup failed")
			s.renderError(w, http.StatusInternalServerError, outcome.Username, "Failed to look up "+owner)
			return
		}

		claims := s.accessClaims(r, owner, outcome)
		if claims == nil {
			s.startUserAuthorization(w, r, owner, outcome.Username)
			return
		}
		if !s.auth.CanAccess(claims, owner) {
			log.Info().Str("user", owner).Str("requester", outcome.Username).Msg("access to server denied")
			s.renderError(w, http.StatusForbidden, outcome.Username,
				fmt.Sprintf("%s is not allowed to access the server of %s", outcome.Username, owner))
			return
		}

		opts, ok := s.table.Options(owner)
		if !ok {
			opts = s.defaults.Clone()
		}
		endpoint, err := s.table.EnsureRunning(r.Context(), owner, opts)
		if err != nil {
			if r.Context().Err() != nil {
				return // Client went away
			}
			log.Err(err).Str("user", owner).Msg("[UserServerHandler] server unavailable")
			s.renderError(w, http.StatusServiceUnavailable, outcome.Username,
				fmt.Sprintf("The server of %s could not be started, please try again later", owner))
			return
		}

		if err := s.repos.Users.Touch(outcome.Username, s.nowTime()); err != nil {
			log.Err(err).Str("user", outcome.Username).Msg("[UserServerHandler] failed to record activity")
		}
		s.dispatcher.Dispatch(w, r, owner, outcome.Username, endpoint)
	}
}

// accessClaims returns the claims of the access cookie for owner's server when
// it was issued to the signed in user under their current session.
func (s *Server) accessClaims(r *http.Request, owner string, outcome auth.Outcome) *token.Claims {
	cookie, err := r.Cookie(auth.AccessCookieName(owner))
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := s.auth.Identify(cookie.Value, clients.ClientIDFor(owner))
	if err != nil {
		log.Debug().Err(err).Str("user", owner).Msg("access cookie rejected")
		return nil
	}
	if claims.Subject != outcome.Username || claims.SessionID != outcome.Session.ID {
		return nil
	}
	return claims
}
