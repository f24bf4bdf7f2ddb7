package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	PageData
	Next        string // Where to go once signed in
	Username    string // Preserve username on error
	OIDCEnabled bool
}

// LoginPageUIHandler displays the login page (GET /hub/login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := r.URL.Query().Get("next")

		if outcome := s.gate.Authenticate(r); outcome.Authenticated {
			http.Redirect(w, r, safeNext(next, spawner.UserPrefix(outcome.Username)), http.StatusFound)
			return
		}

		s.renderTemplate(w, http.StatusOK, "login.html", LoginPageData{
			PageData:    PageData{AppName: s.config.GetAppName()},
			Next:        safeNext(next, ""),
			OIDCEnabled: s.oidc != nil,
		})
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		username := strings.TrimSpace(r.PostFormValue("username"))
		password := r.PostFormValue("password")
		next := safeNext(r.PostFormValue("next"), "")

		data := LoginPageData{
			PageData:    PageData{AppName: s.config.GetAppName()},
			Next:        next,
			Username:    username,
			OIDCEnabled: s.oidc != nil,
		}

		user, err := s.passwords.Authenticate(r.Context(), username, password)
		if err != nil {
			switch {
			case errors.Is(err, errors.ErrUserBlocked):
				data.Error = "This account has been blocked"
				s.renderTemplate(w, http.StatusForbidden, "login.html", data)
			case errors.Is(err, errors.ErrInvalidCredentials):
				data.Error = "Invalid username or password"
				s.renderTemplate(w, http.StatusUnauthorized, "login.html", data)
			default:
				log.Err(err).Msg("[LoginSubmissionHandler] authentication failed")
				data.Error = "Sign in is unavailable, please try again"
				s.renderTemplate(w, http.StatusInternalServerError, "login.html", data)
			}
			return
		}

		if _, err := s.gate.Login(w, user.Name); err != nil {
			log.Err(err).Str("user", user.Name).Msg("[LoginSubmissionHandler] failed to open session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		log.Info().Str("user", user.Name).Msg("user logged in")

		http.Redirect(w, r, safeNext(next, spawner.UserPrefix(user.Name)), http.StatusSeeOther)
	}
}

// LogoutHandler ends the hub session and drops every hub cookie, which also
// revokes the access tokens user servers accepted from it.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome := s.gate.Logout(w, r)
		if outcome.Authenticated {
			log.Info().Str("user", outcome.Username).Msg("user logged out")
		}
		http.Redirect(w, r, RouteLogin, http.StatusFound)
	}
}
