package server

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-spawn-hub/server/authflowrepo"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/rs/zerolog/log"
)

// OIDCLoginHandler starts a login at the upstream identity provider.
func (s *Server) OIDCLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oidc == nil {
			http.NotFound(w, r)
			return
		}

		state, err1 := generateRandomString(32)
		nonce, err2 := generateRandomString(32)
		verifier, err3 := generateRandomString(32)
		if err1 != nil || err2 != nil || err3 != nil {
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    safeNext(r.URL.Query().Get("next"), ""),
			CreatedAt:    s.nowTime(),
		})
		if err != nil {
			log.Err(err).Msg("[OIDCLoginHandler] failed to store state")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, s.oidc.LoginURL(state, nonce, verifier), http.StatusFound)
	}
}

// OIDCCallbackHandler completes an upstream login and opens a hub session.
func (s *Server) OIDCCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oidc == nil {
			http.NotFound(w, r)
			return
		}

		state := r.FormValue("state")
		code := r.FormValue("code")
		if errorParam := r.FormValue("error"); errorParam != "" {
			s.renderError(w, http.StatusBadRequest, "", fmt.Sprintf("Login failed: %s %s", errorParam, r.FormValue("error_description")))
			return
		}
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		authState, err := s.authState.Take(state)
		if err != nil || authState.Owner != "" {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		user, err := s.oidc.Callback(r.Context(), code, authState.CodeVerifier, authState.Nonce)
		if err != nil {
			log.Err(err).Msg("[OIDCCallbackHandler] upstream login failed")
			s.renderError(w, http.StatusUnauthorized, "", "Login with the identity provider failed")
			return
		}
		if user.Blocked {
			s.renderError(w, http.StatusForbidden, "", "This account has been blocked")
			return
		}

		if _, err := s.gate.Login(w, user.Name); err != nil {
			log.Err(err).Str("user", user.Name).Msg("[OIDCCallbackHandler] failed to open session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		log.Info().Str("user", user.Name).Msg("user logged in upstream")

		http.Redirect(w, r, safeNext(authState.ReturnURL, spawner.UserPrefix(user.Name)), http.StatusSeeOther)
	}
}
