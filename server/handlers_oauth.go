package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-spawn-hub/auth/flows"
	"github.com/jrsteele09/go-spawn-hub/grants"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/oauthmodel"
	"github.com/rs/zerolog/log"
)

// ConsentScope is one permission shown on the consent page.
type ConsentScope struct {
	Name        string
	Description string
}

// ConsentPageData contains data for rendering the consent page
type ConsentPageData struct {
	PageData
	RequestID string
	Owner     string
	Scopes    []ConsentScope
}

func describeScope(scope string) string {
	if scope == grants.ScopeIdentify {
		return "Know your username"
	}
	if owner, ok := grants.IsAccessScope(scope); ok {
		return "Access the server of " + owner
	}
	return scope
}

func (s *Server) renderConsent(w http.ResponseWriter, req *flows.Request) {
	data := ConsentPageData{
		PageData:  PageData{AppName: s.config.GetAppName(), User: req.Requester},
		RequestID: req.ID,
		Owner:     req.Owner,
	}
	for _, scope := range req.Scopes {
		data.Scopes = append(data.Scopes, ConsentScope{Name: scope, Description: describeScope(scope)})
	}
	s.renderTemplate(w, http.StatusOK, "consent.html", data)
}

// OAuth2AuthorizeHandler begins the authorization flow of a user server
func (s *Server) OAuth2AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome := s.gate.Authenticate(r)
		if !outcome.Authenticated {
			redirectToLogin(w, r)
			return
		}

		params := oauthmodel.AuthorizationParametersFromQuery(r.URL.Query())
		consent := func(req *flows.Request) {
			s.renderConsent(w, req)
		}
		redirect := func(redirectURI, code, state string) {
			callbackRedirect(w, r, redirectURI, code, state)
		}

		if err := s.auth.Authorize(r.Context(), params, outcome.Session, consent, redirect); err != nil {
			s.authorizationError(w, outcome.Username, err)
		}
	}
}

// ConsentPostHandler records the requester's consent and continues the flow
func (s *Server) ConsentPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome := s.gate.Authenticate(r)
		if !outcome.Authenticated {
			redirectToLogin(w, r)
			return
		}

		// Consent is only accepted from the hub's own consent page
		if referer := r.Referer(); referer != "" {
			u, ok := s.sameOrigin(r, referer)
			if !ok || u.Path != RouteOAuth2Authorize {
				log.Warn().Str("user", outcome.Username).Str("referer", referer).Msg("consent submitted from a foreign page")
				s.renderError(w, http.StatusForbidden, outcome.Username, "Consent must be given on the hub's authorization page")
				return
			}
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		requestID := r.PostFormValue("request_id")
		scopes := r.PostForm["scopes"]
		redirect := func(redirectURI, code, state string) {
			callbackRedirect(w, r, redirectURI, code, state)
		}

		if err := s.auth.Consent(r.Context(), requestID, outcome.Session, scopes, redirect); err != nil {
			s.authorizationError(w, outcome.Username, err)
		}
	}
}

func (s *Server) authorizationError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, errors.ErrUserBlocked), errors.Is(err, errors.ErrAccessDenied):
		s.renderError(w, http.StatusForbidden, username, "You are not allowed to authorize this request")
	case errors.Is(err, errors.ErrConsentNotFound):
		s.renderError(w, http.StatusBadRequest, username, "This authorization request does not exist")
	case errors.Is(err, errors.ErrConsentExpired):
		s.renderError(w, http.StatusBadRequest, username, "This authorization request has expired, please try again")
	case errors.Is(err, errors.ErrInvalidScope):
		s.renderError(w, http.StatusBadRequest, username, "Invalid scope: "+err.Error())
	case errors.Is(err, errors.ErrInvalidRequest),
		errors.Is(err, errors.ErrInvalidClient),
		errors.Is(err, errors.ErrInvalidRedirectURI):
		s.renderError(w, http.StatusBadRequest, username, "Invalid authorization request: "+err.Error())
	default:
		log.Err(err).Str("user", username).Msg("authorization failed")
		s.renderError(w, http.StatusInternalServerError, username, "Authorization failed")
	}
}

// OAuth2TokenHandler exchanges an authorization code for an access token
func (s *Server) OAuth2TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauthmodel.ErrorInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenResponse, err := s.auth.Exchange(r.Context(), oauthmodel.TokenRequestFromHTTP(r))
		if err != nil {
			switch {
			case errors.Is(err, oauthmodel.ErrUnsupportedGrantType):
				writeJSONError(w, oauthmodel.ErrorUnsupportedGrantType, err.Error(), http.StatusBadRequest)
			case errors.Is(err, errors.ErrInvalidClient):
				writeJSONError(w, oauthmodel.ErrorInvalidClient, err.Error(), http.StatusUnauthorized)
			case errors.Is(err, errors.ErrInvalidGrant):
				writeJSONError(w, oauthmodel.ErrorInvalidGrant, err.Error(), http.StatusBadRequest)
			case errors.Is(err, errors.ErrInvalidRequest):
				writeJSONError(w, oauthmodel.ErrorInvalidRequest, err.Error(), http.StatusBadRequest)
			default:
				log.Err(err).Msg("[OAuth2TokenHandler] exchange failed")
				writeJSONError(w, oauthmodel.ErrorServerError, "token exchange failed", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse)
	}
}

// UserModel is the identity reported by /hub/api/user.
type UserModel struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
	Admin  bool     `json:"admin"`
}

// CurrentUserHandler identifies the holder of a bearer token, falling back to
// the hub session cookie.
func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw := bearerToken(r); raw != "" {
			claims, err := s.auth.Identify(raw, "")
			if err != nil {
				writeJSONError(w, "invalid_token", err.Error(), http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, UserModel{
				Name:   claims.Subject,
				Scopes: claims.Scopes,
				Admin:  s.auth.IsAdmin(claims.Subject),
			})
			return
		}

		outcome := s.gate.Authenticate(r)
		if !outcome.Authenticated {
			writeJSONError(w, "invalid_token", "authentication required", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, UserModel{
			Name:   outcome.Username,
			Scopes: []string{grants.ScopeIdentify},
			Admin:  s.auth.IsAdmin(outcome.Username),
		})
	}
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}
