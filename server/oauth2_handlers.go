package server

import (
	"net/http"

	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/grants"
	"github.com/jrsteele09/go-spawn-hub/server/authflowrepo"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// userOAuthConfig is the OAuth client owner's server uses against the hub.
func (s *Server) userOAuthConfig(owner string) (*oauth2.Config, error) {
	client, err := s.auth.EnsureClient(owner)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     client.ID,
		ClientSecret: client.Secret,
		RedirectURL:  client.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.baseURL + RouteOAuth2Authorize,
			TokenURL:  s.baseURL + RouteOAuth2Token,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{grants.ScopeIdentify},
	}, nil
}

// startUserAuthorization sends the browser through the hub's authorization
// endpoint on behalf of owner's server and brings it back to the current URL.
func (s *Server) startUserAuthorization(w http.ResponseWriter, r *http.Request, owner, requester string) {
	conf, err := s.userOAuthConfig(owner)
	if err != nil {
		log.Err(err).Str("user", owner).Msg("[startUserAuthorization] no client for server")
		s.renderError(w, http.StatusInternalServerError, requester, "The server of "+owner+" cannot authenticate users")
		return
	}

	state, err1 := generateRandomString(32)
	verifier, err2 := generateRandomString(32)
	if err1 != nil || err2 != nil {
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}

	returnURL := spawner.UserPrefix(owner)
	if r.Method == http.MethodGet {
		returnURL = r.URL.RequestURI()
	}
	err = s.authState.Upsert(state, &authflowrepo.AuthFlowState{
		Owner:        owner,
		Requester:    requester,
		CodeVerifier: verifier,
		ReturnURL:    returnURL,
		CreatedAt:    s.nowTime(),
	})
	if err != nil {
		log.Err(err).Msg("[startUserAuthorization] failed to store state")
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), http.StatusFound)
}

// UserOAuthCallbackHandler is the redirect URI of every user server. It
// redeems the code at the hub token endpoint and keeps the access token in
// the server's cookie.
func (s *Server) UserOAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("name")

		outcome := s.gate.Authenticate(r)
		if !outcome.Authenticated {
			http.Redirect(w, r, loginURL(spawner.UserPrefix(owner)), http.StatusFound)
			return
		}

		if errorParam := r.FormValue("error"); errorParam != "" {
			s.renderError(w, http.StatusForbidden, outcome.Username, "Authorization failed: "+errorParam)
			return
		}
		state := r.FormValue("state")
		code := r.FormValue("code")
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		// The state outlives one callback: resubmitting consent for the same
		// request comes back with the same state and a fresh code.
		authState, err := s.authState.Get(state)
		if err != nil || authState.Owner != owner || authState.Requester != outcome.Username {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		conf, err := s.userOAuthConfig(owner)
		if err != nil {
			log.Err(err).Str("user", owner).Msg("[UserOAuthCallbackHandler] no client for server")
			http.Error(w, "Unknown server", http.StatusNotFound)
			return
		}

		oauth2Token, err := conf.Exchange(r.Context(), code, oauth2.VerifierOption(authState.CodeVerifier))
		if err != nil {
			log.Err(err).Str("user", owner).Str("requester", outcome.Username).Msg("[UserOAuthCallbackHandler] token exchange failed")
			s.renderError(w, http.StatusForbidden, outcome.Username, "The hub did not authorize "+outcome.Username+" for the server of "+owner)
			return
		}

		claims, err := s.auth.Identify(oauth2Token.AccessToken, conf.ClientID)
		if err != nil || claims.Subject != outcome.Username {
			log.Err(err).Str("user", owner).Msg("[UserOAuthCallbackHandler] issued token rejected")
			s.renderError(w, http.StatusForbidden, outcome.Username, "The hub did not authorize "+outcome.Username+" for the server of "+owner)
			return
		}

		auth.SetCookie(w, auth.AccessCookieName(owner), oauth2Token.AccessToken, claims.ExpiresAt.Sub(s.nowTime()), s.gate.SecureCookies())
		http.Redirect(w, r, safeNext(authState.ReturnURL, spawner.UserPrefix(owner)), http.StatusFound)
	}
}
