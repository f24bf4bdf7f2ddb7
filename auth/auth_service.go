package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-spawn-hub/auth/flows"
	"github.com/jrsteele09/go-spawn-hub/clients"
	"github.com/jrsteele09/go-spawn-hub/grants"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/oauthmodel"
	"github.com/jrsteele09/go-spawn-hub/sessions"
	"github.com/jrsteele09/go-spawn-hub/token"
	"github.com/jrsteele09/go-spawn-hub/users"
	"github.com/rs/zerolog/log"
)

// AuthorizationRedirect sends the requester back to the client's redirect URI
// carrying a freshly issued authorization code and the original state.
type AuthorizationRedirect func(redirectURI string, code string, state string)

// ConsentPrompt asks the requester to approve the scopes of a pending request.
type ConsentPrompt func(req *flows.Request)

const (
	defaultCodeGenerationLength = 32
	defaultAuthCodeTimeout      = 5 * time.Minute
	defaultConsentTimeout       = 10 * time.Minute
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Users    users.UserRepo // Hub identities
	Sessions sessions.Repo  // Hub sessions, to bind tokens to a live login
	Clients  clients.Repo   // One OAuth client per user server
	Grants   grants.Repo    // Consent outcomes
	Flows    flows.Repo     // Pending and decided authorization requests
}

// AuthorizationService drives the authorization-code handshake between the hub
// and user servers.
type AuthorizationService struct {
	repos           Repos
	tokens          *token.Manager
	baseURL         string
	adminAccess     bool
	consentTimeout  time.Duration
	authCodeTimeout time.Duration
	codeLength      int
	nowTime         func() time.Time
	clientLock      sync.Mutex
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithBaseURL sets the hub's public URL used for client redirect URIs
func WithBaseURL(baseURL string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithAdminAccess lets admins reach every user's server
func WithAdminAccess(enabled bool) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.adminAccess = enabled
	}
}

func WithConsentTimeout(timeout time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.consentTimeout = timeout
	}
}

func WithAuthCodeTimeout(timeout time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.authCodeTimeout = timeout
	}
}

func WithCodeLength(n int) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.codeLength = n
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	tokens *token.Manager,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if repos.Grants == nil {
		return nil, errors.New("[NewAuthorizationService] Grants repo is required")
	}
	if repos.Flows == nil {
		return nil, errors.New("[NewAuthorizationService] Flows repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token manager is required")
	}

	authService := &AuthorizationService{
		repos:           repos,
		tokens:          tokens,
		baseURL:         "http://localhost:8000",
		consentTimeout:  defaultConsentTimeout,
		authCodeTimeout: defaultAuthCodeTimeout,
		codeLength:      defaultCodeGenerationLength,
		nowTime:         time.Now,
	}

	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// EnsureClient returns the OAuth client of owner's server, registering it on
// first use.
func (as *AuthorizationService) EnsureClient(owner string) (*clients.Client, error) {
	if err := users.ValidateName(owner); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidClient, "%s", err.Error())
	}

	as.clientLock.Lock()
	defer as.clientLock.Unlock()

	client, err := as.repos.Clients.Get(clients.ClientIDFor(owner))
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, clients.ErrClientNotFound) {
		return nil, errors.Wrapf(err, "[EnsureClient] Clients.Get")
	}

	client, err = clients.NewForUser(owner, as.baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "[EnsureClient] NewForUser")
	}
	if err := as.repos.Clients.Upsert(client); err != nil {
		return nil, errors.Wrapf(err, "[EnsureClient] Clients.Upsert")
	}
	log.Info().Str("client_id", client.ID).Msg("registered user server client")
	return client, nil
}

// Authorize starts the handshake for the requester holding session. The owner
// of the server, and requesters whose grant already covers the requested
// scopes, are redirected with a code straight away; everyone else is prompted
// for consent.
func (as *AuthorizationService) Authorize(
	ctx context.Context,
	parameters *oauthmodel.AuthorizationParameters,
	session *sessions.Session,
	consent ConsentPrompt,
	redirect AuthorizationRedirect,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.Wrapf(errors.ErrAccessDenied, "[Authorize] no session")
	}
	if err := parameters.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidRequest, err)
	}

	owner, ok := clients.OwnerOf(parameters.ClientID)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidClient, "[Authorize] %s", parameters.ClientID)
	}
	client, err := as.repos.Clients.Get(parameters.ClientID)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidClient, "[Authorize] %s", err.Error())
	}
	if err := client.ValidateRedirectURI(parameters.RedirectURI); err != nil {
		return errors.Wrapf(errors.ErrInvalidRedirectURI, "[Authorize] %s", parameters.RedirectURI)
	}

	scopes, err := supportedScopes(parameters.Scopes(), owner)
	if err != nil {
		return err
	}

	requester, err := as.activeUser(session.Username)
	if err != nil {
		return err
	}

	now := as.nowTime()
	req := &flows.Request{
		ID:                  uuid.New().String(),
		ClientID:            client.ID,
		Owner:               owner,
		Requester:           requester.Name,
		SessionID:           session.ID,
		RedirectURI:         parameters.RedirectURI,
		State:               parameters.State,
		Scopes:              scopes,
		CodeChallenge:       parameters.CodeChallenge,
		CodeChallengeMethod: string(parameters.CodeChallengeMethod),
		Phase:               flows.PhaseConsentPending,
		CreatedAt:           now,
	}

	// The owner consents implicitly
	if requester.Name == owner {
		return as.decide(req, requester, scopes, redirect)
	}

	grant, err := as.repos.Grants.Get(owner, requester.Name)
	if err == nil && grant.Covers(scopes) {
		return as.decide(req, requester, scopes, redirect)
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		log.Err(err).Str("grantor", owner).Str("grantee", requester.Name).Msg("[Authorize] grant lookup failed")
	}

	if err := as.repos.Flows.Upsert(req); err != nil {
		return errors.Wrapf(err, "[Authorize] failed to store consent request")
	}
	consent(req.Clone())
	return nil
}

// ConsentRequest returns a pending or decided request belonging to session.
func (as *AuthorizationService) ConsentRequest(requestID string, session *sessions.Session) (*flows.Request, error) {
	req, err := as.repos.Flows.Get(requestID)
	if err != nil {
		return nil, err
	}
	if session == nil || req.Requester != session.Username {
		return nil, errors.ErrAccessDenied
	}
	if as.nowTime().After(req.CreatedAt.Add(as.consentTimeout)) {
		_ = as.repos.Flows.Delete(requestID)
		return nil, errors.ErrConsentExpired
	}
	return req, nil
}

// Consent records the requester's approval of scopes for a request. It is the
// only way out of the consent-pending phase. The approved scopes are upserted
// as a grant; submitting again for scopes already granted changes nothing but
// issues a fresh code.
func (as *AuthorizationService) Consent(
	ctx context.Context,
	requestID string,
	session *sessions.Session,
	approved []string,
	redirect AuthorizationRedirect,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := as.ConsentRequest(requestID, session)
	if err != nil {
		return err
	}

	approved = grants.NormalizeScopes(approved)
	if len(approved) == 0 {
		return errors.Wrapf(errors.ErrInvalidScope, "[Consent] no scopes approved")
	}
	for _, s := range approved {
		if !slices.Contains(req.Scopes, s) {
			return errors.Wrapf(errors.ErrInvalidScope, "[Consent] %s was not requested", s)
		}
	}

	requester, err := as.activeUser(session.Username)
	if err != nil {
		return err
	}

	// A grant only records what the engine will honour
	if !requester.CanAccessServerOf(req.Owner, as.adminAccess) {
		approved = slices.DeleteFunc(approved, func(s string) bool { return s == grants.AccessScope(req.Owner) })
		if len(approved) == 0 {
			return errors.Wrapf(errors.ErrAccessDenied, "[Consent] %s may not access the server of %s", requester.Name, req.Owner)
		}
	}

	_, created, err := as.repos.Grants.Upsert(req.Owner, requester.Name, approved, as.nowTime())
	if err != nil {
		return errors.Wrapf(err, "[Consent] failed to record grant")
	}
	log.Info().
		Str("grantor", req.Owner).
		Str("grantee", requester.Name).
		Strs("scopes", approved).
		Bool("created", created).
		Msg("consent submitted")

	req.SessionID = session.ID
	return as.decide(req, requester, approved, redirect)
}

// decide settles a request for requester and redirects with a new code. The
// access scope is only ever carried by privileged requesters; everyone else
// completes the flow holding identify alone and is refused by the server route.
func (as *AuthorizationService) decide(req *flows.Request, requester *users.User, approved []string, redirect AuthorizationRedirect) error {
	accessScope := grants.AccessScope(req.Owner)

	granted := make([]string, 0, len(approved)+1)
	for _, s := range approved {
		if s != accessScope {
			granted = append(granted, s)
		}
	}
	if requester.CanAccessServerOf(req.Owner, as.adminAccess) {
		req.Phase = flows.PhaseGranted
		granted = append(granted, accessScope)
	} else {
		req.Phase = flows.PhaseDenied
	}
	req.GrantedScopes = grants.NormalizeScopes(granted)

	code, err := as.generateCode()
	if err != nil {
		return errors.Wrapf(err, "[decide] failed generating auth code")
	}
	req.Code = code
	req.CodeIssuedAt = as.nowTime()
	if err := as.repos.Flows.Upsert(req); err != nil {
		return errors.Wrapf(err, "[decide] failed to store request")
	}

	redirect(req.RedirectURI, code, req.State)
	return nil
}

// Exchange redeems an authorization code for an access token. Codes are one
// shot and expire after the auth code timeout.
func (as *AuthorizationService) Exchange(ctx context.Context, parameters oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := parameters.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidRequest, err)
	}

	client, err := as.repos.Clients.Get(parameters.ClientID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidClient, "[Exchange] %s", err.Error())
	}
	if subtle.ConstantTimeCompare([]byte(parameters.ClientSecret), []byte(client.Secret)) != 1 {
		return nil, errors.Wrapf(errors.ErrInvalidClient, "[Exchange] client secret incorrect")
	}

	req, err := as.repos.Flows.TakeByCode(parameters.Code)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidGrant, "[Exchange] auth code invalid")
	}
	if req.ClientID != client.ID {
		return nil, errors.Wrapf(errors.ErrInvalidGrant, "[Exchange] code was issued to another client")
	}
	if parameters.RedirectURI != "" && parameters.RedirectURI != req.RedirectURI {
		return nil, errors.Wrapf(errors.ErrInvalidGrant, "[Exchange] redirect_uri mismatch")
	}
	if as.nowTime().After(req.CodeIssuedAt.Add(as.authCodeTimeout)) {
		return nil, errors.Wrapf(errors.ErrInvalidGrant, "[Exchange] auth code timeout")
	}
	if !checkCodeChallenge(req.CodeChallenge, parameters.CodeVerifier, oauthmodel.CodeMethodType(req.CodeChallengeMethod)) {
		return nil, errors.Wrapf(errors.ErrInvalidGrant, "[Exchange] code challenge failed")
	}

	raw, err := as.tokens.Issue(req.Requester, req.ClientID, req.Owner, req.SessionID, req.GrantedScopes)
	if err != nil {
		return nil, errors.Wrapf(err, "[Exchange] token issue")
	}
	return &oauthmodel.TokenResponse{
		AccessToken: raw,
		TokenType:   "Bearer",
		ExpiresIn:   int(as.tokens.Expiry().Seconds()),
		Scope:       strings.Join(req.GrantedScopes, " "),
	}, nil
}

// Identify validates an access token and confirms the hub session it was
// issued under is still live. audience may be empty to accept any client.
func (as *AuthorizationService) Identify(rawToken, audience string) (*token.Claims, error) {
	claims, err := as.tokens.Validate(rawToken, audience)
	if err != nil {
		return nil, err
	}

	session, err := as.repos.Sessions.GetForUser(claims.Subject)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "session for %s: %s", claims.Subject, err.Error())
	}
	if session.ID != claims.SessionID || session.Expired(as.nowTime()) {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "session for %s has ended", claims.Subject)
	}

	if _, err := as.activeUser(claims.Subject); err != nil {
		return nil, err
	}
	return claims, nil
}

// CanAccess reports whether a token lets its holder reach owner's server.
func (as *AuthorizationService) CanAccess(claims *token.Claims, owner string) bool {
	if claims == nil || claims.Owner != owner {
		return false
	}
	return claims.Subject == owner || claims.HasScope(grants.AccessScope(owner))
}

// Grants lists the grants issued for owner's server.
func (as *AuthorizationService) Grants(owner string) ([]*grants.Grant, error) {
	list, err := as.repos.Grants.ListForGrantor(owner)
	if err != nil {
		return nil, errors.Wrapf(err, "[Grants] ListForGrantor")
	}
	return list, nil
}

// RevokeGrant withdraws grantee's grant for owner's server, so the next
// authorization asks for consent again.
func (as *AuthorizationService) RevokeGrant(owner, grantee string) error {
	if _, err := as.repos.Grants.Get(owner, grantee); err != nil {
		return err
	}
	if err := as.repos.Grants.Revoke(owner, grantee); err != nil {
		return errors.Wrapf(err, "[RevokeGrant] Revoke")
	}
	log.Info().Str("grantor", owner).Str("grantee", grantee).Msg("grant revoked")
	return nil
}

// IsAdmin reports whether username is an active admin.
func (as *AuthorizationService) IsAdmin(username string) bool {
	user, err := as.activeUser(username)
	return err == nil && user.Admin
}

// CleanupExpiredRequests removes consent requests older than the consent timeout
func (as *AuthorizationService) CleanupExpiredRequests() int {
	return as.repos.Flows.DeleteBefore(as.nowTime().Add(-as.consentTimeout))
}

func (as *AuthorizationService) activeUser(name string) (*users.User, error) {
	user, err := as.repos.Users.Get(name)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAccessDenied, "user %s: %s", name, err.Error())
	}
	if user.Blocked {
		return nil, errors.ErrUserBlocked
	}
	return user, nil
}

func (as *AuthorizationService) generateCode() (string, error) {
	bytes := make([]byte, as.codeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrapf(err, "generateCode rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// supportedScopes limits requested scopes to those a user server may ask for.
// An empty request means identify.
func supportedScopes(requested []string, owner string) ([]string, error) {
	requested = grants.NormalizeScopes(requested)
	if len(requested) == 0 {
		return []string{grants.ScopeIdentify}, nil
	}
	for _, s := range requested {
		if s == grants.ScopeIdentify {
			continue
		}
		if o, ok := grants.IsAccessScope(s); ok && o == owner {
			continue
		}
		return nil, errors.Wrapf(errors.ErrInvalidScope, "unsupported scope %q", s)
	}
	return requested, nil
}

func checkCodeChallenge(storedChallenge, verifier string, method oauthmodel.CodeMethodType) bool {
	if storedChallenge == "" { // No PKCE code challenge
		return true
	}
	switch method {
	case oauthmodel.CodeMethodTypeS256:
		hash := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(hash[:]) == storedChallenge
	case oauthmodel.CodeMethodTypeNone:
		return storedChallenge == verifier
	}
	return false
}
