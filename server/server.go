package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/authenticator"
	"github.com/jrsteele09/go-spawn-hub/internal/config"
	"github.com/jrsteele09/go-spawn-hub/proxy"
	"github.com/jrsteele09/go-spawn-hub/routes"
	"github.com/jrsteele09/go-spawn-hub/server/authflowrepo"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/jrsteele09/go-spawn-hub/token"
	"github.com/rs/zerolog/log"
)

// Server is the hub gateway. It owns the login pages, the OAuth endpoints
// user servers authenticate against, the REST API and the proxy in front of
// every user server.
type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	baseURL    string
	mux        *http.ServeMux
	routes     []string
	fileServer http.Handler
	templates  *template.Template
	config     config.Config
	repos      auth.Repos
	authState  authflowrepo.Repo

	gate       *auth.Gate
	auth       *auth.AuthorizationService
	passwords  *authenticator.Password
	oidc       *authenticator.OIDC
	table      *routes.Table
	dispatcher *proxy.Dispatcher
	defaults   spawner.Options

	readinessClient *http.Client
	nowTime         func() time.Time
}

type Option func(*Server)

// WithDefaultOptions sets the spawn options used when a user has never had a
// server started with explicit options.
func WithDefaultOptions(opts spawner.Options) Option {
	return func(s *Server) {
		s.defaults = opts.Clone()
	}
}

// WithOIDC delegates hub login to an upstream OpenID Connect provider.
func WithOIDC(o *authenticator.OIDC) Option {
	return func(s *Server) {
		s.oidc = o
	}
}

// WithReadinessClient overrides the client used to probe freshly spawned servers.
func WithReadinessClient(client *http.Client) Option {
	return func(s *Server) {
		s.readinessClient = client
	}
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, repos auth.Repos, authStateRepo authflowrepo.Repo, factory spawner.Factory, options ...Option) (*Server, error) {
	if authStateRepo == nil {
		return nil, fmt.Errorf("[Server New] auth state repo is required")
	}

	s := &Server{
		env:       config.GetEnv(),
		baseURL:   strings.TrimSuffix(config.GetBaseURL(), "/"),
		mux:       http.NewServeMux(),
		config:    config,
		repos:     repos,
		authState: authStateRepo,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	signer, err := token.NewHMACSigner(config.GetTokenSecret())
	if err != nil {
		return nil, fmt.Errorf("[Server New] token signer: %w", err)
	}
	tokens, err := token.New(signer, s.baseURL,
		token.WithExpiry(config.GetAccessTokenExpiry()),
		token.WithNowFunc(s.nowTime),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] token manager: %w", err)
	}

	s.auth, err = auth.NewAuthorizationService(repos, tokens,
		auth.WithBaseURL(s.baseURL),
		auth.WithAdminAccess(config.GetAdminAccess()),
		auth.WithConsentTimeout(config.GetConsentTimeout()),
		auth.WithAuthCodeTimeout(config.GetAuthCodeTimeout()),
		auth.WithCodeLength(config.GetCodeGenerationLength()),
		auth.WithNowTime(s.nowTime),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create authorization service: %w", err)
	}

	tableOptions := []routes.TableOption{
		routes.WithSpawnTimeout(config.GetSpawnTimeout()),
		routes.WithNowFunc(s.nowTime),
	}
	if s.readinessClient != nil {
		tableOptions = append(tableOptions, routes.WithReadinessClient(s.readinessClient))
	}
	s.table, err = routes.NewTable(factory, tableOptions...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] routing table: %w", err)
	}

	s.gate, err = auth.NewGate(repos.Sessions, repos.Users,
		auth.WithSessionMaxAge(config.GetSessionMaxAge()),
		auth.WithSecureCookies(config.GetSecureCookies()),
		auth.WithGateNowTime(s.nowTime),
		auth.WithLogoutHook(s.onLogout),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] gate: %w", err)
	}

	s.passwords = authenticator.NewPassword(repos.Users)
	s.dispatcher = proxy.New(proxy.WithUnreachableHook(func(owner string) {
		b := s.table.Poll(owner)
		log.Warn().Str("user", owner).Str("state", string(b.State)).Msg("server unreachable")
	}))
	s.fileServer = FileServerHandler()

	s.templates, err = ParseTemplates()
	if err != nil {
		return nil, fmt.Errorf("[Server New] templates: %w", err)
	}

	if err := s.InitialiseUsers(config); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise users: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes exposes the routing table, for the serve command's shutdown and the
// API handlers.
func (s *Server) Routes() *routes.Table {
	return s.table
}

// Sweep removes expired sessions, consent requests and abandoned handshakes.
func (s *Server) Sweep() {
	now := s.nowTime()
	if n, err := s.repos.Sessions.DeleteExpired(now); err != nil {
		log.Err(err).Msg("[Server Sweep] failed to delete expired sessions")
	} else if n > 0 {
		log.Debug().Int("count", n).Msg("expired sessions removed")
	}
	if n := s.auth.CleanupExpiredRequests(); n > 0 {
		log.Debug().Int("count", n).Msg("expired consent requests removed")
	}
	if n := s.authState.DeleteBefore(now.Add(-s.config.GetConsentTimeout())); n > 0 {
		log.Debug().Int("count", n).Msg("abandoned login flows removed")
	}
}

// Shutdown stops every user server.
func (s *Server) Shutdown(ctx context.Context) {
	s.table.StopAll(ctx)
}

func (s *Server) onLogout(username string) {
	if s.table.Cancel(username) {
		log.Info().Str("user", username).Msg("pending spawn cancelled by logout")
	}
	if !s.config.GetShutdownOnLogout() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.table.Stop(ctx, username); err != nil {
			log.Err(err).Str("user", username).Msg("failed to stop server on logout")
		}
	}()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
