package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteHubRoot+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler(RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOIDCLogin, ChainMiddleware(s.OIDCLoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOIDCCallback, ChainMiddleware(s.OIDCCallbackHandler(), s.HTMLMiddleWare()...))

	// OAuth2 endpoints for user servers
	s.RegisterRouteHandler("GET "+RouteOAuth2Authorize, ChainMiddleware(s.OAuth2AuthorizeHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Authorize, ChainMiddleware(s.ConsentPostHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.OAuth2TokenHandler(), s.APIMiddleware()...))

	// REST API (session cookie or bearer token)
	s.RegisterRouteHandler("GET "+RouteAPIUser, ChainMiddleware(s.CurrentUserHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIUsers, ChainMiddleware(s.ListUsersHandler(), s.APIMiddleware(s.RequireAPIIdentity())...))
	s.RegisterRouteHandler("GET "+RouteAPIUserByName, ChainMiddleware(s.GetUserHandler(), s.APIMiddleware(s.RequireAPIIdentity(), s.RequireSelfOrAdmin())...))
	s.RegisterRouteHandler("POST "+RouteAPIUserServer, ChainMiddleware(s.StartServerHandler(), s.APIMiddleware(s.RequireAPIIdentity(), s.RequireSelfOrAdmin())...))
	s.RegisterRouteHandler("DELETE "+RouteAPIUserServer, ChainMiddleware(s.StopServerHandler(), s.APIMiddleware(s.RequireAPIIdentity(), s.RequireSelfOrAdmin())...))
	s.RegisterRouteHandler("GET "+RouteAPIUserGrants, ChainMiddleware(s.ListGrantsHandler(), s.APIMiddleware(s.RequireAPIIdentity(), s.RequireSelfOrAdmin())...))
	s.RegisterRouteHandler("DELETE "+RouteAPIUserGrant, ChainMiddleware(s.RevokeGrantHandler(), s.APIMiddleware(s.RequireAPIIdentity(), s.RequireSelfOrAdmin())...))

	// User servers
	s.RegisterRouteHandler("GET "+RouteUserCallback, ChainMiddleware(s.UserOAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler(RouteUserLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler(RouteUserServer, ChainMiddleware(s.UserServerHandler(), s.ProxyMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHubStatic+"{file}", ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	static := http.StripPrefix(RouteHubStatic, s.fileServer)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
		static.ServeHTTP(w, r)
	}
}
