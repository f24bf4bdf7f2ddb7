package server

// Route path constants
// All hub routes are defined here to ensure consistency and prevent typos
const (
	// Hub pages
	RouteHubRoot   = "/hub/"
	RouteLogin     = "/hub/login"
	RouteLogout    = "/hub/logout"
	RouteHealth    = "/hub/health"
	RouteHubStatic = "/hub/static/"

	// Upstream OIDC login
	RouteOIDCLogin    = "/hub/oauth_login"
	RouteOIDCCallback = "/hub/oauth_callback"

	// OAuth2 endpoints used by user servers
	RouteOAuth2Authorize = "/hub/api/oauth2/authorize"
	RouteOAuth2Token     = "/hub/api/oauth2/token"

	// REST API
	RouteAPIUser       = "/hub/api/user"
	RouteAPIUsers      = "/hub/api/users"
	RouteAPIUserByName = "/hub/api/users/{name}"
	RouteAPIUserServer = "/hub/api/users/{name}/server"
	RouteAPIUserGrants = "/hub/api/users/{name}/grants"
	RouteAPIUserGrant  = "/hub/api/users/{name}/grants/{grantee}"

	// User servers (patterns)
	RouteUserServer   = "/user/{name}/"
	RouteUserCallback = "/user/{name}/oauth_callback"
	RouteUserLogout   = "/user/{name}/logout"
)
