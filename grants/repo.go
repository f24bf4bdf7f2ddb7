package grants

import "time"

// Repo stores grants, at most one per grantor/grantee pair.
type Repo interface {
	// Upsert merges scopes into the grantor/grantee grant. created is false when
	// an existing grant already covered every scope, in which case nothing changes.
	Upsert(grantor, grantee string, scopes []string, now time.Time) (grant *Grant, created bool, err error)

	// Get returns the grant grantee holds for grantor's server
	Get(grantor, grantee string) (*Grant, error)

	// ListForGrantor returns every grant issued for grantor's server
	ListForGrantor(grantor string) ([]*Grant, error)

	// Revoke removes a grant. Revoking a missing grant is not an error.
	Revoke(grantor, grantee string) error
}
