package grants

import (
	"slices"
	"sort"
	"strings"
	"time"
)

const (
	// ScopeIdentify reveals the requester's identity to a server owner. It never
	// grants access to the owner's server.
	ScopeIdentify = "identify"

	accessScopePrefix = "access:servers!user="
)

// AccessScope is the scope permitting a requester to reach owner's server.
func AccessScope(owner string) string {
	return accessScopePrefix + owner
}

// IsAccessScope reports whether scope is an access scope and for which owner.
func IsAccessScope(scope string) (owner string, ok bool) {
	if !strings.HasPrefix(scope, accessScopePrefix) {
		return "", false
	}
	return strings.TrimPrefix(scope, accessScopePrefix), true
}

// Grant is an explicit, scoped authorization the Grantee obtained through
// consent for the Grantor's server.
type Grant struct {
	ID       string    `json:"id"`
	Grantor  string    `json:"grantor"` // Backend owner
	Grantee  string    `json:"grantee"` // Requesting session owner
	Scopes   []string  `json:"scopes"`  // Sorted, de-duplicated capability strings
	IssuedAt time.Time `json:"issued_at"`
}

// Covers reports whether the grant already holds every scope in want.
func (g *Grant) Covers(want []string) bool {
	for _, s := range want {
		if !slices.Contains(g.Scopes, s) {
			return false
		}
	}
	return true
}

// NormalizeScopes returns scopes sorted and de-duplicated, dropping empties.
func NormalizeScopes(scopes []string) []string {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
