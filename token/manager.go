package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-spawn-hub/internal/errors"
)

// Claims is the validated content of a server access token.
type Claims struct {
	Subject   string    // Requesting identity
	ClientID  string    // Audience: the user server client the token was issued to
	Owner     string    // Owner of that user server
	SessionID string    // Hub session the token was issued under
	Scopes    []string  // Granted scopes
	ID        string    // Unique token ID
	ExpiresAt time.Time // Expiry
}

// HasScope reports whether the token carries scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Manager issues and validates server access tokens.
type Manager struct {
	signer  Signer
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(signer Signer, issuer string, opts ...ManagerOption) (*Manager, error) {
	if signer == nil {
		return nil, fmt.Errorf("[token.New] signer is required")
	}
	m := &Manager{
		signer:  signer,
		issuer:  issuer,
		expiry:  time.Hour,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Expiry returns the lifetime of issued tokens.
func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

// Issue creates an access token for subject, scoped to owner's server client and
// bound to sessionID.
func (m *Manager) Issue(subject, clientID, owner, sessionID string, scopes []string) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss":   m.issuer,
		"sub":   subject,
		"aud":   clientID,
		"owner": owner,
		"sid":   sessionID,
		"scope": strings.Join(scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(m.expiry).Unix(),
		"jti":   uuid.New().String(),
	}
	raw, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrapf(err, "[token.Issue]")
	}
	return raw, nil
}

// Validate verifies raw and returns its claims. When audience is not empty the
// token must have been issued to that client.
func (m *Manager) Validate(raw, audience string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	parsed, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, m.signer.GetVerificationKey, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.Wrapf(errors.ErrInvalidToken, "%s", err.Error())
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.ErrInvalidToken
	}

	claims := &Claims{}
	claims.Subject, _ = mc["sub"].(string)
	claims.Owner, _ = mc["owner"].(string)
	claims.SessionID, _ = mc["sid"].(string)
	claims.ID, _ = mc["jti"].(string)
	if aud, err := mc.GetAudience(); err == nil && len(aud) > 0 {
		claims.ClientID = aud[0]
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if scope, _ := mc["scope"].(string); scope != "" {
		claims.Scopes = strings.Fields(scope)
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "missing sub or sid")
	}
	return claims, nil
}
