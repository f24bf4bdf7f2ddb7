package token

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	signer, err := NewHMACSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	m, err := New(signer, "http://hub.test", WithExpiry(time.Minute), WithNowFunc(now))
	require.NoError(t, err)
	return m
}

func TestIssueAndValidate(t *testing.T) {
	m := newTestManager(t, time.Now)

	raw, err := m.Issue("burgess", "user-nandy", "nandy", "sid-1", []string{"identify", "access:servers!user=nandy"})
	require.NoError(t, err)

	claims, err := m.Validate(raw, "user-nandy")
	require.NoError(t, err)
	require.Equal(t, "burgess", claims.Subject)
	require.Equal(t, "nandy", claims.Owner)
	require.Equal(t, "user-nandy", claims.ClientID)
	require.Equal(t, "sid-1", claims.SessionID)
	require.True(t, claims.HasScope("access:servers!user=nandy"))
	require.NotEmpty(t, claims.ID)
}

func TestValidateWrongAudience(t *testing.T) {
	m := newTestManager(t, time.Now)
	raw, err := m.Issue("nandy", "user-nandy", "nandy", "sid-1", []string{"identify"})
	require.NoError(t, err)

	_, err = m.Validate(raw, "user-burgess")
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, func() time.Time { return now })
	raw, err := m.Issue("nandy", "user-nandy", "nandy", "sid-1", nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Validate(raw, "user-nandy")
	require.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestValidateForeignSecret(t *testing.T) {
	m := newTestManager(t, time.Now)
	other, err := NewHMACSigner([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	m2, err := New(other, "http://hub.test")
	require.NoError(t, err)

	raw, err := m2.Issue("nandy", "user-nandy", "nandy", "sid-1", nil)
	require.NoError(t, err)
	_, err = m.Validate(raw, "")
	require.ErrorIs(t, err, errors.ErrInvalidToken)

	_, err = m.Validate("", "")
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestShortSecretRejected(t *testing.T) {
	_, err := NewHMACSigner([]byte("short"))
	require.Error(t, err)
}
