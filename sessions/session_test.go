package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/sessions"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := sessions.New("nandy", now, time.Hour)
	require.NoError(t, err)

	require.NotEmpty(t, s.ID)
	require.Len(t, s.Token, 43) // 32 bytes, unpadded base64url
	require.NotEqual(t, s.ID, s.Token)
	require.False(t, s.Expired(now))
	require.False(t, s.Expired(now.Add(59*time.Minute)))
	require.True(t, s.Expired(now.Add(time.Hour)))

	other, err := sessions.New("nandy", now, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, s.Token, other.Token)
}
