package spawner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOptionsMerge(t *testing.T) {
	defaults := Options{Debug: true, Env: map[string]string{"A": "1", "B": "1"}}
	got := Options{DisableUserConfig: true, Env: map[string]string{"B": "2"}}.Merge(defaults)
	require.True(t, got.Debug)
	require.True(t, got.DisableUserConfig)
	require.Equal(t, map[string]string{"A": "1", "B": "2"}, got.Env)

	c := got.Clone()
	c.Env["A"] = "changed"
	require.Equal(t, "1", got.Env["A"])

	require.Nil(t, Options{}.Merge(Options{}).Env)
}

func TestInProcessLifecycle(t *testing.T) {
	p := NewInProcess("nandy")
	require.False(t, p.Running())

	ctx := context.Background()
	ep, err := p.Start(ctx, Options{Debug: true, DisableUserConfig: true})
	require.NoError(t, err)
	require.True(t, p.Running())
	require.NoError(t, WaitReady(ctx, nil, ep.URL+"/user/nandy/", p.Running))

	req, err := http.NewRequest(http.MethodGet, ep.URL+"/user/nandy/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-User", "burgess")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, Status{User: "nandy", Requester: "burgess", Debug: true, DisableUserConfig: true}, status)

	resp, err = http.Get(ep.URL + "/user/nandy/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/user/nandy/tree", resp.Request.URL.Path)
	require.Contains(t, string(body), "Files of nandy")

	_, err = p.Start(ctx, Options{})
	require.Error(t, err, "one instance at a time")

	require.NoError(t, p.Stop(ctx))
	require.False(t, p.Running())
	require.NoError(t, p.Stop(ctx), "stop is idempotent")

	ep2, err := p.Start(ctx, Options{})
	require.NoError(t, err)
	require.True(t, p.Running())
	require.NoError(t, p.Stop(ctx))
	require.NotEmpty(t, ep2.URL)
	require.Equal(t, 3, p.Starts())
}

func TestInProcessStartError(t *testing.T) {
	p := NewInProcess("nandy", WithStartError(fmt.Errorf("no capacity")))
	_, err := p.Start(context.Background(), Options{})
	require.EqualError(t, err, "no capacity")
	require.False(t, p.Running())
}

func TestInProcessStartDelayHonoursContext(t *testing.T) {
	p := NewInProcess("nandy", WithStartDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Start(ctx, Options{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReady(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	require.NoError(t, WaitReady(context.Background(), srv.Client(), srv.URL, nil))
	require.Equal(t, 1, hits, "any response counts as ready and redirects are not followed")
}

func TestWaitReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, WaitReady(ctx, nil, url, nil), context.DeadlineExceeded)
}

func TestWaitReadyStopsWhenProcessDies(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := WaitReady(context.Background(), nil, url, func() bool { return false })
	require.ErrorContains(t, err, "exited before becoming ready")
}

func TestLocalSpawner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	l, err := NewLocal("nandy", []string{"sh", "-c", "sleep 30"}, nil)
	require.NoError(t, err)

	ep, err := l.Start(context.Background(), Options{Debug: true})
	require.NoError(t, err)
	require.Contains(t, ep.URL, "http://127.0.0.1:")
	require.True(t, l.Running())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Stop(ctx))
	require.False(t, l.Running())
	require.NoError(t, l.Stop(ctx))

	_, err = NewLocal("nandy", nil, nil)
	require.Error(t, err)
}

func TestLocalEnviron(t *testing.T) {
	l, err := NewLocal("nandy", []string{"true"}, map[string]string{"SHARED": "1"})
	require.NoError(t, err)
	env := l.environ(8888, Options{DisableUserConfig: true, Env: map[string]string{"SHARED": "2"}})
	require.Contains(t, env, "HUB_USER=nandy")
	require.Contains(t, env, "HUB_PORT=8888")
	require.Contains(t, env, "HUB_BASE_URL=/user/nandy/")
	require.Contains(t, env, "HUB_DISABLE_USER_CONFIG=1")
	require.Contains(t, env, "SHARED=2")
	require.NotContains(t, env, "HUB_DEBUG=1")
}

func TestFromConfig(t *testing.T) {
	f, defaults, err := FromConfig(config.SpawnerSpec{Kind: KindInProcess, Debug: true})
	require.NoError(t, err)
	require.True(t, defaults.Debug)
	s, err := f("nandy")
	require.NoError(t, err)
	require.IsType(t, &InProcess{}, s)

	_, _, err = FromConfig(config.SpawnerSpec{Kind: KindLocal})
	require.Error(t, err)

	f, _, err = FromConfig(config.SpawnerSpec{Command: []string{"hub-singleuser", "--port={port}"}})
	require.NoError(t, err)
	s, err = f("nandy")
	require.NoError(t, err)
	require.IsType(t, &Local{}, s)

	_, _, err = FromConfig(config.SpawnerSpec{Kind: "docker"})
	require.Error(t, err)
}
