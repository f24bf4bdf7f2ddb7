package spawner

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Local runs a user's server as a child process of the hub. Command arguments
// may contain {user}, {port} and {base_url} placeholders, which are also
// exported as HUB_USER, HUB_PORT and HUB_BASE_URL.
type Local struct {
	username string
	command  []string
	env      map[string]string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewLocal(username string, command []string, env map[string]string) (*Local, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("local spawner for %s: command is required", username)
	}
	return &Local{username: username, command: command, env: env}, nil
}

// LocalFactory returns a Factory building Local spawners that share command
// and env.
func LocalFactory(command []string, env map[string]string) Factory {
	return func(username string) (Spawner, error) {
		return NewLocal(username, command, env)
	}
}

func (l *Local) Start(ctx context.Context, opts Options) (Endpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd != nil && l.alive() {
		return Endpoint{}, fmt.Errorf("server for %s already running", l.username)
	}

	port, err := freePort()
	if err != nil {
		return Endpoint{}, err
	}
	vars := map[string]string{
		"{user}":     l.username,
		"{port}":     strconv.Itoa(port),
		"{base_url}": UserPrefix(l.username),
	}
	args := make([]string, len(l.command))
	for i, a := range l.command {
		for k, v := range vars {
			a = strings.ReplaceAll(a, k, v)
		}
		args[i] = a
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), l.environ(port, opts)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := ctx.Err(); err != nil {
		return Endpoint{}, err
	}
	if err := cmd.Start(); err != nil {
		return Endpoint{}, fmt.Errorf("start %s: %w", args[0], err)
	}

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		log.Info().Str("user", l.username).Int("pid", cmd.Process.Pid).AnErr("exit", err).Msg("user server exited")
		close(done)
	}()
	l.cmd = cmd
	l.done = done

	log.Info().Str("user", l.username).Int("pid", cmd.Process.Pid).Int("port", port).Msg("user server started")
	return Endpoint{URL: fmt.Sprintf("http://127.0.0.1:%d", port)}, nil
}

// Stop sends SIGTERM and kills the process if it outlives ctx.
func (l *Local) Stop(ctx context.Context) error {
	l.mu.Lock()
	cmd, done := l.cmd, l.done
	l.cmd, l.done = nil, nil
	l.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return cmd.Process.Kill()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		<-done
		return nil
	}
}

func (l *Local) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil && l.alive()
}

func (l *Local) alive() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Local) environ(port int, opts Options) []string {
	env := map[string]string{
		"HUB_USER":     l.username,
		"HUB_PORT":     strconv.Itoa(port),
		"HUB_BASE_URL": UserPrefix(l.username),
	}
	for k, v := range l.env {
		env[k] = v
	}
	for k, v := range opts.Env {
		env[k] = v
	}
	if opts.Debug {
		env["HUB_DEBUG"] = "1"
	}
	if opts.DisableUserConfig {
		env["HUB_DISABLE_USER_CONFIG"] = "1"
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
