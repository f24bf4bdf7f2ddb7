package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-spawn-hub/auth"
	"github.com/jrsteele09/go-spawn-hub/auth/flows"
	"github.com/jrsteele09/go-spawn-hub/authenticator"
	fakeclientrepo "github.com/jrsteele09/go-spawn-hub/clients/fakerepo"
	fakegrantrepo "github.com/jrsteele09/go-spawn-hub/grants/repofake"
	"github.com/jrsteele09/go-spawn-hub/internal/config"
	"github.com/jrsteele09/go-spawn-hub/server"
	"github.com/jrsteele09/go-spawn-hub/server/authflowrepo"
	"github.com/jrsteele09/go-spawn-hub/sessions"
	fakesessionrepo "github.com/jrsteele09/go-spawn-hub/sessions/repofake"
	"github.com/jrsteele09/go-spawn-hub/sessions/sqlrepo"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	fakeuserrepo "github.com/jrsteele09/go-spawn-hub/users/repofake"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const sweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub gateway",
		Long: `Runs the hub gateway until interrupted.

Settings come from the environment (PORT, BASE_URL, ENV, LOG_LEVEL,
HUB_TOKEN_SECRET, HUB_SESSION_MAX_AGE, HUB_SPAWN_TIMEOUT, HUB_CONSENT_TIMEOUT,
HUB_ADMIN_ACCESS, HUB_SHUTDOWN_ON_LOGOUT, HUB_SPAWNER, HUB_DATABASE_URL and
HUB_OIDC_*) and from the optional YAML file given with --config, which also
declares users and the spawner command. Environment variables win.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("HUB_CONFIG"), "path to the hub YAML config file")
	return cmd
}

func run(ctx context.Context, out io.Writer, configPath string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msgf("Recovered from panic: %v", r)
			returnError = errors.New("panic recovered")
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(c.GetEnv(), c.GetLogLevel())
	displayAppname(out, c.GetAppName())

	factory, defaults, err := spawner.FromConfig(c.GetSpawner())
	if err != nil {
		return fmt.Errorf("spawner: %w", err)
	}

	sessionRepo, closeSessions, err := openSessions(ctx, c)
	if err != nil {
		return err
	}
	defer closeSessions()

	repos := auth.Repos{
		Users:    fakeuserrepo.NewFakeUserRepo(),
		Sessions: sessionRepo,
		Clients:  fakeclientrepo.NewFakeClientRepo(),
		Grants:   fakegrantrepo.NewFakeGrantRepo(),
		Flows:    flows.NewInMemoryRepo(),
	}

	options := []server.Option{server.WithDefaultOptions(defaults)}
	if issuer := c.GetOIDCIssuer(); issuer != "" {
		o, err := authenticator.NewOIDC(ctx, issuer, c.GetOIDCClientID(), c.GetOIDCClientSecret(),
			c.GetBaseURL()+server.RouteOIDCCallback, repos.Users)
		if err != nil {
			return fmt.Errorf("oidc login: %w", err)
		}
		options = append(options, server.WithOIDC(o))
		log.Info().Str("issuer", issuer).Msg("upstream login enabled")
	}

	hub, err := server.New(c, repos, authflowrepo.NewInMemoryRepo(), factory, options...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           hub,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweep(sweepCtx, hub)

	select {
	case err := <-serveErr:
		returnError = err
	case <-waitForStopSignal():
		log.Info().Msg("shutting down")
	}

	stopSweep()
	if err := shutdown(httpServer); err != nil && returnError == nil {
		returnError = err
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	hub.Shutdown(stopCtx)
	log.Info().Msg("Server stopped")
	return returnError
}

// openSessions uses Postgres when HUB_DATABASE_URL is set and memory otherwise.
func openSessions(ctx context.Context, c config.Config) (sessions.Repo, func(), error) {
	dsn := c.GetDatabaseURL()
	if dsn == "" {
		return fakesessionrepo.NewFakeSessionRepo(), func() {}, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open session database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping session database: %w", err)
	}
	repo, err := sqlrepo.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info().Msg("sessions stored in postgres")
	return repo, func() { _ = db.Close() }, nil
}

func sweep(ctx context.Context, hub *server.Server) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hub.Sweep()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
