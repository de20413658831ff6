// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/tunebox/internal/api/httpapi"
	"github.com/osa030/tunebox/internal/app/auth"
	"github.com/osa030/tunebox/internal/app/library"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/session"
	"github.com/osa030/tunebox/internal/infra/audio"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/logger"
	"github.com/osa030/tunebox/internal/infra/metrics"
	"github.com/osa030/tunebox/internal/infra/storage"
)

var (
	app        = kingpin.New("tunebox-server", "tunebox music player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-rules command
	listRulesCmd = app.Command("list-rules", "List available credential rules and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listRulesCmd.FullCommand() {
		printRules()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rules, err := auth.NewChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid rule config")
	}

	lib, err := library.NewChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid library config")
	}

	// Fail early when no playlist can be built
	pl, err := lib.Load(ctx, cfg.Library.Name)
	if err != nil {
		return errors.Wrap(err, "failed to load library")
	}
	zlog.Info().Msgf("Library loaded: name=%s tracks=%d", pl.Name, pl.Len())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	backendOpts := audio.Options{
		SampleRate: cfg.Playback.SampleRate,
		Buffer:     time.Duration(cfg.Playback.BufferMs) * time.Millisecond,
		Tick:       cfg.TickInterval(),
	}

	sessionMgr, err := session.NewManager(cfg, session.Deps{
		Gate:    auth.NewGate(store, rules, auth.WithBcryptCost(cfg.Auth.BcryptCost)),
		Store:   store,
		Library: lib,
		NewBackend: func() (playback.Backend, error) {
			return audio.NewBackend(cfg.Playback.Backend, backendOpts)
		},
		Notification: notification.NewManager(),
		Metrics:      m,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	if err := sessionMgr.Start(ctx); err != nil {
		zlog.Error().Msgf("Failed to restore session: %v", err)
	}

	api := httpapi.New(cfg, sessionMgr, m, reg)

	// Request contexts are cancelled on shutdown so event streams return
	baseCtx, cancelRequests := context.WithCancel(ctx)
	defer cancelRequests()

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(api.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s backend=%s", cfg.Server.Addr, cfg.Playback.Backend)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		sessionMgr.Close()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	// Close the player session first so event streams see it end
	sessionMgr.Close()
	sessionMgr.Notifications().Close()
	cancelRequests()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// openStore opens the configured key-value store.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		zlog.Warn().Msg("Using in-memory storage, accounts and favorites are lost on exit")
		return storage.NewMemoryStore(), nil
	default:
		zlog.Info().Msgf("Opening storage: driver=sqlite path=%s", cfg.Storage.Path)
		s, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open storage")
		}
		return s, nil
	}
}

// printRules prints available credential rules.
func printRules() {
	fmt.Println("Available Rules:")
	registry := auth.GetRegistered()
	for _, name := range auth.RegisteredNames() {
		r := registry[name]()
		codes := strings.Join(r.ReturnCodes(), ", ")
		fmt.Printf("  %-20s - %s [codes: %s]\n", r.Name(), r.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
