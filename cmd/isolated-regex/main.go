package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/api"
	"github.com/raaihank/isolated-regex/internal/config"
	"github.com/raaihank/isolated-regex/internal/hook"
	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/logger"
	"github.com/raaihank/isolated-regex/internal/settings"
	"github.com/raaihank/isolated-regex/internal/store"
	"github.com/raaihank/isolated-regex/internal/substitute"
	"github.com/raaihank/isolated-regex/internal/websocket"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the /health endpoint at this base URL and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("isolated-regex %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting isolated-regex",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("isolated-regex stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := settings.OpenBackend(cfg.Settings, log.WithComponent("settings").Logger)
	if err != nil {
		return err
	}
	manager, err := settings.NewManager(ctx, backend, cfg.Settings.SaveDelay, log.WithComponent("settings").Logger)
	if err != nil {
		backend.Close()
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := manager.Close(closeCtx); err != nil {
			log.Error("Failed to save settings on shutdown", zap.Error(err))
		}
	}()

	session, err := host.NewSession(cfg.Host.Roster, log.WithComponent("host").Logger)
	if err != nil {
		return fmt.Errorf("invalid roster: %w", err)
	}

	executor, err := substitute.New(cfg.Substitution, log.WithComponent("substitute").Logger)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(websocket.HubConfig{
		BroadcastCharacterChanges: cfg.WebSocket.Events.BroadcastCharacterChanges,
		BroadcastRuleUpdates:      cfg.WebSocket.Events.BroadcastRuleUpdates,
		BroadcastPatternErrors:    cfg.WebSocket.Events.BroadcastPatternErrors,
		BroadcastConnections:      cfg.WebSocket.Events.BroadcastConnections,
		AllowedOrigins:            cfg.WebSocket.AllowedOrigins,
		Username:                  cfg.WebSocket.Username,
		Password:                  cfg.WebSocket.Password,
	}, log.Logger)
	go hub.Run(ctx)

	executor.SetErrorHandler(func(perr *substitute.PatternError) {
		hub.BroadcastEvent(websocket.Event{
			Type: websocket.EventTypePatternError,
			Data: websocket.PatternErrorEvent{
				Pattern: perr.Pattern,
				Flags:   perr.Flags,
				Error:   perr.Err.Error(),
			},
		})
	})
	session.OnCharacterChanged(func(c host.Character, ok bool) {
		hub.BroadcastEvent(websocket.Event{
			Type: websocket.EventTypeCharacterChanged,
			Data: websocket.CharacterChangedEvent{Avatar: c.Avatar, Name: c.Name, Active: ok},
		})
	})

	if cfg.Host.Active != "" {
		if _, err := session.Select(cfg.Host.Active); err != nil {
			return fmt.Errorf("invalid active character: %w", err)
		}
	}

	rules := store.New(session, manager, log.WithComponent("store").Logger)
	server := api.New(cfg, log, api.Deps{
		Store:     rules,
		Session:   session,
		Processor: hook.New(rules, executor),
		Executor:  executor,
		Hub:       hub,
	})
	server.Limiter().StartCleanupRoutine(ctx, 30*time.Minute)

	config.Watch(log.Logger, func(newCfg *config.Config) {
		executor.SetMatchTimeout(newCfg.Substitution.MatchTimeout)
		server.ApplyConfig(newCfg)
		if err := session.SetRoster(newCfg.Host.Roster); err != nil {
			log.Warn("Roster not reloaded", zap.Error(err))
		}
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()

		if err := server.Stop(stopCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
	}

	log.Info("Server shutdown complete")
	return nil
}

// performHealthCheck performs a health check against a running server
func performHealthCheck(baseURL string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
