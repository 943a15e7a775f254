package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viewsmith/internal/api"
	"viewsmith/internal/config"
	"viewsmith/internal/history"
	"viewsmith/internal/logging"
	"viewsmith/internal/model"
	"viewsmith/internal/session"
	"viewsmith/internal/store"
	"viewsmith/internal/tools"
)

// serveCmd starts the HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the layout server",
	Long: `Start the HTTP server that turns chat messages into layouts.

The server loads its config from the --config path, opens the SQLite store
and chat history, connects to the configured model provider and serves the
layout endpoints until interrupted. Edits to the config file are picked up
while running; currently only the model name is hot-swapped.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := logging.Initialize(cfg.Logging.Dir, logging.Options{
		Enabled:    cfg.Logging.Enabled,
		Level:      level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit log unavailable", zap.Error(err))
	}
	defer logging.CloseAudit()

	db, err := store.Open(cfg.Storage.DatabasePath, cfg.Storage.Seed)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	hist, err := history.New(cfg.Storage.HistoryPath, cfg.Storage.MirrorLimit)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	client, err := model.New(cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to build model client: %w", err)
	}

	registry := tools.NewRegistry()
	for _, tool := range tools.Builtin(db) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool: %w", err)
		}
	}

	executor := session.NewExecutor(client, registry, db, hist, session.Config{
		SystemPrompt: cfg.Orchestrator.SystemPrompt,
		MaxToolSteps: cfg.Orchestrator.MaxToolSteps,
		MaxTurns:     cfg.Orchestrator.MaxTurns,
		PreviewLimit: cfg.Orchestrator.PreviewLimit,
	})

	server := api.NewServer(executor, db, hist, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HistoryWindow:  cfg.Orchestrator.HistoryWindow,
	})

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     server.Routes(),
		ReadTimeout: cfg.GetReadTimeout(),
		// SSE responses stay open indefinitely; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  cfg.GetIdleTimeout(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		client.SetModel(next.Model.Model)
		logger.Info("Config reloaded", zap.String("model", next.Model.Model))
	})
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
		watcher = nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("model", client.Model()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			watcher.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
