package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/macrae/convoke/internal/api"
	"github.com/macrae/convoke/internal/config"
	"github.com/macrae/convoke/internal/engine"
	"github.com/macrae/convoke/internal/llmfactory"
	"github.com/macrae/convoke/internal/logging"
	"github.com/macrae/convoke/internal/observability"
	"github.com/macrae/convoke/internal/store"
	"github.com/macrae/convoke/internal/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "convoked: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	configPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.SetupLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	shutdownOtel, err := observability.Setup(ctx, observability.DefaultConfig())
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdownOtel(context.Background())

	mc, err := cfg.LLM.CurrentModel()
	if err != nil {
		return err
	}
	if err := config.ValidateAPIKeys(mc); err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gateway, err := llmfactory.NewGateway(ctx, mc, logger)
	if err != nil {
		return err
	}

	registry := tools.NewDefaultRegistry()
	executor := tools.NewExecutor(registry)
	loop := engine.NewLoop(st, gateway, executor, registry.ToDefinitions(),
		engine.WithLogger(logger),
	)

	mux := http.NewServeMux()
	server := api.New(st, loop, mc.Provider, mc.Model, logger)
	server.RegisterRoutes(mux)

	// WriteTimeout stays zero so long-lived NDJSON streams are not cut off.
	srv := &http.Server{
		Addr:              cfg.Daemon.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("daemon listening", "addr", cfg.Daemon.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Let detached usage writes finish before the store closes.
	loop.Wait()
	return nil
}
