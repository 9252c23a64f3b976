package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/metrics"
	chiTransport "github.com/kailas-cloud/geosuggest/internal/transport/chi"
	"github.com/kailas-cloud/geosuggest/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Warm the replica and serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(flagEnv, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting geosuggest API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", flagEnv),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("layers", len(cfg.Layers)),
		zap.Int("packages", len(cfg.Packages)),
		zap.Bool("hosted", cfg.Database.Enabled()),
		zap.Bool("geocoder", cfg.Geocoder.Enabled()),
	)

	metrics.RegisterSearchMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, flagData)
	if err != nil {
		return err
	}
	defer a.close()

	// Warm-up runs in the background; searches fall through to live queries until it finishes.
	go a.engine.Warm(ctx)

	server := chiTransport.NewServer(ctx, a.engine, a.health(), logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
