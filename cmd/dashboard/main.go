// Package main is the entry point for the listing dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/listing-dashboard/internal/client"
	"github.com/vyrodovalexey/listing-dashboard/internal/config"
	"github.com/vyrodovalexey/listing-dashboard/internal/form"
	"github.com/vyrodovalexey/listing-dashboard/internal/middleware"
	"github.com/vyrodovalexey/listing-dashboard/internal/server"
	"github.com/vyrodovalexey/listing-dashboard/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Duration("api_timeout", cfg.APITimeout),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Int("max_form_sessions", cfg.MaxFormSessions),
	)

	srv, listings, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dashboard", zap.Error(err))
		return 1
	}

	// A failed first fetch is not fatal: the dashboard renders empty and
	// /ready stays unavailable until a later load succeeds.
	if err := listings.Load(context.Background()); err != nil {
		logger.Warn("initial listing fetch failed", zap.Error(err))
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// newApp wires the backend client, the listing store, the form registry and
// the HTTP server.
func newApp(cfg *config.Config, logger *zap.Logger) (*server.Server, *store.ListingStore, error) {
	api, err := client.New(cfg.APIBaseURL, logger,
		client.WithTimeout(cfg.APITimeout),
		client.WithRequestIDHeader(middleware.RequestIDHeader, middleware.RequestIDKey),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating API client: %w", err)
	}

	listings, err := store.NewListingStore(api, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating listing store: %w", err)
	}

	// Every successful submission is followed by a full reload.
	forms := form.NewRegistry(api, logger, cfg.MaxFormSessions, func(ctx context.Context) {
		_ = listings.Load(ctx)
	})

	return server.New(cfg, logger, listings, forms), listings, nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
