// Package cli provides common CLI initialization utilities shared by
// cmd/spendigo, cmd/spendigo-worker and cmd/spendigoctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendigo/internal/config"
	"spendigo/internal/log"
	"spendigo/internal/storage"
	"spendigo/internal/voice"
)

// SetupLogger initializes structured logging on stdout at the given level
// and sets it as the default logger.
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: log.ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it with validate,
// or with Config.Validate when validate is nil. Exits on failure.
func LoadAndValidateConfig(logger *slog.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the SQLite repository at dbPath. Exits on failure.
func InitSQLite(logger *slog.Logger, dbPath string, extraCategories []string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, extraCategories...)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldComponent, log.ComponentStorage,
			log.FieldOperation, log.OpStartup,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			"path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewLLM returns the configured LLM client, or nil when no API key is set
// so that every extraction uses the fallback parser.
func NewLLM(cfg *config.Config, logger *log.Logger) voice.Completer {
	if !cfg.LLMEnabled() {
		return nil
	}
	return voice.NewLLMClient(voice.LLMConfig{
		APIKey:     cfg.LLMAPIKey,
		Endpoint:   cfg.LLMEndpoint,
		Model:      cfg.LLMModel,
		MaxRetries: cfg.LLMMaxRetries,
		BaseDelay:  cfg.LLMBaseDelay,
		Timeout:    cfg.LLMTimeout,
	}, logger)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
