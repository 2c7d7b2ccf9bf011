package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendigo/internal/backend"
	"spendigo/internal/cli"
	"spendigo/internal/core"
	apphttp "spendigo/internal/http"
	"spendigo/internal/log"
	"spendigo/internal/middleware/ratelimit"
	"spendigo/internal/session"
	"spendigo/internal/voice"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"), nil)
	logger := log.Wrap(cli.SetupLogger(cfg.LogLevel), log.ComponentApp)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	cats, err := result.Ledger.Categories(context.Background())
	if err != nil {
		logger.Error("Failed to load categories", log.FieldError, err)
		os.Exit(1)
	}

	// One quota per user for outbound LLM calls.
	quota := ratelimit.NewLimiter(ratelimit.Config{
		Requests: cfg.VoiceRateLimit,
		Window:   cfg.VoiceRateWindow,
	})

	llm := cli.NewLLM(cfg, logger)
	if llm == nil {
		logger.Info("LLM extraction disabled - no LLM_API_KEY provided, using basic parsing")
	}
	extractor := voice.NewExtractor(llm, quota, core.CatalogFrom(cats), logger, time.Now)
	sessions := session.NewManager(result.Ledger, extractor, logger, time.Now)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:     result.Ledger,
		Sessions:   sessions,
		Ready:      result.Ping,
		AuthSecret: cfg.AuthJWTSecret,
		PostLimit:  cfg.HTTPRateLimit,
		Logger:     logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	if !cfg.AuthEnabled() {
		logger.Warn("AUTH_JWT_SECRET is empty - trusting the X-User-ID header, do not expose this server")
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		quota.Stop()
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting spendigo server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldStrategy, result.Strategy,
		"llm_enabled", cfg.LLMEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
