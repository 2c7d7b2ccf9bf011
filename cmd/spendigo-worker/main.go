package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendigo/internal/amqp"
	"spendigo/internal/cache"
	"spendigo/internal/cli"
	"spendigo/internal/config"
	"spendigo/internal/feed"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
	gsheet "spendigo/internal/sheets/google"
	"spendigo/internal/worker"
)

const (
	digestCacheSize = 1000
	digestCacheTTL  = 24 * time.Hour
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"), (*config.Config).ValidateWorker)
	logger := log.Wrap(cli.SetupLogger(cfg.LogLevel), log.ComponentWorker)

	logger.Info("Starting spendigo-worker", log.FieldOperation, log.OpStartup)

	repo := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath, cfg.ExtraCategories)
	defer repo.Close()

	// Read-only use: the worker never mutates, so it publishes nothing.
	reader := ledger.NewAuditedLedger(repo, logger, ledger.Options{})

	ctx := context.Background()
	mirror, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		TabPrefix:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	digests := cache.NewLRUCache[string](digestCacheSize, digestCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(digests)
	caches.StartCleanup(time.Hour)
	defer caches.Stop()

	mirrorWorker := worker.NewMirrorWorker(
		amqpClient,
		repo,
		feed.NewRefresher(reader, logger, time.Now),
		mirror,
		digests,
		cfg.SyncInterval,
		logger,
	)

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	// Catch up on changes published while the worker was down.
	logger.Info("Performing startup mirror sync")
	if err := mirrorWorker.SyncAll(runCtx); err != nil {
		logger.Error("Startup mirror sync failed", log.FieldError, err)
	}

	if err := mirrorWorker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("spendigo-worker stopped")
}
