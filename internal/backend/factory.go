package backend

import (
	"context"
	"errors"
	"fmt"

	"spendigo/internal/amqp"
	"spendigo/internal/core"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
	"spendigo/internal/storage"
	"spendigo/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend builds the ledger for the configured tier: the memory tier
// recomputes balances from snapshots, the sqlite tier applies audited deltas.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var (
		store *memory.Store
		extra = config.ExtraCategories
	)
	if config.DataDirectory != "" {
		var err error
		store, err = memory.NewFromDir(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		extra = append(append([]string(nil), extra...), memory.SeedCategories(config.DataDirectory)...)
	} else {
		store = memory.New()
	}

	catalog := core.NewCatalog(extra...)
	l := ledger.NewSnapshotLedger(store, catalog, f.logger, config.Options)

	f.logger.Info("Initialized memory backend",
		"data_directory", config.DataDirectory,
		"categories", len(catalog.All()))

	return &BackendResult{
		Ledger:   l,
		Strategy: "snapshot",
		Ping:     func(context.Context) error { return nil },
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.ExtraCategories...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional: without it the ledger works, only the mirror lags.
	var amqpClient *amqp.Client
	opts := config.Options
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change notifications", log.FieldError, err)
			amqpClient = nil
		} else {
			opts.Notifier = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	l := ledger.NewAuditedLedger(repo, f.logger, opts)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Ledger:   l,
		Strategy: "audited",
		Ping:     repo.Ping,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, repo.Close())
			return errors.Join(errs...)
		},
	}, nil
}
