package backend

import (
	"context"

	"spendigo/internal/ledger"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready ledger plus what callers need to run and stop it.
type BackendResult struct {
	Ledger ledger.Ledger
	// Strategy is "snapshot" or "audited".
	Strategy string
	// Ping reports whether the persistence tier is reachable.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup when one is set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory tier; snapshots stay in process when DataDirectory is empty.
	DataDirectory string

	// SQLite tier
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	ExtraCategories []string
	Options         ledger.Options
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
