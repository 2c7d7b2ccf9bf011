package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendigo/internal/config"
	"spendigo/internal/core"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
)

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func(dir string) Config
		strategy string
	}{
		{"memory in process", func(string) Config { return Config{Type: MemoryBackend} }, "snapshot"},
		{"memory on disk", func(dir string) Config { return Config{Type: MemoryBackend, DataDirectory: dir} }, "snapshot"},
		{"sqlite", func(dir string) Config {
			return Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "ledger.db")}
		}, "audited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := NewFactory(log.Nop()).CreateBackend(ctx, tt.cfg(t.TempDir()))
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, res.Close()) })

			assert.Equal(t, tt.strategy, res.Strategy)
			require.NoError(t, res.Ping(ctx))

			sources, err := res.Ledger.EnsureDefaultSources(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, sources, 3)

			_, err = res.Ledger.CreateExpense(ctx, "alice", core.ExpenseDraft{
				Amount:   core.Rupees(120),
				Vendor:   "Chai Point",
				Date:     core.NewDate(2025, 6, 24),
				Category: core.ByName("Food & Drink"),
				SourceID: ledger.DefaultCashID,
			})
			require.NoError(t, err)

			cash, err := res.Ledger.GetSource(ctx, "alice", ledger.DefaultCashID)
			require.NoError(t, err)
			assert.Equal(t, cash.InitialBalance.Sub(core.Rupees(120)), cash.CurrentBalance)
		})
	}
}

func TestCreateBackend_SeedCategoriesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# pets\nPets\n"), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(),
		Config{Type: MemoryBackend, DataDirectory: dir, ExtraCategories: []string{"Gifts"}})
	require.NoError(t, err)

	cats, err := res.Ledger.Categories(context.Background())
	require.NoError(t, err)
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	assert.Contains(t, names, "Gifts")
	assert.Contains(t, names, "Pets")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown type", Config{Type: "sheets"}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x", AMQPExchange: "e"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", ExtraCategories: []string{"Pets"}})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, []string{"Pets"}, cfg.ExtraCategories)

	_, err = FromAppConfig(&config.Config{DataBackend: "dynamo"})
	assert.Error(t, err)
}
