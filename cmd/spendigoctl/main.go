// Command spendigoctl operates a Spendigo ledger directly, without the API
// server: inspect and edit sources and expenses, dictate expenses from
// stdin and verify the balance invariant.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"spendigo/internal/backend"
	"spendigo/internal/cli"
	"spendigo/internal/config"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
)

// UserEnv names the variable holding the default --user.
const UserEnv = "SPENDIGO_USER"

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every subcommand for one invocation.
type app struct {
	user   string
	asJSON bool

	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "spendigoctl",
		Short:         "Operate a Spendigo ledger from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	defaultUser := os.Getenv(UserEnv)
	if defaultUser == "" {
		defaultUser = "local"
	}
	root.PersistentFlags().StringVarP(&a.user, "user", "u", defaultUser, "User whose ledger to operate on (env "+UserEnv+")")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newSourcesCmd(a),
		newDepositCmd(a),
		newHistoryCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newListCmd(a),
		newVoiceCmd(a),
		newVerifyCmd(a),
	)
	return root
}

// open loads configuration and builds the ledger. Logs go to stderr so
// command output stays clean.
func (a *app) open(cmd *cobra.Command) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log.New(log.Config{
		Component: log.ComponentApp,
		Handler: slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: max(log.ParseLevel(cfg.LogLevel), slog.LevelWarn),
		}),
	})

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if bc.Type == backend.MemoryBackend && bc.DataDirectory == "" {
		a.logger.Warn("DATA_DIRECTORY is empty - changes made by this command will not be kept")
	}
	a.backend, err = backend.NewFactory(a.logger).CreateBackend(cmd.Context(), bc)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

// ledger returns the ledger after seeding the user's default sources.
func (a *app) ledger(ctx context.Context) (ledger.Ledger, error) {
	if _, err := a.backend.Ledger.EnsureDefaultSources(ctx, a.user); err != nil {
		return nil, err
	}
	return a.backend.Ledger, nil
}

// emit prints v as JSON when --json is set, otherwise calls text.
func (a *app) emit(w io.Writer, v any, text func(io.Writer) error) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
