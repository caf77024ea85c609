package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/di"
	"github.com/aristath/tradejournal/pkg/logger"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "journalctl",
		Short: "Administer the trade journal database",
		Long: `journalctl operates directly on journal.db, using the same configuration
as the server (environment variables and .env).

Commands:
  - kpis: compute KPIs for a user and timeframe
  - reconcile: compare stored and derived balances, optionally repair
  - reset: wipe a user's trades and cashflows and set a new balance
  - backup: snapshot journal.db into a verified archive
  - migrate: apply the schema
  - token: issue an API token`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides JOURNAL_DATA_DIR)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newKPIsCmd(opts),
		newReconcileCmd(opts),
		newResetCmd(opts),
		newBackupCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.dataDir != "" {
		if err := os.Setenv("JOURNAL_DATA_DIR", o.dataDir); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// withContainer wires the application, runs fn and closes everything.
func (o *rootOptions) withContainer(cmd *cobra.Command, fn func(cfg *config.Config, c *di.Container) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Level:  o.logLevel,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	return fn(cfg, container)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "journalctl version %s\n", version)
		},
	}
}
