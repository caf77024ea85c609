package main

import (
	"fmt"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/di"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/timeframe"
	"github.com/spf13/cobra"
)

func newKPIsCmd(opts *rootOptions) *cobra.Command {
	var (
		user, mode, date, from, to string
		full                       bool
	)

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Compute KPIs for a user over a timeframe",
		Example: `  journalctl kpis --user u1 --mode month --date 2024-03-01
  journalctl kpis --user u1 --mode custom --from 2024-01-01 --to 2024-03-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd, func(_ *config.Config, c *di.Container) error {
				win, err := timeframe.FromStrings(mode, date, from, to, time.Now(), c.KPIService.Location())
				if err != nil {
					return err
				}
				res, err := c.KPIService.ForWindow(cmd.Context(), user, win)
				if err != nil {
					return err
				}
				if full {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"window": win, "kpis": res})
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"window":     win,
					"summary":    res.Summary,
					"indicators": res.Indicators,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "month", "timeframe (day, week, month, year, custom)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "anchor date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&from, "from", "", "custom window start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "custom window end YYYY-MM-DD")
	cmd.Flags().BoolVar(&full, "full", false, "include daily rows and chart series")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var (
		user   string
		all    bool
		repair bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the stored balance with the balance derived from the journal",
		Long: `reconcile recomputes starting balance + closed trade PnL + cashflows and
reports any drift from the stored current balance. With --repair the stored
balance is rewritten to the derived value. --all checks every account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (user == "") == !all {
				return fmt.Errorf("exactly one of --user or --all is required")
			}
			return opts.withContainer(cmd, func(_ *config.Config, c *di.Container) error {
				users := []string{user}
				if all {
					ids, err := c.LedgerStore.UserIDs(cmd.Context())
					if err != nil {
						return err
					}
					users = ids
				}

				results := make([]map[string]interface{}, 0, len(users))
				balanced := true
				for _, u := range users {
					rec, err := c.LedgerService.Reconcile(cmd.Context(), u)
					if repair && err == nil && !rec.Balanced() {
						rec, err = c.LedgerService.Repair(cmd.Context(), u)
					}
					if err != nil {
						return fmt.Errorf("reconcile %s: %w", u, err)
					}
					ok := rec.Balanced() || rec.Repaired
					balanced = balanced && ok
					results = append(results, map[string]interface{}{
						"user_id":        u,
						"reconciliation": rec,
						"balanced":       ok,
					})
				}

				if !all {
					return printJSON(cmd.OutOrStdout(), results[0])
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"accounts": results,
					"balanced": balanced,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user id")
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every account")
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite the stored balance when it drifts")
	return cmd
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var (
		user, currency string
		balance        float64
		yes            bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a user's trades and cashflows and set a new starting balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every trade and cashflow for %s; pass --yes to confirm", user)
			}
			amount, err := domain.DecimalFromFloat("balance", balance)
			if err != nil {
				return err
			}
			return opts.withContainer(cmd, func(cfg *config.Config, c *di.Container) error {
				cur := domain.Currency(cfg.Policy.DefaultCurrency)
				if currency != "" {
					if cur, err = domain.ParseCurrency(currency); err != nil {
						return err
					}
				}
				acc, err := c.LedgerService.ResetAccount(cmd.Context(), user, amount, cur)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), acc)
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user id (required)")
	cmd.Flags().Float64VarP(&balance, "balance", "b", 0, "new starting balance (required)")
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "currency code (default from risk policy)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("balance")
	return cmd
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	var (
		upload bool
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot journal.db into a verified tar.gz archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd, func(cfg *config.Config, c *di.Container) error {
				if list {
					backups, err := c.BackupService.ListBackups()
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), backups)
				}

				if upload && c.R2BackupService == nil {
					return fmt.Errorf("--upload requires R2_BACKUP_ENABLED")
				}
				res, err := c.BackupService.Backup(cmd.Context())
				if err != nil {
					return err
				}
				if _, err := c.BackupService.Verify(cmd.Context(), res.Path); err != nil {
					return fmt.Errorf("backup written but failed verification: %w", err)
				}
				if upload {
					if err := c.R2BackupService.Upload(cmd.Context(), res); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"backup":   res,
					"verified": true,
					"uploaded": upload,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&upload, "upload", false, "also upload the archive to R2")
	cmd.Flags().BoolVar(&list, "list", false, "list local archives instead of creating one")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the journal schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Wiring migrates; running it again confirms the schema is idempotent.
			return opts.withContainer(cmd, func(_ *config.Config, c *di.Container) error {
				if err := c.JournalDB.Migrate(); err != nil {
					return err
				}
				if err := c.JournalDB.HealthCheck(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s\n", c.JournalDB.Path())
				return nil
			})
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		user, email string
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JOURNAL_JWT_SECRET is not set")
			}
			token, err := auth.IssueToken(cfg.JWTSecret, user, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user id (required)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
