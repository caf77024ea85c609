// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/analytics"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/reliability"
	"github.com/aristath/tradejournal/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates all services and stores them in the container
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.JournalDB == nil {
		return fmt.Errorf("container has no journal database")
	}

	// Event bus first: the ledger publishes on it and live feeds read it
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.LedgerStore = ledger.OpenSQLStore(container.JournalDB, log)
	container.LedgerService = ledger.NewService(container.LedgerStore, container.EventManager, cfg.Policy, log)

	loc := cfg.Location()
	container.KPIService = kpi.NewService(container.LedgerService, cfg.Policy, loc, log)
	container.AnalyticsService = analytics.NewService(container.LedgerService, cfg.Policy, loc, log)

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return err
	}
	container.Verifier = verifier
	container.AuthMiddleware = auth.NewMiddleware(verifier, auth.EnsureFunc(func(ctx context.Context, userID string) error {
		_, err := container.LedgerService.EnsureAccount(ctx, userID)
		return err
	}), log)

	container.BackupService = reliability.NewBackupService(
		container.JournalDB,
		cfg.Backup.Dir,
		cfg.Backup.Retention,
		container.EventManager,
		log,
	)

	if cfg.R2.Enabled {
		client, err := reliability.NewR2Client(
			context.Background(),
			cfg.R2.AccountID,
			cfg.R2.AccessKeyID,
			cfg.R2.SecretAccessKey,
			cfg.R2.BucketName,
			log,
		)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		container.R2BackupService = reliability.NewR2BackupService(client, container.BackupService, log)
		log.Info().Str("bucket", cfg.R2.BucketName).Msg("R2 backups enabled")
	}

	container.Scheduler = scheduler.New(log)

	log.Info().Msg("All services initialized")
	return nil
}

// newVerifier picks the token verifier. Dev mode without a secret trusts
// the X-User-ID header.
func newVerifier(cfg *config.Config, log zerolog.Logger) (auth.Verifier, error) {
	if cfg.JWTSecret == "" {
		if !cfg.DevMode {
			return nil, fmt.Errorf("JWT secret is required outside dev mode")
		}
		log.Warn().Msg("No JWT secret configured, trusting X-User-ID header (dev mode)")
		return auth.HeaderVerifier{}, nil
	}
	return auth.NewJWTVerifier(cfg.JWTSecret)
}
