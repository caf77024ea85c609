/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the admin CLI.
 */
package di

import (
	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/aristath/tradejournal/internal/modules/analytics"
	"github.com/aristath/tradejournal/internal/modules/kpi"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/reliability"
	"github.com/aristath/tradejournal/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Database
	JournalDB *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Ledger
	LedgerStore   *ledger.SQLStore
	LedgerService *ledger.Service

	// Read models
	KPIService       *kpi.Service
	AnalyticsService *analytics.Service

	// Auth
	Verifier       auth.Verifier
	AuthMiddleware *auth.Middleware

	// Reliability
	BackupService   *reliability.BackupService
	R2BackupService *reliability.R2BackupService // nil unless R2 backups are enabled

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	Backup      *reliability.BackupJob
	Maintenance *reliability.MaintenanceJob
}

// Close stops the scheduler, closes live subscriptions and the database.
// Safe on a partially initialised container.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.EventBus != nil {
		c.EventBus.Close()
	}
	if c.JournalDB != nil {
		return c.JournalDB.Close()
	}
	return nil
}
