// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/reliability"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the backup and maintenance jobs and schedules them.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.Scheduler == nil || container.BackupService == nil {
		return nil, fmt.Errorf("services must be initialized before jobs")
	}

	instances := &JobInstances{
		Backup: reliability.NewBackupJob(
			container.BackupService,
			container.R2BackupService,
			cfg.R2.Retention,
			log,
		),
		Maintenance: reliability.NewMaintenanceJob(container.JournalDB, container.BackupService, log),
	}

	if err := container.Scheduler.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
		return nil, fmt.Errorf("failed to schedule backup job: %w", err)
	}
	if err := container.Scheduler.AddJob(cfg.Backup.MaintenanceSchedule, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to schedule maintenance job: %w", err)
	}

	log.Info().
		Str("backup_schedule", cfg.Backup.Schedule).
		Str("maintenance_schedule", cfg.Backup.MaintenanceSchedule).
		Bool("r2", container.R2BackupService != nil).
		Msg("Jobs registered")

	return instances, nil
}
