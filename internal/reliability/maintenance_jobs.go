package reliability

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	jobTimeout = 10 * time.Minute

	// minFreeBytes halts maintenance; lowFreeBytes only warns.
	minFreeBytes = 500 << 20
	lowFreeBytes = 5 << 30
)

// BackupJob takes the daily archive and mirrors it to R2 when configured.
type BackupJob struct {
	backups     *BackupService
	r2          *R2BackupService // nil when offsite backups are disabled
	r2Retention int
	log         zerolog.Logger
}

// NewBackupJob creates the journal_backup job. r2 may be nil.
func NewBackupJob(backups *BackupService, r2 *R2BackupService, r2RetentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups:     backups,
		r2:          r2,
		r2Retention: r2RetentionDays,
		log:         log.With().Str("job", "journal_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "journal_backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	res, err := j.backups.Backup(ctx)
	if err != nil {
		return fmt.Errorf("local backup failed: %w", err)
	}
	if j.r2 == nil {
		return nil
	}

	if err := j.r2.Upload(ctx, res); err != nil {
		return err
	}
	if _, err := j.r2.RotateOldBackups(ctx, j.r2Retention); err != nil {
		// The upload succeeded; rotation runs again tomorrow.
		j.log.Warn().Err(err).Msg("R2 rotation failed")
	}
	return nil
}

// MaintenanceReport summarises one maintenance run.
type MaintenanceReport struct {
	IntegrityOK    bool           `json:"integrity_ok"`
	Checkpointed   bool           `json:"checkpointed"`
	FreeBytes      uint64         `json:"free_bytes"`
	LatestBackup   string         `json:"latest_backup,omitempty"`
	BackupVerified bool           `json:"backup_verified"`
	Stats          database.Stats `json:"stats"`
}

// MaintenanceJob runs the integrity check, WAL checkpoint, disk space check
// and verifies the newest local archive.
type MaintenanceJob struct {
	db      *database.DB
	backups *BackupService
	log     zerolog.Logger
}

// NewMaintenanceJob creates the journal_maintenance job.
func NewMaintenanceJob(db *database.DB, backups *BackupService, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		backups: backups,
		log:     log.With().Str("job", "journal_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "journal_maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.Execute(ctx)
	return err
}

// Execute runs maintenance and returns what it found. A failed integrity
// check or critically low disk space is an error; a missing or bad backup
// is only logged.
func (j *MaintenanceJob) Execute(ctx context.Context) (*MaintenanceReport, error) {
	start := time.Now()
	rep := &MaintenanceReport{}

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: journal integrity check failed")
		return rep, err
	}
	rep.IntegrityOK = true

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	} else {
		rep.Checkpointed = true
	}

	free, err := j.checkDiskSpace()
	if err != nil {
		return rep, err
	}
	rep.FreeBytes = free

	if j.backups != nil {
		j.verifyLatestBackup(ctx, rep)
	}

	if stats, err := j.db.GetStats(); err != nil {
		j.log.Warn().Err(err).Msg("Failed to get database stats")
	} else {
		rep.Stats = *stats
		j.log.Info().
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_size_bytes", stats.WALSizeBytes).
			Int64("freelist_count", stats.FreelistCount).
			Msg("Journal database metrics")
	}

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("Maintenance completed")
	return rep, nil
}

func (j *MaintenanceJob) checkDiskSpace() (uint64, error) {
	usage, err := disk.Usage(filepath.Dir(j.db.Path()))
	if err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	switch {
	case usage.Free < minFreeBytes:
		j.log.Error().Uint64("free_bytes", usage.Free).Msg("CRITICAL: insufficient disk space")
		return usage.Free, fmt.Errorf("CRITICAL: only %d bytes free", usage.Free)
	case usage.Free < lowFreeBytes:
		j.log.Warn().Uint64("free_bytes", usage.Free).Msg("Disk space running low")
	}
	return usage.Free, nil
}

func (j *MaintenanceJob) verifyLatestBackup(ctx context.Context, rep *MaintenanceReport) {
	backups, err := j.backups.ListBackups()
	if err != nil || len(backups) == 0 {
		j.log.Warn().Err(err).Msg("No local backup to verify")
		return
	}
	latest := backups[0]
	rep.LatestBackup = latest.Filename

	if _, err := j.backups.Verify(ctx, filepath.Join(j.backups.Dir(), latest.Filename)); err != nil {
		j.log.Error().Err(err).Str("archive", latest.Filename).Msg("Backup verification failed")
		return
	}
	rep.BackupVerified = true
	j.log.Debug().Str("archive", latest.Filename).Msg("Backup verified")
}
