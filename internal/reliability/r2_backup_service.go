package reliability

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// minRemoteBackups is kept regardless of retention.
const minRemoteBackups = 3

// R2BackupService manages offsite copies of local archives
type R2BackupService struct {
	store         ObjectStore
	backupService *BackupService
	log           zerolog.Logger
}

// NewR2BackupService creates a new R2 backup service
func NewR2BackupService(store ObjectStore, backupService *BackupService, log zerolog.Logger) *R2BackupService {
	return &R2BackupService{
		store:         store,
		backupService: backupService,
		log:           log.With().Str("service", "r2_backup").Logger(),
	}
}

// Upload copies an archive produced by BackupService to the bucket.
func (s *R2BackupService) Upload(ctx context.Context, res *BackupResult) error {
	f, err := os.Open(res.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	start := time.Now()
	if err := s.store.Upload(ctx, res.Name, f, res.Size); err != nil {
		return fmt.Errorf("failed to upload to r2: %w", err)
	}
	s.log.Info().
		Str("archive", res.Name).
		Int64("size_bytes", res.Size).
		Dur("duration_ms", time.Since(start)).
		Msg("R2 backup uploaded")
	return nil
}

// CreateAndUploadBackup creates a local archive and uploads it.
func (s *R2BackupService) CreateAndUploadBackup(ctx context.Context) (*BackupResult, error) {
	res, err := s.backupService.Backup(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Upload(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// ListBackups lists archives stored in the bucket, newest first
func (s *R2BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list r2 backups: %w", err)
	}

	now := time.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := ParseArchiveName(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping object with unexpected name")
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sortNewestFirst(backups)
	return backups, nil
}

// RotateOldBackups deletes remote archives older than retentionDays.
// The newest minRemoteBackups are always kept; retentionDays <= 0 keeps
// everything. Returns the number deleted.
func (s *R2BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minRemoteBackups {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, b := range backups[minRemoteBackups:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("R2 backup rotation completed")
	return deleted, nil
}
