// Package reliability provides local and offsite backups of the journal
// database and the scheduled maintenance that keeps it healthy.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/events"
	"github.com/rs/zerolog"
)

const (
	archivePrefix   = "journal-backup-"
	archiveSuffix   = ".tar.gz"
	archiveTSLayout = "2006-01-02-150405"
	metadataFile    = "metadata.json"
	dbFile          = "journal.db"
	metadataVersion = "1"
)

// BackupMetadata is written into every archive as metadata.json.
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupResult describes one archive produced by Backup.
type BackupResult struct {
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	Size     int64          `json:"size_bytes"`
	Metadata BackupMetadata `json:"metadata"`
}

// BackupInfo represents one stored archive, local or remote
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots journal.db into tar.gz archives under dir.
type BackupService struct {
	db        *database.DB
	dir       string
	retention int
	events    *events.Manager
	now       func() time.Time
	log       zerolog.Logger
}

// NewBackupService creates a backup service. retention is the number of
// local archives kept; values below 1 keep one.
func NewBackupService(db *database.DB, dir string, retention int, em *events.Manager, log zerolog.Logger) *BackupService {
	if retention < 1 {
		retention = 1
	}
	return &BackupService{
		db:        db,
		dir:       dir,
		retention: retention,
		events:    em,
		now:       time.Now,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// SetClock replaces the time source used for archive names.
func (s *BackupService) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the local archive directory.
func (s *BackupService) Dir() string {
	return s.dir
}

// Backup writes a consistent snapshot, archives it with its metadata and
// prunes old archives.
func (s *BackupService) Backup(ctx context.Context) (*BackupResult, error) {
	start := time.Now()
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	staging, err := os.MkdirTemp(s.dir, ".staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	snapshot := filepath.Join(staging, dbFile)
	if err := s.db.VacuumInto(ctx, snapshot); err != nil {
		return nil, err
	}

	info, err := os.Stat(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	checksum, err := fileChecksum(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum snapshot: %w", err)
	}

	ts := s.now().UTC()
	meta := BackupMetadata{
		Timestamp: ts,
		Version:   metadataVersion,
		Database:  s.db.Name(),
		Filename:  dbFile,
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	if err := writeMetadata(filepath.Join(staging, metadataFile), meta); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	name := ArchiveName(ts)
	archivePath := filepath.Join(s.dir, name)
	if err := createArchive(archivePath, staging, []string{dbFile, metadataFile}); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := s.prune(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to prune old backups")
	}

	res := &BackupResult{Path: archivePath, Name: name, Size: archiveInfo.Size(), Metadata: meta}
	s.log.Info().
		Str("archive", name).
		Int64("size_bytes", res.Size).
		Dur("duration_ms", time.Since(start)).
		Msg("Backup completed")
	if s.events != nil {
		s.events.EmitTyped("", "reliability", &events.BackupCompletedData{
			Archive:   name,
			SizeBytes: res.Size,
			Checksum:  checksum,
		})
	}
	return res, nil
}

// ListBackups returns local archives, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	now := s.now()
	var out []BackupInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := ParseArchiveName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Filename:  e.Name(),
			Timestamp: ts,
			SizeBytes: info.Size(),
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *BackupService) prune() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}
	for i, b := range backups {
		if i < s.retention {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, b.Filename)); err != nil {
			return err
		}
		s.log.Debug().Str("archive", b.Filename).Msg("Pruned old backup")
	}
	return nil
}

// Verify extracts an archive to a temp directory, checks the snapshot
// checksum against metadata.json and runs an integrity check on it.
func (s *BackupService) Verify(ctx context.Context, archivePath string) (*BackupMetadata, error) {
	tmp, err := os.MkdirTemp("", "journal-verify-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := extractArchive(archivePath, tmp); err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(archivePath), err)
	}

	raw, err := os.ReadFile(filepath.Join(tmp, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("archive has no metadata: %w", err)
	}
	var meta BackupMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	snapshot := filepath.Join(tmp, meta.Filename)
	sum, err := fileChecksum(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum snapshot: %w", err)
	}
	if sum != meta.Checksum {
		return nil, fmt.Errorf("checksum mismatch: metadata %s, file %s", meta.Checksum, sum)
	}

	conn, err := sql.Open("sqlite", snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer conn.Close()

	var result string
	if err := conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return nil, fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return nil, fmt.Errorf("integrity check failed: %s", result)
	}
	return &meta, nil
}

// ArchiveName formats the archive file name for ts.
func ArchiveName(ts time.Time) string {
	return archivePrefix + ts.UTC().Format(archiveTSLayout) + archiveSuffix
}

// ParseArchiveName extracts the timestamp from an archive file name.
func ParseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	ts, err := time.Parse(archiveTSLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func sortNewestFirst(b []BackupInfo) {
	sort.Slice(b, func(i, j int) bool { return b[i].Timestamp.After(b[j].Timestamp) })
}

// fileChecksum calculates the SHA256 checksum of a file
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

func writeMetadata(path string, meta BackupMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// createArchive creates a tar.gz archive of the named files in sourceDir
func createArchive(archivePath, sourceDir string, names []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		if err := addFileToArchive(tw, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Sync()
}

func addFileToArchive(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     info.Size(),
		Mode:     int64(info.Mode().Perm()),
		ModTime:  info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// extractArchive unpacks regular files from a tar.gz into dir. Entries with
// path components are rejected.
func extractArchive(archivePath, dir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		if filepath.Base(h.Name) != h.Name {
			return fmt.Errorf("unexpected entry %q", h.Name)
		}
		out, err := os.Create(filepath.Join(dir, h.Name))
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
}
