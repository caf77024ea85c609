// Package testing provides test helpers shared across the journal packages.
package testing

import (
	"os"
	"testing"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/rs/zerolog"
)

// NewTestDB creates a migrated journal database in a temporary file.
// Returns the database instance and a cleanup function that closes the
// connection and removes the file. The cleanup function is idempotent.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_journal_*.db")
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:       tmpPath,
		Profile:    database.ProfileLedger,
		Name:       "journal",
		MaxRetries: 20,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
		for _, p := range []string{tmpPath, tmpPath + "-wal", tmpPath + "-shm"} {
			_ = os.Remove(p)
		}
	}
}

// NopLogger returns a disabled logger for tests.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
