package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, cfg Config) *DB {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "journal.db")
	}
	if cfg.Name == "" {
		cfg.Name = "journal"
	}
	db, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestBuildConnectionString(t *testing.T) {
	s := buildConnectionString("/tmp/x.db", ProfileLedger, 3*time.Second)
	assert.Contains(t, s, "/tmp/x.db?_txlock=immediate")
	assert.Contains(t, s, "synchronous(FULL)")
	assert.Contains(t, s, "busy_timeout(3000)")
	assert.Contains(t, s, "foreign_keys(1)")

	s = buildConnectionString("/tmp/x.db", ProfileStandard, time.Second)
	assert.Contains(t, s, "synchronous(NORMAL)")
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t, Config{Profile: ProfileLedger})
	require.NoError(t, db.Migrate())

	for _, table := range []string{"accounts", "trades", "cashflows"} {
		var name string
		err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := newTestDB(t, Config{})
	sentinel := errors.New("boom")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO accounts (user_id, created_at, updated_at) VALUES ('u1', 0, 0)`)
		require.NoError(t, err)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, Config{})
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRunInTx_DomainErrorsPassThrough(t *testing.T) {
	db := newTestDB(t, Config{})
	err := db.RunInTx(context.Background(), func(tx *sql.Tx) error {
		return domain.ErrInsufficientBalance
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.NotErrorIs(t, err, domain.ErrTransactionConflict)
}

func TestRunInTx_RetriesBusyThenConflict(t *testing.T) {
	db := newTestDB(t, Config{MaxRetries: 2, RetryDelay: time.Millisecond})
	attempts := 0
	err := db.RunInTx(context.Background(), func(tx *sql.Tx) error {
		attempts++
		return errors.New("database is locked (5) (SQLITE_BUSY)")
	})
	assert.ErrorIs(t, err, domain.ErrTransactionConflict)
	assert.Equal(t, 3, attempts)
}

func TestRunInTx_SucceedsAfterBusy(t *testing.T) {
	db := newTestDB(t, Config{MaxRetries: 3, RetryDelay: time.Millisecond})
	attempts := 0
	err := db.RunInTx(context.Background(), func(tx *sql.Tx) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRunInTx_ConcurrentIncrementsNoLostUpdates(t *testing.T) {
	db := newTestDB(t, Config{Profile: ProfileLedger, MaxRetries: 50, RetryDelay: time.Millisecond})
	_, err := db.Conn().Exec(`INSERT INTO accounts (user_id, current_balance, created_at, updated_at) VALUES ('u1', '0', 0, 0)`)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := db.RunInTx(context.Background(), func(tx *sql.Tx) error {
					var cur int
					if err := tx.QueryRow(`SELECT CAST(current_balance AS INTEGER) FROM accounts WHERE user_id='u1'`).Scan(&cur); err != nil {
						return err
					}
					_, err := tx.Exec(`UPDATE accounts SET current_balance = CAST(? AS TEXT) WHERE user_id='u1'`, cur+1)
					return err
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	var final int
	require.NoError(t, db.Conn().QueryRow(`SELECT CAST(current_balance AS INTEGER) FROM accounts WHERE user_id='u1'`).Scan(&final))
	assert.Equal(t, workers*perWorker, final)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("no such table")))
	assert.True(t, IsBusy(errors.New("database is locked")))
}

func TestWALCheckpointAndStats(t *testing.T) {
	db := newTestDB(t, Config{})
	require.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("BOGUS"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))

	require.NoError(t, db.HealthCheck(context.Background()))
}

func TestVacuumInto(t *testing.T) {
	db := newTestDB(t, Config{})
	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.VacuumInto(context.Background(), dest))

	copyDB, err := New(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()
	var n int
	require.NoError(t, copyDB.Conn().QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n))
	assert.Equal(t, 0, n)

	assert.Error(t, db.VacuumInto(context.Background(), "/tmp/it's.db"))
}
