package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("JOURNAL_DATA_DIR", dir)
	t.Setenv("JOURNAL_BACKUP_DIR", filepath.Join(dir, "backups"))
	t.Setenv("DEV_MODE", "true")
	t.Setenv("JOURNAL_TZ", "UTC")
	t.Setenv("JOURNAL_JWT_SECRET", "")
	t.Setenv("R2_BACKUP_ENABLED", "false")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestReset_RequiresConfirmation(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "reset", "--user", "u1", "--balance", "1000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	_, err = run(t, "reset", "--user", "u1", "--balance", "lots", "--yes")
	assert.Error(t, err)
}

func TestReset_RejectsNonFiniteBalance(t *testing.T) {
	setupEnv(t)

	for _, v := range []string{"NaN", "Inf", "-Inf"} {
		_, err := run(t, "reset", "--user", "u1", "--balance="+v, "--yes")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, v)
	}

	out, err := run(t, "reset", "--user", "u1", "--balance", "1250.5", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", decode(t, out)["current_balance"])
}

func TestResetKPIsAndReconcile(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "reset", "--user", "u1", "--balance", "1000", "--currency", "usd", "--yes")
	require.NoError(t, err)
	acc := decode(t, out)
	assert.Equal(t, "USD", acc["currency"])
	assert.Equal(t, "1000", acc["current_balance"])

	out, err = run(t, "kpis", "--user", "u1", "--mode", "month", "--date", "2024-03-15")
	require.NoError(t, err)
	kpis := decode(t, out)
	assert.Len(t, kpis["indicators"], 10)
	assert.NotContains(t, kpis, "kpis")

	out, err = run(t, "reconcile", "--user", "u1")
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, out)["balanced"])

	_, err = run(t, "kpis", "--user", "u1", "--mode", "fortnight")
	assert.Error(t, err)
}

func TestReconcile_AllAccounts(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "reset", "--user", "u1", "--balance", "1000", "--yes")
	require.NoError(t, err)
	_, err = run(t, "reset", "--user", "u2", "--balance", "500", "--yes")
	require.NoError(t, err)

	out, err := run(t, "reconcile", "--all")
	require.NoError(t, err)
	res := decode(t, out)
	assert.Equal(t, true, res["balanced"])
	assert.Len(t, res["accounts"], 2)

	_, err = run(t, "reconcile")
	assert.Error(t, err)
	_, err = run(t, "reconcile", "--all", "--user", "u1")
	assert.Error(t, err)
}

func TestBackup_CreatesVerifiedArchive(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "backup")
	require.NoError(t, err)
	res := decode(t, out)
	assert.Equal(t, true, res["verified"])
	assert.Equal(t, false, res["uploaded"])

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "journal-backup-"))

	out, err = run(t, "backup", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, entries[0].Name())

	_, err = run(t, "backup", "--upload")
	assert.Error(t, err, "upload needs R2")
}

func TestMigrate(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "journal.db"))
}

func TestToken(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "token", "--user", "u1")
	assert.Error(t, err, "no secret configured")

	t.Setenv("JOURNAL_JWT_SECRET", "cli-secret")
	out, err := run(t, "token", "--user", "u1", "--email", "a@example.com")
	require.NoError(t, err)

	v, err := auth.NewJWTVerifier("cli-secret")
	require.NoError(t, err)
	claims, err := v.Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "journalctl version")
}
