package database

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkpack/internal/config"
	"walkpack/internal/db"
)

func TestBackupService_PerformBackup(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	store, err := db.NewDB(filepath.Join(dir, "live.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Exec(`INSERT INTO walkers (id, user_id, name, created_at, updated_at) VALUES ('w1', 'acct', 'Sam', ?, ?)`,
		time.Now(), time.Now())
	require.NoError(t, err)

	svc := NewBackupService(store, config.BackupConfig{Enabled: true, Path: filepath.Join(dir, "backups")}, &logger)
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)

	copyDB, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer copyDB.Close()

	var n int
	require.NoError(t, copyDB.QueryRow(`SELECT COUNT(*) FROM walkers`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestBackupService_CleanupOldBackups(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	old := filepath.Join(dir, "walkpack_20200101_000000.db")
	fresh := filepath.Join(dir, "walkpack_20990101_000000.db")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	svc := NewBackupService(nil, config.BackupConfig{Path: dir, RetentionDays: 7}, &logger)
	assert.Equal(t, 1, svc.CleanupOldBackups())

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}
