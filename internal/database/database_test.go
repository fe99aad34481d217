package database_test

import (
	"path/filepath"
	"testing"

	"equipqr/sync-agent/internal/database"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_AppliesConnectionPragmas(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")

	db, err := database.New(path, zap.NewNop())
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO queue_items (id, scope_key, operation, payload, status, attempts, created_at)
		VALUES ('item-1', 'u::o', 'work_order_status_update', '{}', 'pending', 0, CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening the same file re-runs the migration list without clobbering data
	db, err = database.New(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM queue_items").Scan(&count))
	require.Equal(t, 1, count)
}
