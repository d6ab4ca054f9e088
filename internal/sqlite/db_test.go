package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"ledger_records",
		"ledger_verifications",
		"creator_stats",
		"activity_log",
		"api_keys",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")

	_, err = db.Exec(`INSERT INTO ledger_verifications (record_id, verifier, seq, verified_at) VALUES (42, 'bob', 1, 0)`)
	require.Error(t, err)
	require.True(t, isForeignKeyViolation(err))
}

func TestSchemaConstraints(t *testing.T) {
	db := NewTestDB(t)

	insert := `INSERT INTO ledger_records (id, fingerprint, creator, owner, metadata_ref, created_at, verification_count)
		VALUES (?, ?, 'alice', 'alice', '', 0, 0)`

	_, err := db.Exec(insert, 0, make([]byte, 31))
	require.Error(t, err, "short fingerprint accepted")

	fp := make([]byte, 32)
	fp[0] = 1
	_, err = db.Exec(insert, 0, fp)
	require.NoError(t, err)

	_, err = db.Exec(insert, 1, fp)
	require.Error(t, err)
	require.True(t, isUniqueViolation(err))
}
