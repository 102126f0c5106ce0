package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/db"
	"github.com/tilevault/tilevault-go/migrations"
)

func TestInitDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.InitDB(path)
	require.NoError(t, err)
	defer conn.Close()

	var fk int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys;").Scan(&fk))
	assert.Equal(t, 1, fk, "foreign keys should be enabled")
}

func TestRunMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.InitDB(path)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, db.RunMigrations(conn, migrations.FS))

	// All three tables should exist after migrating.
	for _, table := range []string{"stores", "tiles", "recovery"} {
		var name string
		err := conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.InitDB(path)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, db.RunMigrations(conn, migrations.FS))
	require.NoError(t, db.RunMigrations(conn, migrations.FS))
}
