package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(Config{Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateCreatesSchema(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, Migrate(conn, zap.NewNop()))

	for _, table := range []string{"activity_snapshots", "device_snapshots", "trips", "analysis_tasks"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	// second run is a no-op
	require.NoError(t, Migrate(conn, zap.NewNop()))

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLoadMigrationsOrdersAndSkipsInvalid(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"m/001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"m/notes.txt":      {Data: []byte("ignored")},
		"m/bad.sql":        {Data: []byte("ignored")},
	}
	m := NewMigrationManager(openMemory(t), fsys, "m", zap.NewNop())

	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)

	require.NoError(t, m.RunMigrations())
	applied, err := m.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, applied)
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	fsys := fstest.MapFS{"m/001_broken.sql": {Data: []byte("CREATE TABLE (")}}
	m := NewMigrationManager(openMemory(t), fsys, "m", zap.NewNop())

	require.Error(t, m.RunMigrations())
	applied, err := m.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestTransactionRollsBack(t *testing.T) {
	conn := openMemory(t)
	_, err := conn.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Transaction(context.Background(), conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES (1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, Transaction(context.Background(), conn, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES (2)")
		return err
	}))

	var sum int
	require.NoError(t, conn.QueryRow("SELECT COALESCE(SUM(v), 0) FROM t").Scan(&sum))
	assert.Equal(t, 2, sum)
}
