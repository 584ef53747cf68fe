package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	driver, dsn, err := Config{Driver: "mysql", User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "conf"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "app:pw@tcp(db:3306)/conf?charset=utf8mb4&loc=UTC&clientFoundRows=true", dsn)

	driver, dsn, err = Config{Driver: "postgres", User: "app", Host: "db", Port: "5432", Name: "conf"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Contains(t, dsn, "dbname=conf")

	_, _, err = Config{Driver: "sqlite"}.DSN()
	assert.Error(t, err)

	_, _, err = Config{Driver: "oracle"}.DSN()
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE TABLE b (y INT);\n")

	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE b"))
}

func TestMigrate_SQLiteIsIdempotent(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats`).Scan(&n))
	assert.Equal(t, 0, n)
}
