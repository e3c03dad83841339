package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE keys (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO keys (v) VALUES ('a'), ('b')`)
	require.NoError(t, err)
	return db
}

func TestSnapshot_CopiesCommittedRows(t *testing.T) {
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "otp.db"), filepath.Join(dir, "otp.db.snapshot")
	db := seed(t, src)

	// An open write transaction on the source must not leak into the copy.
	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO keys (v) VALUES ('uncommitted')`)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, Files{}.Snapshot(context.Background(), src, dst))
	require.NoError(t, Files{}.Check(context.Background(), dst))

	cp, err := sql.Open("sqlite3", "file:"+dst+"?mode=ro")
	require.NoError(t, err)
	defer cp.Close()
	var n int
	require.NoError(t, cp.QueryRow(`SELECT count(*) FROM keys`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSnapshot_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Files{}.Snapshot(context.Background(), filepath.Join(dir, "none.db"), filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheck_RejectsTornFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.db")
	require.NoError(t, os.WriteFile(path, []byte("SQLite format 3\x00garbage-that-is-not-a-page"), 0o600))
	assert.Error(t, Files{}.Check(context.Background(), path))
}
