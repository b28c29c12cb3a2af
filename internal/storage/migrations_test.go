package storage

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_init.up.sql":     {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"m/001_init.down.sql":   {Data: []byte("DROP TABLE a;")},
		"m/002_more.up.sql":     {Data: []byte("CREATE TABLE b (id TEXT PRIMARY KEY);")},
		"m/002_more.down.sql":   {Data: []byte("DROP TABLE b;")},
		"m/README.md":           {Data: []byte("ignored")},
		"m/notes_init.up.sql":   {Data: []byte("ignored")},
		"m/003_orphan.down.sql": {Data: []byte("ignored")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n))
	return n > 0
}

func TestMigrationManager_UpDown(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	mgr, err := NewMigrationManager(db, testFS(), "m")
	require.NoError(t, err)

	_, err = mgr.Version()
	assert.ErrorIs(t, err, ErrNoMigration)

	applied, err := mgr.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.True(t, tableExists(t, db, "a"))
	assert.True(t, tableExists(t, db, "b"))

	v, err := mgr.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	applied, err = mgr.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	require.NoError(t, mgr.Down(ctx))
	assert.False(t, tableExists(t, db, "a"))
	_, err = mgr.Version()
	assert.ErrorIs(t, err, ErrNoMigration)
}

func TestMigrationManager_MissingDir(t *testing.T) {
	_, err := NewMigrationManager(openDB(t), testFS(), "nope")
	assert.Error(t, err)

	_, err = NewMigrationManager(nil, testFS(), "m")
	assert.Error(t, err)
}

func TestMigrationManager_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openDB(t)
	fsys := fstest.MapFS{
		"m/001_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"m/002_bad.up.sql": {Data: []byte("CREATE TABLE broken (;")},
	}
	mgr, err := NewMigrationManager(db, fsys, "m")
	require.NoError(t, err)

	applied, err := mgr.Up(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, applied)

	v, err := mgr.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func TestListOptions_Normalize(t *testing.T) {
	opts := ListOptions{SortBy: "rating; DROP TABLE assets", SortOrder: "sideways", Limit: 10000}
	opts.Normalize()
	assert.Equal(t, "created_at", opts.SortBy)
	assert.Equal(t, "desc", opts.SortOrder)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, 0, opts.Offset())

	opts = ListOptions{Page: 3, Limit: 20, SortBy: "rating", SortOrder: "asc"}
	opts.Normalize()
	assert.Equal(t, 40, opts.Offset())
	assert.Equal(t, "rating", opts.SortBy)
}
