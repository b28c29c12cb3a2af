// Package sqlite implements the storage interfaces on a single SQLite file
// using the CGO-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cosmicdatasets/curator/internal/storage"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store implements storage.AssetStore and storage.SettingsStore.
type Store struct {
	db *sql.DB
}

var (
	_ storage.AssetStore    = (*Store)(nil)
	_ storage.SettingsStore = (*Store)(nil)
)

// New opens the database at dsn and applies pending migrations.
// If the initial open fails due to stale WAL files left behind by a crashed
// process, it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func New(dsn string) (*Store, error) {
	store, err := open(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Warn().Str("component", "sqlite").Str("path", dbPath).Msg("recovered from stale WAL files")
	return store, nil
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	mgr, err := storage.NewMigrationManager(db, migrationFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	applied, err := mgr.Up(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if applied > 0 {
		log.Debug().Str("component", "sqlite").Int("applied", applied).Msg("schema migrated")
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for tooling and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close flushes the WAL into the main database file and releases resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Warn().Err(err).Str("component", "sqlite").Msg("WAL checkpoint on close failed")
	}
	return s.db.Close()
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN.
// Handles bare paths and file: URIs. Returns "" for in-memory databases.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError matches errors caused by stale WAL files after a crash.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale reports whether -shm/-wal files exist and no process holds them
// open. Returns false when lsof is unavailable.
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	output, err := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath).Output()
	if err != nil {
		// lsof exits 1 when no process has the files open
		return true
	}
	return strings.TrimSpace(string(output)) == ""
}

func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("component", "sqlite").Str("path", path).Msg("failed to remove stale WAL file")
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
