package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// ErrNoMigration indicates no migration has been applied yet.
var ErrNoMigration = errors.New("no migration")

// MigrationManager applies numbered SQL migrations from a filesystem,
// usually an embed.FS compiled into the store package. Files are named
// NNN_name.up.sql / NNN_name.down.sql and the applied version is tracked in
// a schema_migrations table.
type MigrationManager struct {
	db   *sql.DB
	fsys fs.FS
	dir  string
}

type migration struct {
	version  uint
	name     string
	upFile   string
	downFile string
}

// NewMigrationManager creates a MigrationManager reading dir inside fsys.
func NewMigrationManager(db *sql.DB, fsys fs.FS, dir string) (*MigrationManager, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}
	if _, err := fs.Stat(fsys, dir); err != nil {
		return nil, fmt.Errorf("migrations: directory %s: %w", dir, err)
	}

	mgr := &MigrationManager{db: db, fsys: fsys, dir: dir}
	if err := mgr.ensureSchemaTable(); err != nil {
		return nil, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}
	return mgr, nil
}

func (mgr *MigrationManager) ensureSchemaTable() error {
	_, err := mgr.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Up applies all pending migrations in ascending version order, each in its
// own transaction. Returns the number applied.
func (mgr *MigrationManager) Up(ctx context.Context) (int, error) {
	migrations, err := mgr.loadMigrations()
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	current, err := mgr.Version()
	if err != nil && !errors.Is(err, ErrNoMigration) {
		return 0, fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := mgr.apply(ctx, m.upFile, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return applied, fmt.Errorf("migrations: failed to apply version %d (%s): %w", m.version, m.name, err)
		}
		applied++
	}
	return applied, nil
}

// Down rolls back all applied migrations in descending version order.
func (mgr *MigrationManager) Down(ctx context.Context) error {
	migrations, err := mgr.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	current, err := mgr.Version()
	if errors.Is(err, ErrNoMigration) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if m.version > current {
			continue
		}
		if m.downFile == "" {
			return fmt.Errorf("migrations: version %d (%s) has no down file", m.version, m.name)
		}
		if err := mgr.apply(ctx, m.downFile, "DELETE FROM schema_migrations WHERE version = ?", m.version); err != nil {
			return fmt.Errorf("migrations: failed to roll back version %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (mgr *MigrationManager) apply(ctx context.Context, file, record string, version uint) error {
	body, err := fs.ReadFile(mgr.fsys, file)
	if err != nil {
		return err
	}

	tx, err := mgr.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return err
	}
	return tx.Commit()
}

// Version returns the highest applied migration version, or ErrNoMigration.
func (mgr *MigrationManager) Version() (uint, error) {
	var version uint
	err := mgr.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	if version == 0 {
		return 0, ErrNoMigration
	}
	return version, nil
}

// loadMigrations returns the migrations found in the directory sorted by
// version ascending. Files without a numeric prefix are ignored.
func (mgr *MigrationManager) loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(mgr.fsys, mgr.dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[uint]*migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		version := uint(v)

		m, ok := byVersion[version]
		if !ok {
			m = &migration{version: version}
			byVersion[version] = m
		}

		full := path.Join(mgr.dir, name)
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.name = strings.TrimSuffix(rest, ".up.sql")
			m.upFile = full
		case strings.HasSuffix(rest, ".down.sql"):
			m.downFile = full
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.upFile == "" {
			continue
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
