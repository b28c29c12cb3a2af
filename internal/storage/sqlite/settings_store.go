package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cosmicdatasets/curator/internal/storage"
)

// GetSetting returns the raw value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: setting %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return []byte(value), nil
}

// PutSetting upserts the raw value for key.
func (s *Store) PutSetting(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("%w: setting key is required", storage.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
