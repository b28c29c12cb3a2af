// Package storage defines the persistence interfaces for curated assets and
// application settings.
//
// Interfaces are small and focused so that the analysis pipeline and the
// batch controller depend only on the operations they use.
package storage

import (
	"context"

	"github.com/cosmicdatasets/curator/pkg/types"
)

// AssetStore provides CRUD, listing and aggregate statistics for assets.
type AssetStore interface {
	// Create inserts a new asset. Returns ErrConflict if the ID exists.
	Create(ctx context.Context, asset *types.Asset) error

	// Get retrieves an asset by ID.
	// Returns ErrNotFound if the asset doesn't exist.
	Get(ctx context.Context, id string) (*types.Asset, error)

	// Update replaces a stored asset in a single write.
	// Returns ErrNotFound if the asset doesn't exist.
	Update(ctx context.Context, asset *types.Asset) error

	// Delete permanently removes an asset.
	// Returns ErrNotFound if the asset doesn't exist.
	Delete(ctx context.Context, id string) error

	// List retrieves assets with pagination and filtering.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Asset], error)

	// IDs returns the IDs of every asset matching the filter, oldest first.
	IDs(ctx context.Context, opts ListOptions) ([]string, error)

	// Stats summarizes the whole collection.
	Stats(ctx context.Context) (*types.DatasetStats, error)

	// Close releases any resources held by the store.
	Close() error
}

// SettingsStore is a small key/value store for JSON settings blobs.
type SettingsStore interface {
	// GetSetting returns the raw value for key.
	// Returns ErrNotFound if the key was never written.
	GetSetting(ctx context.Context, key string) ([]byte, error)

	// PutSetting writes the raw value for key (upsert semantics).
	PutSetting(ctx context.Context, key string, value []byte) error
}
