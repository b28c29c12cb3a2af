package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/pkg/types"
)

const assetColumns = `id, kind, name, url, thumbnail_url, metadata, tags, rating,
	flagged, processed, caption, aesthetic, created_at, updated_at`

// Create inserts a new asset.
func (s *Store) Create(ctx context.Context, asset *types.Asset) error {
	if asset == nil {
		return storage.ErrInvalidInput
	}
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = now
	}

	row, err := encodeAsset(asset)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, row...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: asset %s", storage.ErrConflict, asset.ID)
		}
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

// Get retrieves an asset by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.Asset, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: asset ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: asset %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// Update replaces every column of an existing asset in one statement.
func (s *Store) Update(ctx context.Context, asset *types.Asset) error {
	if asset == nil {
		return storage.ErrInvalidInput
	}
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	asset.UpdatedAt = time.Now().UTC()
	row, err := encodeAsset(asset)
	if err != nil {
		return err
	}

	// id first in the column list, created_at is never rewritten
	result, err := s.db.ExecContext(ctx, `UPDATE assets SET
			kind = ?, name = ?, url = ?, thumbnail_url = ?, metadata = ?, tags = ?,
			rating = ?, flagged = ?, processed = ?, caption = ?, aesthetic = ?, updated_at = ?
		WHERE id = ?`,
		row[1], row[2], row[3], row[4], row[5], row[6],
		row[7], row[8], row[9], row[10], row[11], row[13],
		row[0],
	)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return requireAffected(result, asset.ID)
}

// Delete permanently removes an asset.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: asset ID is required", storage.ErrInvalidInput)
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return requireAffected(result, id)
}

// List retrieves assets with pagination and filtering.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Asset], error) {
	opts.Normalize()
	where, args := whereClause(opts)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}

	// SortBy and SortOrder are whitelisted by Normalize
	query := fmt.Sprintf("SELECT %s FROM assets%s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?",
		assetColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder))
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]types.Asset, 0, opts.Limit)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}

	return &storage.PaginatedResult[types.Asset]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// IDs returns every matching asset ID, oldest first.
func (s *Store) IDs(ctx context.Context, opts storage.ListOptions) ([]string, error) {
	where, args := whereClause(opts)
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM assets"+where+" ORDER BY created_at ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan asset id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats summarizes the collection. AverageRating only counts rated assets.
func (s *Store) Stats(ctx context.Context) (*types.DatasetStats, error) {
	var stats types.DatasetStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(processed), 0),
			COALESCE(SUM(flagged), 0),
			COALESCE(SUM(kind = 'image'), 0),
			COALESCE(SUM(kind = 'audio'), 0),
			COALESCE(SUM(kind = 'video'), 0),
			AVG(CASE WHEN rating > 0 THEN rating END)
		FROM assets`).Scan(
		&stats.TotalAssets,
		&stats.ProcessedAssets,
		&stats.FlaggedAssets,
		&stats.ImageCount,
		&stats.AudioCount,
		&stats.VideoCount,
		&avg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = avg.Float64
	}
	return &stats, nil
}

func whereClause(opts storage.ListOptions) (string, []any) {
	var conditions []string
	var args []any

	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if opts.Processed != nil {
		conditions = append(conditions, "processed = ?")
		args = append(args, boolInt(*opts.Processed))
	}
	if opts.Flagged != nil {
		conditions = append(conditions, "flagged = ?")
		args = append(args, boolInt(*opts.Flagged))
	}
	if opts.MinRating > 0 {
		conditions = append(conditions, "rating >= ?")
		args = append(args, opts.MinRating)
	}
	if opts.NameContains != "" {
		conditions = append(conditions, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(opts.NameContains)+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: asset %s", storage.ErrNotFound, id)
	}
	return nil
}

// encodeAsset returns the column values in assetColumns order.
func encodeAsset(a *types.Asset) ([]any, error) {
	metadata, err := marshalNullable(a.Metadata, len(a.Metadata) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	tags, err := marshalNullable(a.Tags, len(a.Tags) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	aesthetic, err := marshalNullable(a.Aesthetic, a.Aesthetic != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aesthetic: %w", err)
	}

	return []any{
		a.ID,
		string(a.Kind),
		a.Name,
		a.URL,
		nullableString(a.ThumbnailURL),
		metadata,
		tags,
		a.Rating,
		boolInt(a.Flagged),
		boolInt(a.Processed),
		nullableString(a.Caption),
		aesthetic,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
		a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (*types.Asset, error) {
	var (
		a                         types.Asset
		kind                      string
		thumbnail, caption        sql.NullString
		metadata, tags, aesthetic sql.NullString
		flagged, processed        int
		createdAt, updatedAt      string
	)
	err := row.Scan(&a.ID, &kind, &a.Name, &a.URL, &thumbnail, &metadata, &tags, &a.Rating,
		&flagged, &processed, &caption, &aesthetic, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}

	a.Kind = types.AssetKind(kind)
	a.ThumbnailURL = thumbnail.String
	a.Caption = caption.String
	a.Flagged = flagged != 0
	a.Processed = processed != 0

	a.Metadata = map[string]any{}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", a.ID, err)
		}
	}
	a.Tags = []types.Tag{}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", a.ID, err)
		}
	}
	if aesthetic.Valid {
		a.Aesthetic = &types.AestheticData{}
		if err := json.Unmarshal([]byte(aesthetic.String), a.Aesthetic); err != nil {
			return nil, fmt.Errorf("failed to unmarshal aesthetic for %s: %w", a.ID, err)
		}
	}

	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", a.ID, err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for %s: %w", a.ID, err)
	}
	return &a, nil
}

func marshalNullable(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// nullableString converts a string to sql.NullString.
// An empty string is treated as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
