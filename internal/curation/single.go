package curation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// Curator analyzes one asset on demand and reports failures to the caller.
type Curator struct {
	store    storage.AssetStore
	analyzer Analyzer
	fetcher  Fetcher
}

// NewCurator creates a single-asset curator.
func NewCurator(store storage.AssetStore, analyzer Analyzer, fetcher Fetcher) *Curator {
	return &Curator{store: store, analyzer: analyzer, fetcher: fetcher}
}

// AnalyzeOne analyzes the asset and merges the result, skipping tags whose
// name (case-insensitive) the asset already has. Returns the saved asset.
func (c *Curator) AnalyzeOne(ctx context.Context, id string) (*types.Asset, error) {
	asset, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", id, err)
	}

	payload, err := c.fetcher.Fetch(ctx, asset.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", asset.URL, err)
	}

	result, err := c.analyzer.Analyze(ctx, asset, payload)
	if err != nil {
		return nil, fmt.Errorf("analyze asset %s: %w", id, err)
	}

	merged := mergeResult(asset, result, true)
	if err := c.store.Update(ctx, merged); err != nil {
		return nil, fmt.Errorf("save asset %s: %w", id, err)
	}

	log.Info().
		Str("component", "curator").
		Str("asset_id", id).
		Int("new_tags", len(merged.Tags)-len(asset.Tags)).
		Int("rating", merged.Rating).
		Msg("asset analyzed")
	return merged, nil
}
