package curation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cosmicdatasets/curator/internal/metrics"
	"github.com/cosmicdatasets/curator/internal/storage"
)

// Progress is emitted after every batch item, successful or not.
type Progress struct {
	RunID   string `json:"run_id"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	AssetID string `json:"asset_id"`
	Err     error  `json:"-"`
}

// Failed reports whether the item failed.
func (p Progress) Failed() bool { return p.Err != nil }

// Summary is the outcome of a whole batch run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ControllerOptions tunes a Controller.
type ControllerOptions struct {
	// Interval is the minimum spacing between items. Zero disables throttling.
	Interval time.Duration
}

// Controller analyzes a selection of assets one at a time.
type Controller struct {
	store    storage.AssetStore
	analyzer Analyzer
	fetcher  Fetcher
	limiter  *rate.Limiter
}

// NewController creates a batch controller.
func NewController(store storage.AssetStore, analyzer Analyzer, fetcher Fetcher, opts ControllerOptions) *Controller {
	c := &Controller{store: store, analyzer: analyzer, fetcher: fetcher}
	if opts.Interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}
	return c
}

// Start processes ids strictly sequentially on one goroutine and returns a
// channel that receives one Progress per id and is closed when the run ends.
// A failing item is logged and reported; the run always continues. The
// context is passed to I/O only and does not stop the loop.
func (c *Controller) Start(ctx context.Context, ids []string) <-chan Progress {
	// buffered so an abandoned consumer never stalls the run
	out := make(chan Progress, len(ids))
	runID := uuid.NewString()

	go func() {
		defer close(out)
		metrics.BatchInProgress.Inc()
		defer metrics.BatchInProgress.Dec()

		logger := log.With().Str("component", "batch").Str("run_id", runID).Logger()
		logger.Info().Int("total", len(ids)).Msg("batch started")
		start := time.Now()

		failed := 0
		for i, id := range ids {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					logger.Debug().Err(err).Msg("throttle wait interrupted")
				}
			}

			err := c.processOne(ctx, id, logger)
			metrics.RecordBatchAsset(err == nil)
			if err != nil {
				failed++
				logger.Error().Err(err).Str("asset_id", id).Msg("batch item failed")
			}

			out <- Progress{RunID: runID, Current: i + 1, Total: len(ids), AssetID: id, Err: err}
		}

		logger.Info().
			Int("total", len(ids)).
			Int("failed", failed).
			Dur("elapsed", time.Since(start)).
			Msg("batch finished")
	}()

	return out
}

// Run is the blocking form of Start. onProgress may be nil.
func (c *Controller) Run(ctx context.Context, ids []string, onProgress func(Progress)) Summary {
	start := time.Now()
	summary := Summary{Total: len(ids)}
	for p := range c.Start(ctx, ids) {
		summary.RunID = p.RunID
		if p.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
	summary.Elapsed = time.Since(start)
	return summary
}

// processOne resolves, analyzes, merges and persists one asset. The store is
// written once, after every other step succeeded.
func (c *Controller) processOne(ctx context.Context, id string, logger zerolog.Logger) error {
	asset, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load asset %s: %w", id, err)
	}

	payload, err := c.fetcher.Fetch(ctx, asset.URL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", asset.URL, err)
	}

	result, err := c.analyzer.Analyze(ctx, asset, payload)
	if err != nil {
		return fmt.Errorf("analyze asset %s: %w", id, err)
	}

	merged := mergeResult(asset, result, false)
	if err := c.store.Update(ctx, merged); err != nil {
		return fmt.Errorf("save asset %s: %w", id, err)
	}

	logger.Debug().Str("asset_id", id).Int("tags", len(result.Tags)).Int("rating", merged.Rating).Msg("asset curated")
	return nil
}
