// Package curation applies analysis results to stored assets: the batch
// controller, the single-asset path and file import.
package curation

import (
	"context"
	"math"
	"strings"

	"github.com/cosmicdatasets/curator/pkg/types"
)

// Analyzer is the analysis entry point. *analysis.Facade implements it.
type Analyzer interface {
	Analyze(ctx context.Context, asset *types.Asset, payload string) (types.AnalysisResult, error)
}

// Fetcher resolves an asset URL to a base64 payload. *media.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Rating maps a 1-10 aesthetic score onto 1-5 stars: half the score rounded
// half away from zero, clamped. 1→1, 3→2, 5→3, 7→4, 9→5.
func Rating(score float64) int {
	r := int(math.Round(score / 2))
	switch {
	case r < 1:
		return 1
	case r > 5:
		return 5
	default:
		return r
	}
}

// mergeResult returns a copy of asset with result applied. Tags are appended;
// when dedup is set, names already present (case-insensitive) are skipped.
// Caption and aesthetic are replaced, metadata keys are overwritten, and the
// rating is derived from the aesthetic score when there is one.
func mergeResult(asset *types.Asset, result types.AnalysisResult, dedup bool) *types.Asset {
	merged := asset.Clone()

	if dedup {
		seen := make(map[string]bool, len(merged.Tags))
		for _, t := range merged.Tags {
			seen[strings.ToLower(t.Name)] = true
		}
		for _, t := range result.Tags {
			if seen[strings.ToLower(t.Name)] {
				continue
			}
			merged.Tags = append(merged.Tags, t)
		}
	} else {
		merged.Tags = append(merged.Tags, result.Tags...)
	}

	merged.Caption = result.Caption
	merged.Processed = true
	if merged.Metadata == nil {
		merged.Metadata = map[string]any{}
	}
	for k, v := range result.MetadataGuess {
		merged.Metadata[k] = v
	}

	merged.Aesthetic = nil
	if result.Aesthetic != nil {
		a := *result.Aesthetic
		a.ColorPalette = append([]string(nil), result.Aesthetic.ColorPalette...)
		merged.Aesthetic = &a
		merged.Rating = Rating(a.Score)
	}
	return merged
}
