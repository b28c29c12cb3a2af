package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/internal/media"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// Local path labels.
const (
	LocalErrorTag        = "error_fallback"
	LocalErrorCaption    = "Error contacting local backend."
	LocalDefaultCritique = "Locally analyzed."

	SimulationScore    = 7.5
	SimulationCritique = "Simulation mode active. Backend unavailable for deep aesthetic analysis."
)

// DefaultSimulationDelay is the artificial latency of simulation mode.
const DefaultSimulationDelay = 500 * time.Millisecond

// SimulationPalette is used when the payload is not a decodable image.
var SimulationPalette = []string{"#334155", "#475569", "#94a3b8"}

// LocalAnalyzer targets the local inference backend and falls back to a
// clearly labelled simulation when the backend does not answer its health probe.
type LocalAnalyzer struct {
	client          *llm.LocalClient
	simulationDelay time.Duration
	now             func() time.Time
}

// NewLocalAnalyzer creates a local analyzer. A negative delay disables the
// simulation latency.
func NewLocalAnalyzer(client *llm.LocalClient, simulationDelay time.Duration) *LocalAnalyzer {
	if simulationDelay == 0 {
		simulationDelay = DefaultSimulationDelay
	}
	return &LocalAnalyzer{client: client, simulationDelay: simulationDelay, now: time.Now}
}

// Analyze never returns an error.
func (a *LocalAnalyzer) Analyze(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult {
	logger := log.With().Str("component", "analysis").Str("asset_id", asset.ID).Logger()

	if !a.client.Health(ctx) {
		logger.Warn().Str("url", a.client.BaseURL()).Msg("local backend offline, falling back to simulation mode")
		return a.simulate(ctx, asset, payload, source)
	}

	resp, err := a.client.Analyze(ctx, llm.LocalAnalyzeRequest{
		ID:   asset.ID,
		Type: string(asset.Kind),
		Data: payload,
		Options: llm.LocalAnalyzeOptions{
			UseQwen:          true,
			UseAudioAnalysis: asset.Kind == types.KindAudio,
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("local analysis failed")
		return singleTagResult(LocalErrorTag, LocalErrorCaption, source, 0, a.now())
	}

	raw := RawAnalysis{
		Tags:           TagList(resp.Tags),
		Caption:        resp.Caption,
		AestheticScore: resp.AestheticScore,
		ColorPalette:   resp.Colors,
		Critique:       resp.Critique,
		Metadata:       resp.Metadata,
	}
	return Normalize(raw, source, NormalizeOptions{
		Kind:            asset.Kind,
		Confidence:      ConfidenceLocal,
		DefaultCritique: LocalDefaultCritique,
		Now:             a.now,
	})
}

// simulate fabricates a plausible, clearly labelled result without inference.
func (a *LocalAnalyzer) simulate(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult {
	if a.simulationDelay > 0 {
		t := time.NewTimer(a.simulationDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	tags := []string{"offline_mode", "simulation", "demo_asset"}
	switch asset.Kind {
	case types.KindVideo:
		tags = append(tags, "motion_graphics", "cyberpunk", "neon", "cityscape", "loop")
	case types.KindAudio:
		tags = append(tags, "audio_waveform")
	default:
		tags = append(tags, "visual_art")
	}

	score := SimulationScore
	critique := SimulationCritique
	gallery := true
	raw := RawAnalysis{
		Tags:     TagList(tags),
		Caption:  fmt.Sprintf("(Offline Simulation) Analysis of %s. The local AI backend is unreachable; start it for real local inference.", asset.Name),
		Metadata: map[string]any{"simulation": true, "backend": "offline"},
	}
	if asset.Kind == types.KindImage {
		raw.AestheticScore = &score
		raw.Critique = &critique
		raw.IsGalleryStandard = &gallery
		raw.ColorPalette = simulationPalette(payload)
	}

	return Normalize(raw, source, NormalizeOptions{
		Kind:       asset.Kind,
		Confidence: ConfidenceLocal,
		Now:        a.now,
	})
}

func simulationPalette(payload string) []string {
	palette, err := media.PaletteFromBase64(payload, len(SimulationPalette))
	if err != nil || len(palette) == 0 {
		return append([]string(nil), SimulationPalette...)
	}
	return palette
}

var _ Analyzer = (*LocalAnalyzer)(nil)
