package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// GeminiAnalyzer runs the structured-schema Gemini path with a prompt and
// MIME type per media kind.
type GeminiAnalyzer struct {
	client *llm.GeminiClient
	now    func() time.Time
}

// NewGeminiAnalyzer creates a Gemini analyzer.
func NewGeminiAnalyzer(client *llm.GeminiClient) *GeminiAnalyzer {
	return &GeminiAnalyzer{client: client, now: time.Now}
}

// Analyze never returns an error; failures degrade like the single-pass path.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult {
	prompt, mimeType := geminiPromptFor(asset.Kind)

	out, err := a.client.Analyze(ctx, llm.GeminiRequest{
		Prompt:   prompt,
		MimeType: mimeType,
		Data:     payload,
		Schema:   llm.AnalysisSchema(),
	})
	if err != nil {
		log.Error().Err(err).Str("component", "analysis").Str("asset_id", asset.ID).Msg("gemini analysis failed")
		return singleTagResult(SinglePassErrorTag, SinglePassErrorCaption, source, 0, a.now())
	}

	raw := RawAnalysis{
		Tags:              TagList(out.Tags),
		Caption:           out.Caption,
		AestheticScore:    out.AestheticScore,
		IsGalleryStandard: out.IsGalleryStandard,
		Critique:          out.Critique,
		ColorPalette:      out.ColorPalette,
		CameraGuess:       out.CameraGuess,
		BPM:               out.BPM,
		MusicalKey:        out.MusicalKey,
	}
	return Normalize(raw, source, NormalizeOptions{
		Kind:       asset.Kind,
		Confidence: ConfidenceGemini,
		Now:        a.now,
	})
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
