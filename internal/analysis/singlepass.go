package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// Degraded single-pass result labels.
const (
	SinglePassErrorTag     = "error_contacting_api"
	SinglePassErrorCaption = "Error contacting API."
)

// SinglePassAnalyzer sends the asset in one multimodal JSON-mode chat call.
// It serves OpenAI, OpenRouter and Ollama.
type SinglePassAnalyzer struct {
	client llm.ChatCompleter
	now    func() time.Time
}

// NewSinglePassAnalyzer creates a single-pass analyzer over a chat adapter.
func NewSinglePassAnalyzer(client llm.ChatCompleter) *SinglePassAnalyzer {
	return &SinglePassAnalyzer{client: client, now: time.Now}
}

// Analyze never returns an error; adapter and parse failures yield the
// labelled degraded result.
func (a *SinglePassAnalyzer) Analyze(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult {
	logger := log.With().Str("component", "analysis").Str("asset_id", asset.ID).Str("model", a.client.GetModel()).Logger()

	content, err := a.client.ChatComplete(ctx, llm.ChatRequest{
		JSONMode: true,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: SinglePassSystemPrompt},
			{Role: "user", Parts: []llm.ContentPart{
				llm.TextPart(SinglePassUserPrompt),
				llm.ImagePart(payload),
			}},
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("single pass analysis failed")
		return singleTagResult(SinglePassErrorTag, SinglePassErrorCaption, source, 0, a.now())
	}

	raw, err := ParseRawAnalysis(content)
	if err != nil {
		logger.Error().Err(err).Msg("single pass response was not valid JSON")
		return singleTagResult(SinglePassErrorTag, SinglePassErrorCaption, source, 0, a.now())
	}

	return Normalize(raw, source, NormalizeOptions{
		Kind:       asset.Kind,
		Confidence: ConfidenceGeneric,
		Now:        a.now,
	})
}

var _ Analyzer = (*SinglePassAnalyzer)(nil)
