package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/internal/metrics"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// Agentic fallbacks.
const (
	VisionPlaceholder  = "Vision analysis unavailable."
	FallbackCritique   = "AI backend was unreachable."
	DefaultVisionModel = "llava"

	minVisionLength = 10
)

// FallbackTags mark a result whose reasoning stage never ran.
var FallbackTags = []string{"ai_offline", "simulation_mode", "check_backend"}

// ClientSource supplies adapters for a settings snapshot. *llm.Clients
// implements it.
type ClientSource interface {
	Chat(provider types.Provider, s types.AiSettings, model string) (llm.ChatCompleter, error)
	Local(s types.AiSettings) *llm.LocalClient
}

var _ ClientSource = (*llm.Clients)(nil)

// Orchestrator runs the two-stage vision then cognition workflow. Stage 1
// turns pixels into a dense description; stage 2 has a reasoning model turn
// that text into strict JSON metadata.
type Orchestrator struct {
	clients ClientSource
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(clients ClientSource) *Orchestrator {
	return &Orchestrator{clients: clients, now: time.Now}
}

// Run executes both stages. It never returns an error: a failed vision stage
// continues with a placeholder description and a failed cognition stage is
// replaced by a deterministic fallback that is normalized like any success.
func (o *Orchestrator) Run(ctx context.Context, s types.AiSettings, asset *types.Asset, payload string, source types.TagSource) (types.AnalysisResult, Trace) {
	trace := Trace{AssetID: asset.ID}

	vision := o.vision(ctx, s, asset, payload, &trace)
	description := vision.OrElse(VisionPlaceholder)

	cognition := o.cognition(ctx, s, description, &trace)
	raw := cognition.OrElse(fallbackAnalysis(description))

	for _, r := range []*StageError{vision.Err, cognition.Err} {
		if r == nil {
			continue
		}
		metrics.RecordStageFailure(string(r.Stage), string(r.Kind))
		log.Warn().
			Str("component", "agentic").
			Str("asset_id", asset.ID).
			Str("stage", string(r.Stage)).
			Str("kind", string(r.Kind)).
			Err(r.Err).
			Msg("stage failed, continuing with fallback")
	}

	return Normalize(raw, source, NormalizeOptions{
		Kind:       asset.Kind,
		Confidence: ConfidenceGeneric,
		Now:        o.now,
	}), trace
}

// bind adapts Run to the Analyzer interface for a fixed settings snapshot.
func (o *Orchestrator) bind(s types.AiSettings) Analyzer {
	return analyzerFunc(func(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult {
		result, trace := o.Run(ctx, s, asset, payload, source)
		log.Debug().Str("component", "agentic").Interface("trace", trace).Msg("agentic run complete")
		return result
	})
}

func fallbackAnalysis(description string) RawAnalysis {
	score := 5.0
	critique := FallbackCritique
	return RawAnalysis{
		Tags:           TagList(append([]string(nil), FallbackTags...)),
		Caption:        description,
		AestheticScore: &score,
		Critique:       &critique,
	}
}

// vision runs stage 1.
func (o *Orchestrator) vision(ctx context.Context, s types.AiSettings, asset *types.Asset, payload string, trace *Trace) Result[string] {
	var (
		route string
		text  string
		err   error
	)

	switch {
	case s.ActiveProvider == types.ProviderLocal && !usesOllamaVision(s):
		route = "local_http"
		start := trace.started(StageVision, route)
		text, err = o.localVision(ctx, s, asset, payload)
		return o.finishVision(trace, route, start, text, err)

	case s.ActiveProvider == types.ProviderLocal, s.ActiveProvider == types.ProviderOllama:
		model := s.VisionModelPath
		if model == "" {
			model = DefaultVisionModel
		}
		route = "ollama:" + model
		start := trace.started(StageVision, route)
		text, err = o.chatVision(ctx, types.ProviderOllama, s, model, payload)
		return o.finishVision(trace, route, start, text, err)

	case s.ActiveProvider == types.ProviderOpenAI, s.ActiveProvider == types.ProviderOpenRouter:
		route = string(s.ActiveProvider)
		start := trace.started(StageVision, route)
		text, err = o.chatVision(ctx, s.ActiveProvider, s, "", payload)
		return o.finishVision(trace, route, start, text, err)

	default:
		start := trace.started(StageVision, "none")
		r := Fail[string](StageVision, KindConfig, fmt.Errorf("no vision route for provider %q", s.ActiveProvider))
		trace.finished(StageVision, "none", start, r.Err)
		return r
	}
}

func (o *Orchestrator) finishVision(trace *Trace, route string, start time.Time, text string, err error) Result[string] {
	var r Result[string]
	switch {
	case err != nil:
		r = Fail[string](StageVision, KindNetwork, err)
	case len(strings.TrimSpace(text)) < minVisionLength:
		r = Fail[string](StageVision, KindShortOutput, fmt.Errorf("vision output too short (%d chars)", len(strings.TrimSpace(text))))
	default:
		r = Ok(strings.TrimSpace(text))
	}
	trace.finished(StageVision, route, start, r.Err)
	return r
}

// usesOllamaVision reports whether local vision runs through Ollama rather
// than the local inference service.
func usesOllamaVision(s types.AiSettings) bool {
	return s.VisionModelType == types.VisionOllamaVision || s.LocalBackendType == types.LocalBackendOllamaOnly
}

func (o *Orchestrator) localVision(ctx context.Context, s types.AiSettings, asset *types.Asset, payload string) (string, error) {
	client := o.clients.Local(s)
	if !client.Health(ctx) {
		return "", fmt.Errorf("local backend unreachable at %s", client.BaseURL())
	}
	resp, err := client.Analyze(ctx, llm.LocalAnalyzeRequest{
		ID:   asset.ID,
		Type: string(asset.Kind),
		Data: payload,
		Options: llm.LocalAnalyzeOptions{
			UseQwen:          true,
			UseAudioAnalysis: asset.Kind == types.KindAudio,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Caption, nil
}

func (o *Orchestrator) chatVision(ctx context.Context, provider types.Provider, s types.AiSettings, model, payload string) (string, error) {
	client, err := o.clients.Chat(provider, s, model)
	if err != nil {
		return "", err
	}
	return client.ChatComplete(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{{
			Role:  "user",
			Parts: []llm.ContentPart{llm.TextPart(VisionPrompt), llm.ImagePart(payload)},
		}},
	})
}

// cognition runs stage 2.
func (o *Orchestrator) cognition(ctx context.Context, s types.AiSettings, description string, trace *Trace) Result[RawAnalysis] {
	provider := s.ActiveProvider
	model := ""
	if provider == types.ProviderLocal || provider == types.ProviderOllama {
		provider = types.ProviderOllama
		model = s.AgenticThinkingModel
	}

	client, err := o.clients.Chat(provider, s, model)
	route := string(provider)
	if client != nil {
		route += ":" + client.GetModel()
	}
	start := trace.started(StageCognition, route)

	var r Result[RawAnalysis]
	switch {
	case err != nil:
		r = Fail[RawAnalysis](StageCognition, KindConfig, err)
	default:
		content, callErr := client.ChatComplete(ctx, llm.ChatRequest{
			JSONMode: true,
			Messages: []llm.ChatMessage{{Role: "user", Content: ExtractionPrompt(description)}},
		})
		if callErr != nil {
			r = Fail[RawAnalysis](StageCognition, KindNetwork, callErr)
			break
		}
		raw, parseErr := ParseRawAnalysis(content)
		if parseErr != nil {
			r = Fail[RawAnalysis](StageCognition, KindParse, parseErr)
			break
		}
		r = Ok(raw)
	}

	trace.finished(StageCognition, route, start, r.Err)
	return r
}
