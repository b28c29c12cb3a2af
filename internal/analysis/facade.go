package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/internal/metrics"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// Configuration errors. They are the only errors Analyze returns; every
// runtime failure is degraded inside the analyzers.
var (
	ErrConfiguration          = errors.New("analysis configuration error")
	ErrMissingAPIKey          = fmt.Errorf("%w: missing API key", ErrConfiguration)
	ErrUnknownProvider        = fmt.Errorf("%w: unknown AI provider", ErrConfiguration)
	ErrProviderNotImplemented = fmt.Errorf("%w: provider not implemented", ErrConfiguration)
)

// Analyzer is one provider path. Implementations never fail; they return a
// labelled degraded result instead.
type Analyzer interface {
	Analyze(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult
}

type analyzerFunc func(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult

func (f analyzerFunc) Analyze(ctx context.Context, asset *types.Asset, payload string, source types.TagSource) types.AnalysisResult {
	return f(ctx, asset, payload, source)
}

// Sources provides every adapter the analyzers need. *llm.Clients implements it.
type Sources interface {
	ClientSource
	Gemini(s types.AiSettings) *llm.GeminiClient
}

var _ Sources = (*llm.Clients)(nil)

// FacadeOptions tunes process-level behavior of the facade.
type FacadeOptions struct {
	// SimulationDelay is the artificial latency of local simulation mode.
	// Zero uses DefaultSimulationDelay; negative disables it.
	SimulationDelay time.Duration
}

// Facade is the single entry point of the pipeline. It holds an explicit
// settings snapshot that is replaced wholesale by Reload.
type Facade struct {
	mu       sync.RWMutex
	settings types.AiSettings

	sources      Sources
	orchestrator *Orchestrator
	opts         FacadeOptions
}

// NewFacade creates a facade over the given settings and adapter source.
func NewFacade(settings types.AiSettings, sources Sources, opts FacadeOptions) *Facade {
	return &Facade{
		settings:     settings,
		sources:      sources,
		orchestrator: NewOrchestrator(sources),
		opts:         opts,
	}
}

// Reload swaps the settings snapshot. Calls already in flight keep the
// snapshot they started with.
func (f *Facade) Reload(settings types.AiSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
	log.Info().
		Str("component", "analysis").
		Str("provider", string(settings.ActiveProvider)).
		Bool("agentic", settings.EnableAgenticWorkflow).
		Msg("analysis settings reloaded")
}

// Settings returns the current snapshot.
func (f *Facade) Settings() types.AiSettings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings
}

// Analyze runs one asset through the configured provider path.
func (f *Facade) Analyze(ctx context.Context, asset *types.Asset, payload string) (types.AnalysisResult, error) {
	s := f.Settings()
	start := time.Now()

	analyzer, mode, err := f.analyzerFor(s)
	if err != nil {
		metrics.RecordAnalysis(string(s.ActiveProvider), "config_error", time.Since(start))
		return types.AnalysisResult{}, err
	}

	result := analyzer.Analyze(ctx, asset, payload, s.ActiveProvider.TagSource())
	metrics.RecordAnalysis(string(s.ActiveProvider), mode, time.Since(start))

	log.Debug().
		Str("component", "analysis").
		Str("asset_id", asset.ID).
		Str("provider", string(s.ActiveProvider)).
		Str("mode", mode).
		Int("tags", len(result.Tags)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")

	return result, nil
}

// SupportsAgentic reports whether a provider can run the two-stage workflow.
// Gemini has its own structured path and Anthropic has no adapter.
func SupportsAgentic(p types.Provider) bool {
	switch p {
	case types.ProviderLocal, types.ProviderOllama, types.ProviderOpenAI, types.ProviderOpenRouter:
		return true
	default:
		return false
	}
}

// analyzerFor validates the snapshot and picks the analyzer: the agentic
// workflow when enabled and supported, otherwise one analyzer per provider.
func (f *Facade) analyzerFor(s types.AiSettings) (Analyzer, string, error) {
	if !types.IsValidProvider(s.ActiveProvider) {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownProvider, s.ActiveProvider)
	}
	if s.ActiveProvider == types.ProviderAnthropic {
		return nil, "", fmt.Errorf("%w: %s", ErrProviderNotImplemented, s.ActiveProvider)
	}
	if err := requireKey(s); err != nil {
		return nil, "", err
	}

	if s.EnableAgenticWorkflow && SupportsAgentic(s.ActiveProvider) {
		return f.orchestrator.bind(s), "agentic", nil
	}

	switch s.ActiveProvider {
	case types.ProviderLocal:
		if s.LocalBackendType == types.LocalBackendOllamaOnly {
			model := s.VisionModelPath
			if model == "" {
				model = DefaultVisionModel
			}
			client, err := f.sources.Chat(types.ProviderOllama, s, model)
			if err != nil {
				return nil, "", fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			return NewSinglePassAnalyzer(client), "single_pass", nil
		}
		return NewLocalAnalyzer(f.sources.Local(s), f.opts.SimulationDelay), "local", nil
	case types.ProviderGemini:
		return NewGeminiAnalyzer(f.sources.Gemini(s)), "gemini", nil
	case types.ProviderOpenAI, types.ProviderOpenRouter:
		client, err := f.sources.Chat(s.ActiveProvider, s, "")
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return NewSinglePassAnalyzer(client), "single_pass", nil
	case types.ProviderOllama:
		model := s.VisionModelPath
		if model == "" {
			model = DefaultVisionModel
		}
		client, err := f.sources.Chat(types.ProviderOllama, s, model)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return NewSinglePassAnalyzer(client), "single_pass", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownProvider, s.ActiveProvider)
	}
}

func requireKey(s types.AiSettings) error {
	var key string
	switch s.ActiveProvider {
	case types.ProviderGemini:
		key = s.GeminiKey
	case types.ProviderOpenAI:
		key = s.OpenAIKey
	case types.ProviderOpenRouter:
		key = s.OpenRouterKey
	case types.ProviderAnthropic:
		key = s.AnthropicKey
	default:
		return nil
	}
	if key == "" {
		return fmt.Errorf("%w for provider %s", ErrMissingAPIKey, s.ActiveProvider)
	}
	return nil
}
