package llm

import (
	"errors"
	"fmt"

	"github.com/cosmicdatasets/curator/pkg/types"
	"golang.org/x/time/rate"
)

// ErrUnsupportedProvider is returned when a provider has no chat adapter.
var ErrUnsupportedProvider = errors.New("provider has no chat adapter")

// ClientOptions carries process-level knobs that are not part of AiSettings.
type ClientOptions struct {
	// Limiter throttles cloud calls; nil disables throttling.
	Limiter *rate.Limiter
}

// NewChatClient builds the OpenAI-dialect adapter for a provider. model
// overrides the provider's configured model when non-empty, which the agentic
// workflow uses to pick vision and thinking models.
func NewChatClient(provider types.Provider, s types.AiSettings, model string, opts ClientOptions) (ChatCompleter, error) {
	switch provider {
	case types.ProviderOpenAI:
		if model == "" {
			model = s.OpenAIModel
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:    "openai",
			APIKey:  s.OpenAIKey,
			Model:   model,
			BaseURL: s.OpenAIBaseURL,
			Limiter: opts.Limiter,
		}), nil
	case types.ProviderOpenRouter:
		if model == "" {
			model = s.OpenRouterModel
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:    "openrouter",
			APIKey:  s.OpenRouterKey,
			Model:   model,
			BaseURL: s.OpenRouterBaseURL,
			Limiter: opts.Limiter,
		}), nil
	case types.ProviderOllama, types.ProviderLocal:
		// local reasoning always runs on Ollama
		if model == "" {
			model = s.AgenticThinkingModel
		}
		return NewOllamaClient(OllamaConfig{BaseURL: s.OllamaURL, Model: model}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// NewGeminiClientFromSettings builds the Gemini adapter from settings.
func NewGeminiClientFromSettings(s types.AiSettings, opts ClientOptions) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:  s.GeminiKey,
		Model:   s.GeminiModel,
		BaseURL: s.GeminiBaseURL,
		Limiter: opts.Limiter,
	})
}

// NewLocalClientFromSettings builds the local backend adapter from settings.
func NewLocalClientFromSettings(s types.AiSettings) *LocalClient {
	return NewLocalClient(LocalConfig{BaseURL: s.LocalURL})
}
