package types

import (
	"encoding/json"
	"fmt"
)

// Provider identifies one pluggable AI backend.
type Provider string

// Provider constants
const (
	ProviderLocal      Provider = "local"
	ProviderGemini     Provider = "gemini"
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOllama     Provider = "ollama"
)

// ValidProviders is a slice of all known providers for validation
var ValidProviders = []Provider{
	ProviderLocal,
	ProviderGemini,
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderOpenRouter,
	ProviderOllama,
}

// IsValidProvider checks if the given provider id is known.
func IsValidProvider(p Provider) bool {
	for _, v := range ValidProviders {
		if p == v {
			return true
		}
	}
	return false
}

// TagSource returns the provenance value tags produced through this provider carry.
func (p Provider) TagSource() TagSource {
	switch p {
	case ProviderLocal:
		return TagSourceLocal
	case ProviderGemini:
		return TagSourceGemini
	case ProviderOpenAI:
		return TagSourceOpenAI
	case ProviderAnthropic:
		return TagSourceAnthropic
	case ProviderOpenRouter:
		return TagSourceOpenRouter
	case ProviderOllama:
		return TagSourceOllama
	default:
		return TagSourceManual
	}
}

// LocalBackendType selects the local inference topology.
type LocalBackendType string

const (
	// LocalBackendHybrid uses the local inference service for vision and aesthetics
	// and Ollama for reasoning.
	LocalBackendHybrid LocalBackendType = "hybrid"

	// LocalBackendOllamaOnly runs everything through Ollama.
	LocalBackendOllamaOnly LocalBackendType = "ollama_only"
)

// VisionModelType selects the stage-1 vision model family for local analysis.
type VisionModelType string

const (
	VisionFlorence2    VisionModelType = "florence2"
	VisionQwen2VL      VisionModelType = "qwen2_vl"
	VisionLlava        VisionModelType = "llava"
	VisionInternVL     VisionModelType = "internvl"
	VisionOllamaVision VisionModelType = "ollama_vision"
)

// PerformanceMode hints how aggressively local models use the GPU.
type PerformanceMode string

const (
	PerformanceHigh     PerformanceMode = "high_performance"
	PerformanceBalanced PerformanceMode = "balanced"
	PerformanceLowVRAM  PerformanceMode = "low_vram"
)

// AiSettings is the process-wide analysis configuration. It is persisted as a
// JSON blob and always decoded over DefaultAiSettings, so fields added later
// keep their default when an older blob is loaded.
type AiSettings struct {
	ActiveProvider   Provider         `json:"activeProvider"`
	LocalBackendType LocalBackendType `json:"localBackendType"`

	// Orchestration
	EnableAgenticWorkflow bool   `json:"enableAgenticWorkflow"`
	AgenticThinkingModel  string `json:"agenticThinkingModel"`

	// Performance & hardware
	PerformanceMode  PerformanceMode `json:"performanceMode"`
	GPUOffloadLayers int             `json:"gpuOffloadLayers"`

	// Local model inventory
	VisionModelType    VisionModelType `json:"visionModelType"`
	VisionModelPath    string          `json:"visionModelPath"` // path for the local backend, model tag for Ollama
	AestheticModelPath string          `json:"aestheticModelPath"`

	// Endpoints
	LocalURL          string `json:"localUrl"`
	OllamaURL         string `json:"ollamaUrl"`
	OpenAIBaseURL     string `json:"openaiBaseUrl"`
	OpenRouterBaseURL string `json:"openrouterBaseUrl"`
	GeminiBaseURL     string `json:"geminiBaseUrl"`

	// API keys
	GeminiKey     string `json:"geminiKey"`
	OpenAIKey     string `json:"openaiKey"`
	AnthropicKey  string `json:"anthropicKey"`
	OpenRouterKey string `json:"openrouterKey"`

	// Cloud models
	GeminiModel     string `json:"geminiModel"`
	OpenAIModel     string `json:"openaiModel"`
	AnthropicModel  string `json:"anthropicModel"`
	OpenRouterModel string `json:"openrouterModel"`
}

// DefaultAiSettings returns the hard defaults for every settings field.
func DefaultAiSettings() AiSettings {
	return AiSettings{
		ActiveProvider:        ProviderLocal,
		LocalBackendType:      LocalBackendHybrid,
		EnableAgenticWorkflow: true,
		AgenticThinkingModel:  "qwen2.5-coder:7b",

		PerformanceMode:  PerformanceBalanced,
		GPUOffloadLayers: -1,

		VisionModelType:    VisionFlorence2,
		VisionModelPath:    "",
		AestheticModelPath: "google/siglip-so400m-patch14-384",

		LocalURL:          "http://127.0.0.1:8000",
		OllamaURL:         "http://127.0.0.1:11434",
		OpenAIBaseURL:     "https://api.openai.com/v1",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		GeminiBaseURL:     "https://generativelanguage.googleapis.com/v1beta",

		GeminiModel:     "gemini-2.0-flash",
		OpenAIModel:     "gpt-4o",
		AnthropicModel:  "claude-3-5-sonnet-20240620",
		OpenRouterModel: "google/gemini-flash-1.5",
	}
}

// DecodeAiSettings decodes a persisted settings blob over the defaults.
// An empty blob yields the defaults unchanged.
func DecodeAiSettings(blob []byte) (AiSettings, error) {
	settings := DefaultAiSettings()
	if len(blob) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(blob, &settings); err != nil {
		return DefaultAiSettings(), fmt.Errorf("failed to decode ai settings: %w", err)
	}
	return settings, nil
}

// Validate checks enum-valued fields. API keys are validated lazily by the
// analysis facade, since only the active provider's key matters.
func (s AiSettings) Validate() error {
	if !IsValidProvider(s.ActiveProvider) {
		return fmt.Errorf("invalid provider: %q (must be one of: local, gemini, openai, anthropic, openrouter, ollama)", s.ActiveProvider)
	}
	switch s.LocalBackendType {
	case LocalBackendHybrid, LocalBackendOllamaOnly:
	default:
		return fmt.Errorf("invalid local backend type: %q", s.LocalBackendType)
	}
	switch s.VisionModelType {
	case VisionFlorence2, VisionQwen2VL, VisionLlava, VisionInternVL, VisionOllamaVision:
	default:
		return fmt.Errorf("invalid vision model type: %q", s.VisionModelType)
	}
	switch s.PerformanceMode {
	case PerformanceHigh, PerformanceBalanced, PerformanceLowVRAM:
	default:
		return fmt.Errorf("invalid performance mode: %q", s.PerformanceMode)
	}
	return nil
}

// Redacted returns a copy with API keys masked, for display.
func (s AiSettings) Redacted() AiSettings {
	mask := func(k string) string {
		if len(k) <= 4 {
			if k == "" {
				return ""
			}
			return "****"
		}
		return "****" + k[len(k)-4:]
	}
	s.GeminiKey = mask(s.GeminiKey)
	s.OpenAIKey = mask(s.OpenAIKey)
	s.AnthropicKey = mask(s.AnthropicKey)
	s.OpenRouterKey = mask(s.OpenRouterKey)
	return s
}
