package llm

import (
	"strings"
	"sync"

	"github.com/cosmicdatasets/curator/pkg/types"
)

// Clients hands out adapters built from settings and keeps them for reuse, so
// each endpoint keeps one circuit breaker across analysis calls. A settings
// change that alters URL, model or key produces a new client.
type Clients struct {
	mu     sync.Mutex
	opts   ClientOptions
	chat   map[string]ChatCompleter
	local  map[string]*LocalClient
	gemini map[string]*GeminiClient
	ollama map[string]*OllamaClient
}

// NewClients creates an empty client cache.
func NewClients(opts ClientOptions) *Clients {
	return &Clients{
		opts:   opts,
		chat:   make(map[string]ChatCompleter),
		local:  make(map[string]*LocalClient),
		gemini: make(map[string]*GeminiClient),
		ollama: make(map[string]*OllamaClient),
	}
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// Chat returns the chat adapter for provider, using model when non-empty.
func (c *Clients) Chat(provider types.Provider, s types.AiSettings, model string) (ChatCompleter, error) {
	var key string
	switch provider {
	case types.ProviderOpenAI:
		key = cacheKey(string(provider), s.OpenAIBaseURL, s.OpenAIKey, model, s.OpenAIModel)
	case types.ProviderOpenRouter:
		key = cacheKey(string(provider), s.OpenRouterBaseURL, s.OpenRouterKey, model, s.OpenRouterModel)
	case types.ProviderOllama, types.ProviderLocal:
		if model == "" {
			model = s.AgenticThinkingModel
		}
		return c.Ollama(s, model), nil
	default:
		return NewChatClient(provider, s, model, c.opts)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.chat[key]; ok {
		return cl, nil
	}
	cl, err := NewChatClient(provider, s, model, c.opts)
	if err != nil {
		return nil, err
	}
	c.chat[key] = cl
	return cl, nil
}

// Ollama returns the Ollama adapter for a model. Local calls are never rate limited.
func (c *Clients) Ollama(s types.AiSettings, model string) *OllamaClient {
	key := cacheKey(s.OllamaURL, model)
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.ollama[key]; ok {
		return cl
	}
	cl := NewOllamaClient(OllamaConfig{BaseURL: s.OllamaURL, Model: model})
	c.ollama[key] = cl
	return cl
}

// Local returns the local backend adapter.
func (c *Clients) Local(s types.AiSettings) *LocalClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.local[s.LocalURL]; ok {
		return cl
	}
	cl := NewLocalClientFromSettings(s)
	c.local[s.LocalURL] = cl
	return cl
}

// Gemini returns the Gemini adapter.
func (c *Clients) Gemini(s types.AiSettings) *GeminiClient {
	key := cacheKey(s.GeminiBaseURL, s.GeminiKey, s.GeminiModel)
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.gemini[key]; ok {
		return cl
	}
	cl := NewGeminiClientFromSettings(s, c.opts)
	c.gemini[key] = cl
	return cl
}
