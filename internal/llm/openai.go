package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Identification headers sent to OpenRouter, which ranks and attributes apps by them.
const (
	openRouterReferer = "https://cosmicdatasets.local"
	openRouterTitle   = "Cosmic Data Sets"
)

// OpenAIConfig holds configuration for an OpenAI-compatible chat client.
type OpenAIConfig struct {
	// Name labels the circuit breaker and error messages (default: openai)
	Name    string
	APIKey  string
	Model   string        // default: gpt-4o
	BaseURL string        // default: https://api.openai.com/v1
	Timeout time.Duration // default: 60s

	// Limiter optionally throttles calls to rate-limited cloud APIs.
	Limiter *rate.Limiter
}

// OpenAIClient implements ChatCompleter against any OpenAI-compatible
// chat completions endpoint: OpenAI itself, OpenRouter and Ollama's /v1.
type OpenAIClient struct {
	cfg            OpenAIConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIClient creates a new OpenAI-compatible client with the given configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker(cfg.Name),
	}
}

// openAIChatRequest is the request body for POST {base}/chat/completions.
type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Stream         bool                  `json:"stream"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

// openAIChatMessage carries either a plain string or a list of parts as content.
type openAIChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

// openAIChatResponse is the response body from POST {base}/chat/completions.
type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatComplete sends one chat completion and returns choices[0].message.content.
func (c *OpenAIClient) ChatComplete(ctx context.Context, req ChatRequest) (string, error) {
	return execute(ctx, c.circuitBreaker, c.cfg.Limiter, func() (string, error) {
		return c.chatComplete(ctx, req)
	})
}

func (c *OpenAIClient) chatComplete(ctx context.Context, chat ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := openAIChatRequest{
		Model:    c.cfg.Model,
		Messages: toOpenAIMessages(chat.Messages),
		Stream:   false,
	}
	if chat.JSONMode {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if strings.Contains(c.cfg.BaseURL, "openrouter") {
		req.Header.Set("HTTP-Referer", openRouterReferer)
		req.Header.Set("X-Title", openRouterTitle)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s returned status %d: %s", c.cfg.Name, resp.StatusCode, string(body))
	}

	var respData openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.cfg.Name)
	}

	return respData.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []ChatMessage) []openAIChatMessage {
	out := make([]openAIChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if len(m.Parts) == 0 {
			out = append(out, openAIChatMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := make([]openAIContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case "image_url":
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: p.ImageURL}})
			default:
				parts = append(parts, openAIContentPart{Type: "text", Text: p.Text})
			}
		}
		out = append(out, openAIChatMessage{Role: m.Role, Content: parts})
	}
	return out
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.cfg.Model
}

// BreakerState exposes the circuit breaker state for status output.
func (c *OpenAIClient) BreakerState() string {
	return c.circuitBreaker.State()
}

// Compile-time assertion.
var _ ChatCompleter = (*OpenAIClient)(nil)
