package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the Ollama server root (default: http://127.0.0.1:11434)
	BaseURL string

	// Model is the model tag to chat with, e.g. llava or qwen2.5-coder:7b
	Model string

	// Timeout is the request timeout duration (default: 120s; local vision
	// models on modest GPUs are slow)
	Timeout time.Duration
}

// OllamaClient talks to a local Ollama server. Chat goes through Ollama's
// OpenAI-compatible /v1 endpoint; inventory and health use the native API.
type OllamaClient struct {
	*OpenAIClient
	baseURL string
	http    *http.Client
}

// tagsResponse represents the response from /api/tags endpoint
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates an Ollama client. Ollama ignores the bearer token
// but the OpenAI dialect requires one, so the literal key "ollama" is sent.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	return &OllamaClient{
		OpenAIClient: NewOpenAIClient(OpenAIConfig{
			Name:    "ollama",
			APIKey:  "ollama",
			Model:   config.Model,
			BaseURL: config.BaseURL + "/v1",
			Timeout: config.Timeout,
		}),
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: config.Timeout},
	}
}

// HealthCheck verifies that Ollama is reachable by checking the /api/version endpoint.
// It bypasses the circuit breaker since it is a health check itself.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// ListModels returns the names of the models installed in Ollama.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	models := make([]string, len(respData.Models))
	for i, model := range respData.Models {
		models[i] = model.Name
	}
	return models, nil
}

// Compile-time assertion.
var _ ChatCompleter = (*OllamaClient)(nil)
