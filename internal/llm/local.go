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
)

// DefaultHealthTimeout bounds the /health probe so an absent backend is
// detected quickly and simulation mode can take over.
const DefaultHealthTimeout = time.Second

// LocalConfig holds configuration for the local inference backend client.
type LocalConfig struct {
	// BaseURL is the inference service root (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout bounds one /analyze call (default: 120s)
	Timeout time.Duration

	// HealthTimeout bounds the /health probe (default: 1s)
	HealthTimeout time.Duration
}

// LocalClient talks to the local Python inference service (vision, captioning,
// aesthetic scoring) over plain HTTP.
type LocalClient struct {
	cfg            LocalConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// LocalAnalyzeOptions toggles backend features per request.
type LocalAnalyzeOptions struct {
	UseQwen          bool `json:"use_qwen"`
	UseAudioAnalysis bool `json:"use_audio_analysis"`
}

// LocalAnalyzeRequest is the body of POST /analyze.
type LocalAnalyzeRequest struct {
	ID      string              `json:"id"`
	Type    string              `json:"type"`
	Data    string              `json:"data"` // base64 payload
	Options LocalAnalyzeOptions `json:"options"`
}

// LocalAnalyzeResponse is the body returned by POST /analyze. Optional fields
// are pointers so the caller can tell "absent" from zero.
type LocalAnalyzeResponse struct {
	Tags           []string       `json:"tags"`
	Caption        string         `json:"caption"`
	AestheticScore *float64       `json:"aesthetic_score,omitempty"`
	Colors         []string       `json:"colors,omitempty"`
	Critique       *string        `json:"critique,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewLocalClient creates a new local backend client.
func NewLocalClient(cfg LocalConfig) *LocalClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:8000"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	return &LocalClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker("local"),
	}
}

// Health reports whether GET /health answers 2xx within the health timeout.
// It never returns an error; any failure means offline.
func (c *LocalClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// Analyze posts one asset to /analyze.
func (c *LocalClient) Analyze(ctx context.Context, in LocalAnalyzeRequest) (LocalAnalyzeResponse, error) {
	return execute(ctx, c.circuitBreaker, nil, func() (LocalAnalyzeResponse, error) {
		return c.analyze(ctx, in)
	})
}

func (c *LocalClient) analyze(ctx context.Context, in LocalAnalyzeRequest) (LocalAnalyzeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var out LocalAnalyzeResponse

	jsonData, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/analyze", bytes.NewReader(jsonData))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return out, fmt.Errorf("local backend returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// BaseURL returns the configured backend root.
func (c *LocalClient) BaseURL() string {
	return c.cfg.BaseURL
}
