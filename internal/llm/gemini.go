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

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string        // default: gemini-2.0-flash
	BaseURL string        // default: https://generativelanguage.googleapis.com/v1beta
	Timeout time.Duration // default: 120s

	Limiter *rate.Limiter
}

// GeminiClient calls generateContent with inline media and a response schema,
// so the model is constrained to emit the analysis object directly.
type GeminiClient struct {
	cfg            GeminiConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// GeminiRequest is one structured multimodal call.
type GeminiRequest struct {
	Prompt   string
	MimeType string
	Data     string // base64 payload
	Schema   map[string]any
}

// GeminiAnalysis is the structured object returned for an analysis schema.
type GeminiAnalysis struct {
	Tags              []string `json:"tags"`
	Caption           string   `json:"caption"`
	CameraGuess       *string  `json:"camera_guess,omitempty"`
	AestheticScore    *float64 `json:"aesthetic_score,omitempty"`
	ColorPalette      []string `json:"color_palette,omitempty"`
	IsGalleryStandard *bool    `json:"is_gallery_standard,omitempty"`
	Critique          *string  `json:"critique,omitempty"`
	BPM               *float64 `json:"bpm,omitempty"`
	MusicalKey        *string  `json:"musical_key,omitempty"`
}

// AnalysisSchema is the response schema for GeminiAnalysis.
func AnalysisSchema() map[string]any {
	nullable := func(t string) map[string]any {
		return map[string]any{"type": t, "nullable": true}
	}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"tags": map[string]any{
				"type":        "ARRAY",
				"items":       map[string]any{"type": "STRING"},
				"description": "A list of 40-60 precise aesthetic, technical, and semantic tags.",
			},
			"caption": map[string]any{
				"type":        "STRING",
				"description": "A detailed, prompt-ready description.",
			},
			"camera_guess":    nullable("STRING"),
			"aesthetic_score": nullable("NUMBER"),
			"color_palette": map[string]any{
				"type":     "ARRAY",
				"items":    map[string]any{"type": "STRING"},
				"nullable": true,
			},
			"is_gallery_standard": nullable("BOOLEAN"),
			"critique":            nullable("STRING"),
			"bpm":                 nullable("NUMBER"),
			"musical_key":         nullable("STRING"),
		},
		"required": []string{"tags", "caption"},
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	Temperature      float64        `json:"temperature"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// NewGeminiClient creates a new Gemini client with the given configuration.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &GeminiClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker("gemini"),
	}
}

// Analyze runs a structured call and decodes the result into GeminiAnalysis.
func (c *GeminiClient) Analyze(ctx context.Context, in GeminiRequest) (GeminiAnalysis, error) {
	var out GeminiAnalysis
	text, err := c.GenerateJSON(ctx, in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("failed to decode gemini analysis: %w", err)
	}
	return out, nil
}

// GenerateJSON runs a structured call and returns the raw JSON text.
func (c *GeminiClient) GenerateJSON(ctx context.Context, in GeminiRequest) (string, error) {
	return execute(ctx, c.circuitBreaker, c.cfg.Limiter, func() (string, error) {
		return c.generate(ctx, in)
	})
}

func (c *GeminiClient) generate(ctx context.Context, in GeminiRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: in.MimeType, Data: in.Data}},
				{Text: in.Prompt},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   in.Schema,
			Temperature:      0.4,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// key in a header keeps it out of access logs
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range respData.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return sb.String(), nil
}

// GetModel returns the configured model name.
func (c *GeminiClient) GetModel() string {
	return c.cfg.Model
}
