package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Analyze(t *testing.T) {
	var got map[string]any
	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("key"))
		key = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		inner := `{"tags":["lofi","chill"],"caption":"mellow beat","bpm":84,"musical_key":"F minor"}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": inner}}}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "g-key", BaseURL: server.URL})
	out, err := client.Analyze(context.Background(), GeminiRequest{
		Prompt:   "analyze",
		MimeType: "audio/mp3",
		Data:     "QUJD",
		Schema:   AnalysisSchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, "g-key", key)
	assert.Equal(t, []string{"lofi", "chill"}, out.Tags)
	require.NotNil(t, out.BPM)
	assert.Equal(t, 84.0, *out.BPM)
	require.NotNil(t, out.MusicalKey)
	assert.Equal(t, "F minor", *out.MusicalKey)
	assert.Nil(t, out.AestheticScore)

	contents := got["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	inline := parts[0].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "audio/mp3", inline["mimeType"])
	assert.Equal(t, "QUJD", inline["data"])
	assert.Equal(t, "analyze", parts[1].(map[string]any)["text"])

	cfg := got["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.InDelta(t, 0.4, cfg["temperature"], 1e-9)
	assert.NotNil(t, cfg["responseSchema"])
}

func TestGeminiClient_ErrorsOnBadStatusAndEmptyCandidates(t *testing.T) {
	status := http.StatusForbidden
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: server.URL})
	_, err := client.Analyze(context.Background(), GeminiRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	status = http.StatusOK
	_, err = client.Analyze(context.Background(), GeminiRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}
