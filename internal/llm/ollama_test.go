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

func TestOllamaClient_ChatUsesV1WithLiteralKey(t *testing.T) {
	var auth, model string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model, _ = body["model"].(string)
		_ = json.NewEncoder(w).Encode(chatResponse("a red bicycle leaning on a wall"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL + "/", Model: "llava"})
	out, err := client.ChatComplete(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "describe"}}})
	require.NoError(t, err)
	assert.Equal(t, "a red bicycle leaning on a wall", out)
	assert.Equal(t, "Bearer ollama", auth)
	assert.Equal(t, "llava", model)
	assert.Equal(t, "llava", client.GetModel())
}

func TestOllamaClient_HealthCheckAndListModels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.5.1"}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llava:latest"},{"name":"qwen2.5-coder:7b"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	require.NoError(t, client.HealthCheck(context.Background()))

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llava:latest", "qwen2.5-coder:7b"}, models)
}

func TestOllamaClient_HealthCheckFailsOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
