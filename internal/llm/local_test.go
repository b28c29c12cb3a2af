package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.True(t, NewLocalClient(LocalConfig{BaseURL: server.URL}).Health(context.Background()))
}

func TestLocalClient_HealthTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewLocalClient(LocalConfig{BaseURL: server.URL, HealthTimeout: 50 * time.Millisecond})
	start := time.Now()
	assert.False(t, client.Health(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocalClient_HealthUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.False(t, NewLocalClient(LocalConfig{BaseURL: url}).Health(context.Background()))
}

func TestLocalClient_Analyze(t *testing.T) {
	var got LocalAnalyzeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"tags":["portrait","studio"],"caption":"a portrait","aesthetic_score":8.2,"colors":["#112233"],"metadata":{"width":1024}}`))
	}))
	defer server.Close()

	client := NewLocalClient(LocalConfig{BaseURL: server.URL})
	resp, err := client.Analyze(context.Background(), LocalAnalyzeRequest{
		ID:      "a1",
		Type:    "audio",
		Data:    "QUJD",
		Options: LocalAnalyzeOptions{UseQwen: true, UseAudioAnalysis: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "audio", got.Type)
	assert.True(t, got.Options.UseQwen)
	assert.True(t, got.Options.UseAudioAnalysis)

	assert.Equal(t, []string{"portrait", "studio"}, resp.Tags)
	require.NotNil(t, resp.AestheticScore)
	assert.InDelta(t, 8.2, *resp.AestheticScore, 1e-9)
	assert.Nil(t, resp.Critique)
	assert.Equal(t, float64(1024), resp.Metadata["width"])
}

func TestLocalClient_AnalyzeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	_, err := NewLocalClient(LocalConfig{BaseURL: server.URL}).Analyze(context.Background(), LocalAnalyzeRequest{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}
