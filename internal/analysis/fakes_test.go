package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// fakeChat is a scripted ChatCompleter.
type fakeChat struct {
	mu       sync.Mutex
	model    string
	reply    string
	err      error
	respond  func(llm.ChatRequest) (string, error)
	requests []llm.ChatRequest
}

func (f *fakeChat) ChatComplete(_ context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.respond != nil {
		return f.respond(req)
	}
	return f.reply, f.err
}

func (f *fakeChat) GetModel() string { return f.model }

func (f *fakeChat) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeSources routes Chat by provider and model and serves real local and
// Gemini clients pointed at test servers.
type fakeSources struct {
	chats    map[string]*fakeChat
	chatErr  error
	local    *llm.LocalClient
	gemini   *llm.GeminiClient
	requests []string
}

func (f *fakeSources) Chat(provider types.Provider, s types.AiSettings, model string) (llm.ChatCompleter, error) {
	key := string(provider) + ":" + model
	f.requests = append(f.requests, key)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if c, ok := f.chats[key]; ok {
		return c, nil
	}
	return nil, errors.New("no fake chat for " + key)
}

func (f *fakeSources) Local(types.AiSettings) *llm.LocalClient { return f.local }

func (f *fakeSources) Gemini(types.AiSettings) *llm.GeminiClient { return f.gemini }

// offlineLocal returns a local client whose health probe always fails.
func offlineLocal(t *testing.T) *llm.LocalClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return llm.NewLocalClient(llm.LocalConfig{BaseURL: server.URL})
}

// onlineLocal returns a local client backed by a healthy server answering
// /analyze with resp.
func onlineLocal(t *testing.T, resp map[string]any, seen *llm.LocalAnalyzeRequest) *llm.LocalClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/analyze":
			if seen != nil {
				_ = json.NewDecoder(r.Body).Decode(seen)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return llm.NewLocalClient(llm.LocalConfig{BaseURL: server.URL})
}

// geminiServer answers generateContent with text as the candidate body.
func geminiServer(t *testing.T, status int, text string) *llm.GeminiClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return llm.NewGeminiClient(llm.GeminiConfig{APIKey: "k", BaseURL: server.URL})
}

func imageAsset() *types.Asset {
	return types.NewAsset(types.KindImage, "sunset.jpg", "https://example.com/sunset.jpg")
}
