package analysis

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmicdatasets/curator/pkg/types"
)

func TestFacade_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.AiSettings)
		want   error
	}{
		{"unknown provider", func(s *types.AiSettings) { s.ActiveProvider = "mistral" }, ErrUnknownProvider},
		{"anthropic", func(s *types.AiSettings) { s.ActiveProvider = types.ProviderAnthropic; s.AnthropicKey = "k" }, ErrProviderNotImplemented},
		{"gemini without key", func(s *types.AiSettings) { s.ActiveProvider = types.ProviderGemini }, ErrMissingAPIKey},
		{"openai without key", func(s *types.AiSettings) { s.ActiveProvider = types.ProviderOpenAI }, ErrMissingAPIKey},
		{"openrouter without key", func(s *types.AiSettings) { s.ActiveProvider = types.ProviderOpenRouter }, ErrMissingAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := types.DefaultAiSettings()
			tt.mutate(&s)
			f := NewFacade(s, &fakeSources{}, FacadeOptions{SimulationDelay: -1})

			_, err := f.Analyze(context.Background(), imageAsset(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestFacade_GeminiIgnoresAgenticFlag(t *testing.T) {
	s := types.DefaultAiSettings()
	s.ActiveProvider = types.ProviderGemini
	s.GeminiKey = "k"
	s.EnableAgenticWorkflow = true
	sources := &fakeSources{gemini: geminiServer(t, http.StatusOK, `{"tags":["a"],"caption":"b"}`)}

	result, err := NewFacade(s, sources, FacadeOptions{}).Analyze(context.Background(), imageAsset(), "QUJD")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tagNames(result.Tags))
	assert.Equal(t, types.TagSourceGemini, result.Tags[0].Source)
	assert.Empty(t, sources.requests)
}

func TestFacade_SinglePassVersusAgentic(t *testing.T) {
	chat := &fakeChat{model: "gpt-4o", reply: `{"tags":["one"],"caption":"A fairly detailed caption."}`}
	sources := &fakeSources{chats: map[string]*fakeChat{"openai:": chat}}
	s := types.DefaultAiSettings()
	s.ActiveProvider = types.ProviderOpenAI
	s.OpenAIKey = "sk"
	s.EnableAgenticWorkflow = false

	f := NewFacade(s, sources, FacadeOptions{})
	_, err := f.Analyze(context.Background(), imageAsset(), "QUJD")
	require.NoError(t, err)
	assert.Equal(t, 1, chat.calls())

	s.EnableAgenticWorkflow = true
	f.Reload(s)
	result, err := f.Analyze(context.Background(), imageAsset(), "QUJD")
	require.NoError(t, err)
	assert.Equal(t, 3, chat.calls())
	for _, tag := range result.Tags {
		assert.Equal(t, types.TagSourceOpenAI, tag.Source)
	}
}

func TestFacade_LocalSimulation(t *testing.T) {
	s := types.DefaultAiSettings()
	s.EnableAgenticWorkflow = false
	f := NewFacade(s, &fakeSources{local: offlineLocal(t)}, FacadeOptions{SimulationDelay: -1})

	result, err := f.Analyze(context.Background(), imageAsset(), "mock_base64")
	require.NoError(t, err)
	assert.Contains(t, tagNames(result.Tags), "simulation")
	assert.Equal(t, types.TagSourceLocal, result.Tags[0].Source)
}

func TestFacade_OllamaOnlySinglePass(t *testing.T) {
	vision := &fakeChat{model: "llava", reply: `{"tags":["t"],"caption":"c"}`}
	sources := &fakeSources{chats: map[string]*fakeChat{"ollama:llava": vision}}
	s := types.DefaultAiSettings()
	s.EnableAgenticWorkflow = false
	s.LocalBackendType = types.LocalBackendOllamaOnly
	s.VisionModelPath = ""

	result, err := NewFacade(s, sources, FacadeOptions{}).Analyze(context.Background(), imageAsset(), "QUJD")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, tagNames(result.Tags))
	assert.Equal(t, 1, vision.calls())
}

func TestFacade_ReloadIsConcurrencySafe(t *testing.T) {
	s := types.DefaultAiSettings()
	s.EnableAgenticWorkflow = false
	f := NewFacade(s, &fakeSources{local: offlineLocal(t)}, FacadeOptions{SimulationDelay: -1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.Analyze(context.Background(), imageAsset(), "")
		}()
		go func(i int) {
			defer wg.Done()
			next := s
			next.PerformanceMode = types.PerformanceLowVRAM
			if i%2 == 0 {
				next.PerformanceMode = types.PerformanceBalanced
			}
			f.Reload(next)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, types.ProviderLocal, f.Settings().ActiveProvider)
}

func TestSupportsAgentic(t *testing.T) {
	assert.True(t, SupportsAgentic(types.ProviderLocal))
	assert.True(t, SupportsAgentic(types.ProviderOpenRouter))
	assert.False(t, SupportsAgentic(types.ProviderGemini))
	assert.False(t, SupportsAgentic(types.ProviderAnthropic))
}
