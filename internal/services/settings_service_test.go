package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/internal/storage/sqlite"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// setupTestStore creates an in-memory SQLite store for testing.
func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSettingsService_Load_Defaults(t *testing.T) {
	service := NewSettingsService(setupTestStore(t))

	settings, err := service.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultAiSettings(), settings)
}

func TestSettingsService_Load_PartialBlobKeepsDefaults(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.PutSetting(context.Background(), SettingsKey, []byte(`{"activeProvider":"gemini","geminiKey":"g-123"}`)))

	settings, err := NewSettingsService(store).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ProviderGemini, settings.ActiveProvider)
	assert.Equal(t, "g-123", settings.GeminiKey)
	assert.Equal(t, "http://127.0.0.1:11434", settings.OllamaURL)
	assert.Equal(t, "qwen2.5-coder:7b", settings.AgenticThinkingModel)
}

func TestSettingsService_Load_CorruptBlob(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.PutSetting(context.Background(), SettingsKey, []byte(`{not json`)))

	settings, err := NewSettingsService(store).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultAiSettings(), settings)
}

func TestSettingsService_SaveNotifies(t *testing.T) {
	service := NewSettingsService(setupTestStore(t))
	ctx := context.Background()

	var got []types.AiSettings
	service.OnSave(func(s types.AiSettings) { got = append(got, s) })

	s := types.DefaultAiSettings()
	s.ActiveProvider = types.ProviderOpenRouter
	s.OpenRouterKey = "or-key"
	require.NoError(t, service.Save(ctx, s))

	require.Len(t, got, 1)
	assert.Equal(t, types.ProviderOpenRouter, got[0].ActiveProvider)

	loaded, err := service.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSettingsService_SaveRejectsInvalid(t *testing.T) {
	service := NewSettingsService(setupTestStore(t))
	called := false
	service.OnSave(func(types.AiSettings) { called = true })

	s := types.DefaultAiSettings()
	s.PerformanceMode = "turbo"
	err := service.Save(context.Background(), s)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.False(t, called)
}

func TestSettingsService_Set(t *testing.T) {
	service := NewSettingsService(setupTestStore(t))
	ctx := context.Background()

	s, err := service.Set(ctx, "activeProvider", "ollama")
	require.NoError(t, err)
	assert.Equal(t, types.ProviderOllama, s.ActiveProvider)

	s, err = service.Set(ctx, "enableAgenticWorkflow", "false")
	require.NoError(t, err)
	assert.False(t, s.EnableAgenticWorkflow)
	assert.Equal(t, types.ProviderOllama, s.ActiveProvider)

	s, err = service.Set(ctx, "gpuOffloadLayers", "24")
	require.NoError(t, err)
	assert.Equal(t, 24, s.GPUOffloadLayers)

	_, err = service.Set(ctx, "nope", "x")
	assert.ErrorIs(t, err, ErrUnknownSetting)

	_, err = service.Set(ctx, "enableAgenticWorkflow", "maybe")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = service.Set(ctx, "gpuOffloadLayers", "1.5")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = service.Set(ctx, "activeProvider", "mistral")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
