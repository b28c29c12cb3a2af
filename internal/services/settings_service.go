// Package services holds application services that sit between storage and
// the command surface.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// SettingsKey is the fixed key the AI settings blob is stored under.
const SettingsKey = "curator_ai_settings"

// ErrUnknownSetting is returned by Set for a key AiSettings does not have.
var ErrUnknownSetting = errors.New("unknown setting")

// SettingsService loads and saves AiSettings and notifies subscribers after
// every successful save.
type SettingsService struct {
	store storage.SettingsStore

	mu       sync.Mutex
	handlers []func(types.AiSettings)
}

// NewSettingsService creates a new SettingsService instance.
func NewSettingsService(store storage.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// OnSave registers fn to run with the new settings after each save.
func (s *SettingsService) OnSave(fn func(types.AiSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// Load returns the persisted settings decoded over the defaults. A missing
// key yields the defaults. A corrupt blob is logged and also yields the
// defaults, so a bad save can never brick the pipeline.
func (s *SettingsService) Load(ctx context.Context) (types.AiSettings, error) {
	blob, err := s.store.GetSetting(ctx, SettingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return types.DefaultAiSettings(), nil
	}
	if err != nil {
		return types.AiSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	settings, err := types.DecodeAiSettings(blob)
	if err != nil {
		log.Warn().Err(err).Str("component", "settings").Msg("stored settings are corrupt, using defaults")
		return types.DefaultAiSettings(), nil
	}
	return settings, nil
}

// Save validates and persists settings, then notifies subscribers.
func (s *SettingsService) Save(ctx context.Context, settings types.AiSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := s.store.PutSetting(ctx, SettingsKey, blob); err != nil {
		return err
	}

	log.Info().
		Str("component", "settings").
		Str("provider", string(settings.ActiveProvider)).
		Bool("agentic", settings.EnableAgenticWorkflow).
		Msg("settings saved")

	s.mu.Lock()
	handlers := append([]func(types.AiSettings){}, s.handlers...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(settings)
	}
	return nil
}

// Set changes a single field, addressed by its JSON name, and saves.
// The value is parsed according to the field's current type.
func (s *SettingsService) Set(ctx context.Context, key, value string) (types.AiSettings, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return types.AiSettings{}, err
	}

	updated, err := applySetting(current, key, value)
	if err != nil {
		return types.AiSettings{}, err
	}
	if err := s.Save(ctx, updated); err != nil {
		return types.AiSettings{}, err
	}
	return updated, nil
}

func applySetting(current types.AiSettings, key, value string) (types.AiSettings, error) {
	blob, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(blob, &fields); err != nil {
		return current, err
	}

	existing, ok := fields[key]
	if !ok {
		return current, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}

	switch existing.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return current, fmt.Errorf("%w: %s expects true or false", storage.ErrInvalidInput, key)
		}
		fields[key] = b
	case float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return current, fmt.Errorf("%w: %s expects a number", storage.ErrInvalidInput, key)
		}
		fields[key] = n
	default:
		fields[key] = value
	}

	blob, err = json.Marshal(fields)
	if err != nil {
		return current, err
	}
	var updated types.AiSettings
	if err := json.Unmarshal(blob, &updated); err != nil {
		return current, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	return updated, nil
}
