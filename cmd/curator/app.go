package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cosmicdatasets/curator/internal/analysis"
	"github.com/cosmicdatasets/curator/internal/config"
	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/internal/media"
	"github.com/cosmicdatasets/curator/internal/services"
	"github.com/cosmicdatasets/curator/internal/storage/sqlite"
)

// app is the wired pipeline shared by every command.
type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	settings *services.SettingsService
	clients  *llm.Clients
	facade   *analysis.Facade
	fetcher  *media.Fetcher
}

// openStore opens the database only, for commands that never analyze.
func openStore(cfg *config.Config) (*sqlite.Store, error) {
	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// newApp wires config → storage → settings → adapters → facade. Saved
// settings are pushed into the facade so later calls see them.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	settingsSvc := services.NewSettingsService(store)
	settings, err := settingsSvc.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var limiter *rate.Limiter
	if rpm := cfg.Analysis.CloudRequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	clients := llm.NewClients(llm.ClientOptions{Limiter: limiter})

	facade := analysis.NewFacade(settings, clients, analysis.FacadeOptions{
		SimulationDelay: cfg.Analysis.SimulationDelay,
	})
	settingsSvc.OnSave(facade.Reload)

	fetcher := media.NewFetcher(
		media.WithHTTPClient(&http.Client{Timeout: cfg.Analysis.FetchTimeout}),
		media.WithMaxBytes(cfg.Analysis.FetchMaxBytes),
	)

	log.Debug().
		Str("provider", string(settings.ActiveProvider)).
		Bool("agentic", settings.EnableAgenticWorkflow).
		Msg("pipeline ready")

	return &app{
		cfg:      cfg,
		store:    store,
		settings: settingsSvc,
		clients:  clients,
		facade:   facade,
		fetcher:  fetcher,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close storage")
	}
}
