// Package app assembles the service components into an fx application.
package app

import (
	"context"
	"net/http"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/fx"

	"github.com/i474232898/weather-prediction/internal/config"
	"github.com/i474232898/weather-prediction/internal/ingest"
	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/predict"
	"github.com/i474232898/weather-prediction/internal/query"
	"github.com/i474232898/weather-prediction/internal/scheduler"
	"github.com/i474232898/weather-prediction/internal/store"
	"github.com/i474232898/weather-prediction/internal/weather"
	"github.com/i474232898/weather-prediction/internal/weather/providers"
)

// Core provides the store, ingestion, prediction and query components.
var Core = fx.Options(
	fx.Provide(
		func() clock.Clock { return clock.NewClock() },
		metrics.NewRecorder,
		NewStore,
		NewProvider,
		NewIngestor,
		NewPredictor,
		NewQueryService,
	),
)

// Serve adds the background scheduler and the HTTP server to Core.
var Serve = fx.Options(
	Core,
	fx.Provide(
		NewScheduler,
		NewHTTPApp,
		func(s *store.SQLiteStore) Pinger { return s },
	),
	fx.Invoke(seedHistory, runScheduler, runHTTPServer),
)

// NewStore opens the SQLite store and closes it when the app stops.
func NewStore(lc fx.Lifecycle, cfg *config.AppConfig, rec *metrics.Recorder) (*store.SQLiteStore, error) {
	s, err := store.Open(store.Options{
		Path:     cfg.DBPath,
		LockWait: cfg.StoreLockWait,
		Retry:    store.RetryPolicy{MaxAttempts: cfg.StoreMaxAttempts},
		Metrics:  rec,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Infof("app: closing store")
			return s.Close()
		},
	})
	return s, nil
}

// NewProvider returns the Open-Meteo provider over a shared HTTP client.
func NewProvider(cfg *config.AppConfig) weather.Provider {
	client := &http.Client{Timeout: cfg.UpstreamTimeout}
	return providers.NewOpenMeteoProvider(client, providers.WithBaseURL(cfg.OpenMeteoURL))
}

func NewIngestor(cfg *config.AppConfig, p weather.Provider, s *store.SQLiteStore, clk clock.Clock, rec *metrics.Recorder) *ingest.Ingestor {
	return ingest.New(p, s,
		ingest.WithClock(clk),
		ingest.WithTimeout(cfg.UpstreamTimeout),
		ingest.WithMetrics(rec),
	)
}

func NewPredictor(cfg *config.AppConfig, s *store.SQLiteStore, clk clock.Clock, rec *metrics.Recorder) *predict.Predictor {
	return predict.New(s, predict.FileLoader(cfg.ModelPath),
		predict.WithClock(clk),
		predict.WithZone(cfg.Timezone),
		predict.WithMetrics(rec),
	)
}

func NewQueryService(cfg *config.AppConfig, s *store.SQLiteStore, ing *ingest.Ingestor, p *predict.Predictor, clk clock.Clock, rec *metrics.Recorder) *query.Service {
	return query.NewService(s, ing, p,
		query.WithClock(clk),
		query.WithZone(cfg.Timezone),
		query.WithMetrics(rec),
	)
}

func NewScheduler(cfg *config.AppConfig, s *store.SQLiteStore, ing *ingest.Ingestor, p *predict.Predictor, clk clock.Clock) *scheduler.Scheduler {
	return scheduler.New([]weather.Location{cfg.Location}, scheduler.Config{
		IngestInterval: cfg.IngestInterval,
		DailyAt:        cfg.ForecastDailyAt,
		Zone:           cfg.Timezone,
		Retention:      cfg.Retention,
	}, ing, p, s, clk)
}

// seedHistory fills an empty store with mock readings when enabled.
func seedHistory(lc fx.Lifecycle, cfg *config.AppConfig, ing *ingest.Ingestor) {
	if !cfg.SeedMockData {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := ing.SeedMockHistory(ctx, cfg.Location, ingest.SeedHours); err != nil {
				logger.Warnf("app: seeding mock history failed: %v", err)
			}
			return nil
		},
	})
}

func runScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start()
		},
		OnStop: func(context.Context) error {
			done := make(chan struct{})
			go func() {
				sched.Stop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				logger.Warnf("app: scheduler did not stop within 10s")
			}
			return nil
		},
	})
}
