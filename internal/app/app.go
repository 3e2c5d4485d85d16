package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/i474232898/weather-prediction/internal/config"
	"github.com/i474232898/weather-prediction/internal/ingest"
	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/predict"
	"github.com/i474232898/weather-prediction/internal/store"
)

// Components are the core services handed to one-off commands.
type Components struct {
	Config    *config.AppConfig
	Store     *store.SQLiteStore
	Ingestor  *ingest.Ingestor
	Predictor *predict.Predictor
}

// fxLogger keeps fx quiet unless debug logging is on.
func fxLogger() fx.Option {
	if logger.Enabled(logger.LevelDebug) {
		return fx.Options()
	}
	return fx.NopLogger
}

// NewServer returns the long-running application.
func NewServer(cfg *config.AppConfig) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fxLogger(),
		Serve,
	)
}

// Open starts the core components. The returned func stops them.
func Open(ctx context.Context, cfg *config.AppConfig) (*Components, func(context.Context) error, error) {
	c := &Components{Config: cfg}
	a := fx.New(
		fx.Supply(cfg),
		fxLogger(),
		Core,
		fx.Populate(&c.Store, &c.Ingestor, &c.Predictor),
	)
	if err := a.Err(); err != nil {
		return nil, nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, nil, err
	}
	return c, a.Stop, nil
}
