package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/i474232898/weather-prediction/internal/config"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/query"
	"github.com/i474232898/weather-prediction/internal/weather"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		DBPath:           filepath.Join(t.TempDir(), "weather.db"),
		Location:         weather.NewLocation(config.DefaultLatitude, config.DefaultLongitude),
		IngestInterval:   time.Minute,
		UpstreamTimeout:  time.Second,
		OpenMeteoURL:     "http://127.0.0.1:1",
		ForecastDailyAt:  "00:00",
		ModelPath:        filepath.Join("..", "..", "models", "sequence.yaml"),
		Timezone:         time.UTC,
		Retention:        weather.DefaultRetention,
		StoreLockWait:    time.Second,
		StoreMaxAttempts: 5,
		Port:             "0",
		LogLevel:         "INFO",
	}
}

func TestServeGraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(fx.Supply(testConfig(t)), fx.NopLogger, Serve)
	assert.NoError(t, err)
}

func TestOpenStartsCoreComponents(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	c, stop, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, c.Store)
	require.NotNil(t, c.Ingestor)
	require.NotNil(t, c.Predictor)

	n, err := c.Ingestor.SeedMockHistory(ctx, cfg.Location, 24)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	res, err := c.Predictor.RefreshAll(ctx, cfg.Location)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status())

	require.NoError(t, stop(ctx))
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReflectsStore(t *testing.T) {
	cfg := testConfig(t)
	svc := query.NewService(nil, nil, nil)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{name: "healthy", code: 200},
		{name: "store down", err: errors.New("disk gone"), code: 503},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := NewHTTPApp(cfg, svc, stubPinger{err: tc.err}, metrics.NewRecorder())
			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := NewHTTPApp(testConfig(t), query.NewService(nil, nil, nil), stubPinger{}, metrics.NewRecorder())
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
