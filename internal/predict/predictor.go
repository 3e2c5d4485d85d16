// Package predict turns stored reading history into hourly forecasts.
package predict

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/weather"
)

const (
	// HistoryWindow is the number of most recent readings fed to the scaler.
	HistoryWindow = 168

	diurnalAmplitude  = 3.0
	diurnalPeakHour   = 14
	seasonalAmplitude = 3.0
	noiseStdDev       = 0.2
)

// Store is the part of the persistent store the predictor needs.
type Store interface {
	RecentReadings(ctx context.Context, loc weather.Location, limit int) ([]weather.Reading, error)
	weather.PredictionStore
}

// LoaderFunc loads a model on first use.
type LoaderFunc func() (Model, error)

// FileLoader loads the YAML model at path.
func FileLoader(path string) LoaderFunc {
	return func() (Model, error) {
		m, err := LoadModel(path)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

type Predictor struct {
	store   Store
	load    LoaderFunc
	clock   clock.Clock
	zone    *time.Location
	noise   func() float64
	metrics *metrics.Recorder

	refreshTimeout time.Duration

	mu    sync.Mutex
	model Model

	runs singleflight.Group
}

type Option func(*Predictor)

func WithClock(c clock.Clock) Option {
	return func(p *Predictor) { p.clock = c }
}

// WithZone sets the zone whose midnights delimit target days.
func WithZone(z *time.Location) Option {
	return func(p *Predictor) {
		if z != nil {
			p.zone = z
		}
	}
}

// WithNoise replaces the standard normal source used for hourly jitter.
func WithNoise(f func() float64) Option {
	return func(p *Predictor) { p.noise = f }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Predictor) { p.metrics = m }
}

// WithRefreshTimeout bounds each shared RefreshAll run.
func WithRefreshTimeout(d time.Duration) Option {
	return func(p *Predictor) {
		if d > 0 {
			p.refreshTimeout = d
		}
	}
}

func New(store Store, load LoaderFunc, opts ...Option) *Predictor {
	p := &Predictor{
		store:          store,
		load:           load,
		clock:          clock.NewClock(),
		zone:           time.Local,
		noise:          rand.NormFloat64,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// loadModel returns the cached model, loading it if needed. Failed loads
// are not cached.
func (p *Predictor) loadModel() (Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		return p.model, nil
	}
	if p.load == nil {
		return nil, fmt.Errorf("%w: no model configured", weather.ErrModelUnavailable)
	}
	m, err := p.load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrModelUnavailable, err)
	}
	logger.Infof("predict: model loaded (window %d)", m.Window())
	p.model = m
	return m, nil
}

// BaseTemperature runs the model over the most recent history of loc.
func (p *Predictor) BaseTemperature(ctx context.Context, loc weather.Location) (float64, error) {
	model, err := p.loadModel()
	if err != nil {
		return 0, err
	}

	readings, err := p.store.RecentReadings(ctx, loc, HistoryWindow)
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}
	if len(readings) == 0 {
		return 0, fmt.Errorf("%w: no readings for %s", weather.ErrInsufficientHistory, loc.Key())
	}

	temps := make([]float64, len(readings))
	for i, r := range readings {
		temps[i] = r.Temperature
	}

	scaler := fitScaler(temps)
	seq := wrapPad(scaler.transform(temps), model.Window())

	y, err := model.Predict(ctx, seq)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", weather.ErrModelUnavailable, err)
	}
	return scaler.inverse(y), nil
}

// HourlyTemperature expands a base temperature into the estimate for hour h
// of a day with the given day of year.
func HourlyTemperature(base float64, hour, dayOfYear int, noise float64) float64 {
	diurnal := diurnalAmplitude * math.Cos(2*math.Pi*float64(hour-diurnalPeakHour)/24)
	seasonal := seasonalAmplitude * math.Sin(2*math.Pi*float64(dayOfYear)/365)
	return base + diurnal + seasonal + noise
}

// PredictDay generates and stores the hourly predictions for the day
// `day` days ahead (1 is tomorrow) and returns the rows actually stored.
func (p *Predictor) PredictDay(ctx context.Context, loc weather.Location, day int) (weather.DayForecast, error) {
	if err := weather.ValidateDay(day); err != nil {
		return weather.DayForecast{}, err
	}
	loc = loc.Normalized()

	base, err := p.BaseTemperature(ctx, loc)
	if err != nil {
		return weather.DayForecast{}, err
	}

	now := p.clock.Now()
	start, end := weather.DayWindow(now, day, p.zone)
	doy := start.YearDay()

	hours := weather.DayHours(start, p.zone)
	preds := make([]weather.Prediction, 0, len(hours))
	for _, t := range hours {
		h := t.Hour()
		preds = append(preds, weather.Prediction{
			Location:       loc,
			PredictionDate: now,
			TargetDate:     t,
			Hour:           h,
			Temperature:    HourlyTemperature(base, h, doy, p.noise()*noiseStdDev),
		})
	}

	stored, err := p.store.ReplacePredictions(ctx, loc, start, end, preds)
	if err != nil {
		return weather.DayForecast{}, fmt.Errorf("store day %d: %w", day, err)
	}
	if len(stored) < len(preds) {
		logger.Warnf("predict: day %d stored %d of %d hours", day, len(stored), len(preds))
	}

	return weather.DayForecast{
		Day:             day,
		Date:            start,
		BaseTemperature: base,
		Hourly:          stored,
		Stats:           weather.Summarize(weather.Temperatures(stored)),
	}, nil
}
