// Package ingest fetches live readings from a provider and records them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 8 * time.Second

// Ingestor records the provider's current reading in the store.
type Ingestor struct {
	provider weather.Provider
	store    weather.ReadingStore
	clock    clock.Clock
	timeout  time.Duration
	metrics  *metrics.Recorder
}

// Option customizes an Ingestor.
type Option func(*Ingestor)

func WithClock(c clock.Clock) Option {
	return func(i *Ingestor) { i.clock = c }
}

func WithTimeout(d time.Duration) Option {
	return func(i *Ingestor) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(i *Ingestor) { i.metrics = m }
}

// New creates an Ingestor.
func New(provider weather.Provider, store weather.ReadingStore, opts ...Option) *Ingestor {
	i := &Ingestor{
		provider: provider,
		store:    store,
		clock:    clock.NewClock(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// FetchAndRecord fetches the current reading for loc and appends it.
// A reading already stored for the same timestamp is returned with
// Duplicate set and no error.
func (i *Ingestor) FetchAndRecord(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	loc = loc.Normalized()

	fctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	pr, err := i.provider.Fetch(fctx, loc)
	if err != nil {
		i.metrics.ReadingIngested("failed")
		if !errors.Is(err, weather.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", weather.ErrUpstreamUnavailable, err)
		}
		return weather.Reading{}, err
	}

	ts := pr.Timestamp
	if ts.IsZero() {
		ts = i.clock.Now()
	}
	reading := weather.Reading{
		Location:    loc,
		Timestamp:   ts.UTC().Truncate(time.Second),
		Temperature: pr.TemperatureC,
	}

	inserted, err := i.store.AppendReading(ctx, reading)
	if err != nil {
		i.metrics.ReadingIngested("failed")
		return weather.Reading{}, fmt.Errorf("record reading for %s: %w", loc.Key(), err)
	}

	if !inserted {
		reading.Duplicate = true
		i.metrics.ReadingIngested("duplicate")
		logger.Debugf("ingest: reading %s for %s already stored", weather.FormatTimestamp(reading.Timestamp), loc.Key())
		return reading, nil
	}

	i.metrics.ReadingIngested("stored")
	logger.Debugf("ingest: stored %.2f°C at %s for %s", reading.Temperature, weather.FormatTimestamp(reading.Timestamp), loc.Key())
	return reading, nil
}
