package weather

import (
	"context"
	"time"
)

// ProviderReading is a provider's normalized current observation.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time
	TemperatureC float64
}

// Provider abstracts a current-weather data source keyed by location.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (ProviderReading, error)
}

// ReadingStore is the read/write contract for live readings.
type ReadingStore interface {
	AppendReading(ctx context.Context, r Reading) (bool, error)
	LatestReading(ctx context.Context, loc Location) (Reading, error)
	RecentReadings(ctx context.Context, loc Location, limit int) ([]Reading, error)
	QueryReadings(ctx context.Context, loc Location, from, to time.Time) ([]Reading, error)
	CountReadings(ctx context.Context, loc Location) (int64, error)
}

// PredictionStore is the read/write contract for hourly predictions.
type PredictionStore interface {
	ReplacePredictions(ctx context.Context, loc Location, from, to time.Time, preds []Prediction) ([]Prediction, error)
	ClearPredictions(ctx context.Context, loc Location) (int64, error)
	QueryPredictions(ctx context.Context, loc Location, from, to time.Time) ([]Prediction, error)
}

// Store is the full contract the persistent store satisfies.
type Store interface {
	ReadingStore
	PredictionStore
	Purge(ctx context.Context, policy RetentionPolicy, now time.Time) (PurgeResult, error)
}
