package ingest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// Mock history parameters: hourly readings around a base temperature.
const (
	SeedHours       = 168
	seedBaseTemp    = 25.0
	seedStdDevTempC = 2.0
)

// SeedMockHistory fills an empty store with hours of synthetic hourly
// readings ending at the current hour. It does nothing when readings for
// loc already exist and returns the number of rows written.
func (i *Ingestor) SeedMockHistory(ctx context.Context, loc weather.Location, hours int) (int, error) {
	loc = loc.Normalized()
	if hours <= 0 {
		hours = SeedHours
	}

	n, err := i.store.CountReadings(ctx, loc)
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	end := i.clock.Now().UTC().Truncate(time.Hour)
	start := end.Add(-time.Duration(hours-1) * time.Hour)

	written := 0
	for h := 0; h < hours; h++ {
		r := weather.Reading{
			Location:    loc,
			Timestamp:   start.Add(time.Duration(h) * time.Hour),
			Temperature: seedBaseTemp + rand.NormFloat64()*seedStdDevTempC,
		}
		inserted, err := i.store.AppendReading(ctx, r)
		if err != nil {
			return written, fmt.Errorf("seed reading %d: %w", h, err)
		}
		if inserted {
			written++
		}
	}

	logger.Infof("ingest: seeded %d mock readings for %s", written, loc.Key())
	return written, nil
}
