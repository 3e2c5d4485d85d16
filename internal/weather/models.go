package weather

import (
	"fmt"
	"math"
	"time"
)

// TimestampLayout is the canonical, lexicographically sortable form used for
// every timestamp persisted by the store. Values are always UTC.
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t in the canonical store format, truncated to seconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// ParseTimestamp parses a canonical store timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}

// Location identifies the place readings and predictions belong to.
// Coordinates are normalized to 4 decimals so equality lookups in the
// store are stable regardless of how the values were parsed.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// NewLocation returns a normalized Location.
func NewLocation(lat, lon float64) Location {
	return Location{Latitude: round4(lat), Longitude: round4(lon)}
}

// Normalized returns l with rounded coordinates.
func (l Location) Normalized() Location {
	return NewLocation(l.Latitude, l.Longitude)
}

// Key returns a canonical string key for this location, used in logs.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f:%.4f", l.Latitude, l.Longitude)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Reading is one timestamped temperature observation at a location.
type Reading struct {
	Location    Location  `json:"location"`
	Timestamp   time.Time `json:"timestamp"` // always UTC, second precision
	Temperature float64   `json:"temperature"`

	// Duplicate is set by the ingestor when the store already held a reading
	// for the same timestamp and location.
	Duplicate bool `json:"-"`
}

// Prediction is one hourly temperature estimate for a future day.
type Prediction struct {
	Location       Location  `json:"location"`
	PredictionDate time.Time `json:"prediction_date"`
	TargetDate     time.Time `json:"target_date"`
	Hour           int       `json:"hour"`
	Temperature    float64   `json:"temperature"`
}

// DayForecast is the set of hourly predictions for one target day.
// Hourly may hold fewer than 24 entries when rows were skipped on insert.
type DayForecast struct {
	Day             int          `json:"day"`
	Date            time.Time    `json:"date"`
	BaseTemperature float64      `json:"base_temperature"`
	Hourly          []Prediction `json:"hourly"`
	Stats           Stats        `json:"stats"`
}

// Trend describes the direction of the current hour's average compared to
// the previous hour's.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CompareTrend returns the trend between two hourly averages; a missing
// average on either side is reported as stable.
func CompareTrend(current, previous *float64) Trend {
	if current == nil || previous == nil {
		return TrendStable
	}
	switch {
	case *current > *previous:
		return TrendUp
	case *current < *previous:
		return TrendDown
	default:
		return TrendStable
	}
}

// RetentionPolicy controls how long rows are kept by the store.
type RetentionPolicy struct {
	ReadingMaxAge    time.Duration
	PredictionMaxAge time.Duration
}

// DefaultRetention keeps readings for 10 days and predictions for 5.
var DefaultRetention = RetentionPolicy{
	ReadingMaxAge:    10 * 24 * time.Hour,
	PredictionMaxAge: 5 * 24 * time.Hour,
}

// Cutoffs returns the timestamps before which readings and predictions are
// removed. Rows exactly at a cutoff are kept.
func (p RetentionPolicy) Cutoffs(now time.Time) (readings, predictions time.Time) {
	return now.Add(-p.ReadingMaxAge), now.Add(-p.PredictionMaxAge)
}

// PurgeResult reports how many rows a purge removed.
type PurgeResult struct {
	Readings    int64 `json:"readings"`
	Predictions int64 `json:"predictions"`
}
