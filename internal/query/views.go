package query

import (
	"time"

	"github.com/i474232898/weather-prediction/internal/weather"
)

// LatestView is the most recent reading with the current hour's summary.
type LatestView struct {
	Time             time.Time
	Temperature      float64
	CurrentHourAvg   *float64
	PreviousHourAvg  *float64
	ReadingsThisHour int
	Trend            weather.Trend
}

// HistoryView holds readings in chronological order.
type HistoryView struct {
	Readings []weather.Reading
}

// WeeklyView holds per-date statistics for the last seven days.
type WeeklyView struct {
	Days []weather.DailyStats
}

// DayView is the stored forecast of one target day.
type DayView struct {
	Day    int
	Date   time.Time
	Hourly []weather.Prediction
	Stats  weather.Stats
}

// ForecastDay is one non-empty bucket of the multi-day forecast.
type ForecastDay struct {
	DayNumber int
	Date      time.Time
	Hourly    []weather.Prediction
	Stats     weather.Stats
}

// ForecastView is the forecast grouped by target day.
type ForecastView struct {
	Days        []ForecastDay
	LastUpdated time.Time
	NextUpdate  time.Time
}
