package weather

import (
	"sort"
	"time"
)

// Stats holds min/max/mean over a set of temperatures.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Summarize computes Stats over values. The zero Stats is returned for an
// empty input; callers use Count to distinguish it.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	st := Stats{Min: values[0], Max: values[0], Count: len(values)}
	var sum float64
	for _, v := range values {
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
		sum += v
	}
	st.Mean = sum / float64(len(values))
	return st
}

// DailyStats is the aggregate of one calendar date's readings.
type DailyStats struct {
	Date string `json:"date"` // YYYY-MM-DD in the grouping zone
	Stats
}

// AggregateByDate groups readings by calendar date in loc and summarizes
// each group. The result is sorted by date ascending.
func AggregateByDate(readings []Reading, loc *time.Location) []DailyStats {
	if loc == nil {
		loc = time.Local
	}

	byDate := make(map[string][]float64)
	for _, r := range readings {
		k := r.Timestamp.In(loc).Format(time.DateOnly)
		byDate[k] = append(byDate[k], r.Temperature)
	}

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]DailyStats, 0, len(keys))
	for _, k := range keys {
		out = append(out, DailyStats{Date: k, Stats: Summarize(byDate[k])})
	}
	return out
}

// Temperatures extracts the temperature of every prediction.
func Temperatures(preds []Prediction) []float64 {
	out := make([]float64, len(preds))
	for i, p := range preds {
		out[i] = p.Temperature
	}
	return out
}
