// Package query builds the read-side views served by the API. Views that
// find no data trigger one generation pass and query again.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/predict"
	"github.com/i474232898/weather-prediction/internal/weather"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 500
	// MaxHistoryHours matches the reading retention.
	MaxHistoryHours = 240

	weeklyLookback = 7 * 24 * time.Hour
)

// Store is the read side of the persistent store.
type Store interface {
	LatestReading(ctx context.Context, loc weather.Location) (weather.Reading, error)
	RecentReadings(ctx context.Context, loc weather.Location, limit int) ([]weather.Reading, error)
	QueryReadings(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Reading, error)
	QueryPredictions(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Prediction, error)
}

// Fetcher records a live reading on demand.
type Fetcher interface {
	FetchAndRecord(ctx context.Context, loc weather.Location) (weather.Reading, error)
}

// Forecaster generates predictions on demand.
type Forecaster interface {
	PredictDay(ctx context.Context, loc weather.Location, day int) (weather.DayForecast, error)
	RefreshAll(ctx context.Context, loc weather.Location) (predict.RefreshResult, error)
}

type Service struct {
	store      Store
	fetcher    Fetcher
	forecaster Forecaster
	clock      clock.Clock
	zone       *time.Location
	metrics    *metrics.Recorder
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithZone sets the zone used for hour, date and day boundaries.
func WithZone(z *time.Location) Option {
	return func(s *Service) {
		if z != nil {
			s.zone = z
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, fetcher Fetcher, forecaster Forecaster, opts ...Option) *Service {
	s := &Service{
		store:      store,
		fetcher:    fetcher,
		forecaster: forecaster,
		clock:      clock.NewClock(),
		zone:       time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Zone returns the zone views are computed in.
func (s *Service) Zone() *time.Location { return s.zone }

// retryBusy runs fn again once when the store reports lock contention.
func retryBusy[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if errors.Is(err, weather.ErrStoreBusy) {
		logger.Debugf("query: store busy, retrying once")
		v, err = fn()
	}
	return v, err
}

// heal records a live reading when a reading view came back empty.
func (s *Service) heal(ctx context.Context, view string, loc weather.Location) {
	s.metrics.SelfHeal(view)
	logger.Infof("query: no readings for %s view of %s, fetching live", view, loc.Key())
	if _, err := s.fetcher.FetchAndRecord(ctx, loc); err != nil {
		logger.Warnf("query: %s self-heal fetch failed: %v", view, err)
	}
}

// Latest returns the most recent reading of loc with the average of the
// current and previous clock hours.
func (s *Service) Latest(ctx context.Context, loc weather.Location) (LatestView, error) {
	loc = loc.Normalized()
	latest := func() (weather.Reading, error) { return s.store.LatestReading(ctx, loc) }

	r, err := retryBusy(latest)
	if errors.Is(err, weather.ErrNoData) {
		s.heal(ctx, "latest", loc)
		r, err = retryBusy(latest)
	}
	if err != nil {
		return LatestView{}, err
	}

	curStart, curEnd := weather.HourWindow(s.clock.Now(), s.zone)
	cur, err := s.hourStats(ctx, loc, curStart, curEnd)
	if err != nil {
		return LatestView{}, err
	}
	prev, err := s.hourStats(ctx, loc, curStart.Add(-time.Hour), curStart)
	if err != nil {
		return LatestView{}, err
	}

	view := LatestView{
		Time:             r.Timestamp,
		Temperature:      r.Temperature,
		ReadingsThisHour: cur.Count,
	}
	if cur.Count > 0 {
		view.CurrentHourAvg = &cur.Mean
	}
	if prev.Count > 0 {
		view.PreviousHourAvg = &prev.Mean
	}
	view.Trend = weather.CompareTrend(view.CurrentHourAvg, view.PreviousHourAvg)
	return view, nil
}

func (s *Service) hourStats(ctx context.Context, loc weather.Location, from, to time.Time) (weather.Stats, error) {
	readings, err := retryBusy(func() ([]weather.Reading, error) {
		return s.store.QueryReadings(ctx, loc, from, to)
	})
	if err != nil {
		return weather.Stats{}, err
	}
	temps := make([]float64, len(readings))
	for i, r := range readings {
		temps[i] = r.Temperature
	}
	return weather.Summarize(temps), nil
}

// History returns up to limit of the newest readings of loc in
// chronological order. A positive hours restricts them to that lookback.
func (s *Service) History(ctx context.Context, loc weather.Location, limit, hours int) (HistoryView, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 || limit > MaxHistoryLimit {
		return HistoryView{}, fmt.Errorf("%w: limit must be between 1 and %d", weather.ErrInvalidParameter, MaxHistoryLimit)
	}
	if hours < 0 || hours > MaxHistoryHours {
		return HistoryView{}, fmt.Errorf("%w: hours must be between 0 and %d", weather.ErrInvalidParameter, MaxHistoryHours)
	}
	loc = loc.Normalized()

	load := func() ([]weather.Reading, error) {
		if hours == 0 {
			return s.store.RecentReadings(ctx, loc, limit)
		}
		now := s.clock.Now()
		readings, err := s.store.QueryReadings(ctx, loc, now.Add(-time.Duration(hours)*time.Hour), now.Add(time.Hour))
		if err != nil {
			return nil, err
		}
		if len(readings) > limit {
			readings = readings[len(readings)-limit:]
		}
		return readings, nil
	}

	readings, err := retryBusy(load)
	if err == nil && len(readings) == 0 {
		s.heal(ctx, "history", loc)
		readings, err = retryBusy(load)
	}
	if err != nil {
		return HistoryView{}, err
	}

	if hours == 0 {
		// RecentReadings is newest first.
		for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
			readings[i], readings[j] = readings[j], readings[i]
		}
	}
	return HistoryView{Readings: readings}, nil
}

// WeeklyStats groups the last seven days of readings by local date.
func (s *Service) WeeklyStats(ctx context.Context, loc weather.Location) (WeeklyView, error) {
	loc = loc.Normalized()
	load := func() ([]weather.Reading, error) {
		now := s.clock.Now()
		return s.store.QueryReadings(ctx, loc, now.Add(-weeklyLookback), now.Add(time.Hour))
	}

	readings, err := retryBusy(load)
	if err == nil && len(readings) == 0 {
		s.heal(ctx, "weekly", loc)
		readings, err = retryBusy(load)
	}
	if err != nil {
		return WeeklyView{}, err
	}
	return WeeklyView{Days: weather.AggregateByDate(readings, s.zone)}, nil
}

// DayPrediction returns the stored forecast for day (1 is tomorrow),
// generating it once when nothing is stored.
func (s *Service) DayPrediction(ctx context.Context, loc weather.Location, day int) (DayView, error) {
	if err := weather.ValidateDay(day); err != nil {
		return DayView{}, err
	}
	loc = loc.Normalized()

	start, end := weather.DayWindow(s.clock.Now(), day, s.zone)
	load := func() ([]weather.Prediction, error) {
		return s.store.QueryPredictions(ctx, loc, start, end)
	}

	preds, err := retryBusy(load)
	if err != nil {
		return DayView{}, err
	}
	if len(preds) == 0 {
		s.metrics.SelfHeal("predict")
		logger.Infof("query: no predictions for day %d of %s, generating", day, loc.Key())
		if _, err := s.forecaster.PredictDay(ctx, loc, day); err != nil {
			return DayView{}, err
		}
		if preds, err = retryBusy(load); err != nil {
			return DayView{}, err
		}
	}

	sortByHour(preds)
	return DayView{
		Day:    day,
		Date:   start,
		Hourly: preds,
		Stats:  weather.Summarize(weather.Temperatures(preds)),
	}, nil
}

// Forecast returns the stored predictions grouped into day buckets starting
// at the next local midnight. When nothing is stored one full refresh is
// run; if that still yields nothing the error wraps weather.ErrNoForecast.
func (s *Service) Forecast(ctx context.Context, loc weather.Location) (ForecastView, error) {
	loc = loc.Normalized()

	now := s.clock.Now()
	from, _ := weather.DayWindow(now, 1, s.zone)
	_, to := weather.DayWindow(now, weather.ForecastDays, s.zone)
	load := func() ([]weather.Prediction, error) {
		return s.store.QueryPredictions(ctx, loc, from, to)
	}

	preds, err := retryBusy(load)
	if err != nil {
		return ForecastView{}, err
	}
	if len(preds) == 0 {
		s.metrics.SelfHeal("forecast")
		logger.Infof("query: no forecast for %s, running a full refresh", loc.Key())
		_, refreshErr := s.forecaster.RefreshAll(ctx, loc)
		if preds, err = retryBusy(load); err != nil {
			return ForecastView{}, err
		}
		if len(preds) == 0 {
			if refreshErr == nil {
				refreshErr = errors.New("refresh stored no predictions")
			}
			return ForecastView{}, fmt.Errorf("%w: %v", weather.ErrNoForecast, refreshErr)
		}
	}

	return s.bucket(now, preds), nil
}

func (s *Service) bucket(now time.Time, preds []weather.Prediction) ForecastView {
	var view ForecastView
	for _, p := range preds {
		if p.PredictionDate.After(view.LastUpdated) {
			view.LastUpdated = p.PredictionDate
		}
	}
	view.NextUpdate = view.LastUpdated.Add(24 * time.Hour)

	for i := 1; i <= weather.ForecastDays; i++ {
		start, end := weather.DayWindow(now, i, s.zone)
		var hourly []weather.Prediction
		for _, p := range preds {
			if !p.TargetDate.Before(start) && p.TargetDate.Before(end) {
				hourly = append(hourly, p)
			}
		}
		if len(hourly) == 0 {
			continue
		}
		sortByHour(hourly)
		view.Days = append(view.Days, ForecastDay{
			DayNumber: i,
			Date:      start,
			Hourly:    hourly,
			Stats:     weather.Summarize(weather.Temperatures(hourly)),
		})
	}
	return view
}

func sortByHour(preds []weather.Prediction) {
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Hour < preds[j].Hour })
}
