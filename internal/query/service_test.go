package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-prediction/internal/predict"
	"github.com/i474232898/weather-prediction/internal/store"
	"github.com/i474232898/weather-prediction/internal/weather"
)

var (
	testLoc = weather.NewLocation(30.4202, -9.5982)
	testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "weather.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addReading(t *testing.T, s *store.SQLiteStore, ts time.Time, temp float64) {
	t.Helper()
	_, err := s.AppendReading(context.Background(), weather.Reading{Location: testLoc, Timestamp: ts, Temperature: temp})
	require.NoError(t, err)
}

// liveFetcher appends a fixed reading on each call.
type liveFetcher struct {
	store *store.SQLiteStore
	temp  float64
	err   error
	calls int
}

func (f *liveFetcher) FetchAndRecord(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	f.calls++
	if f.err != nil {
		return weather.Reading{}, f.err
	}
	r := weather.Reading{Location: loc, Timestamp: testNow.Add(-time.Minute), Temperature: f.temp}
	_, err := f.store.AppendReading(ctx, r)
	return r, err
}

// countingForecaster wraps a predictor and counts generation calls.
type countingForecaster struct {
	*predict.Predictor
	days, refreshes int
}

func (c *countingForecaster) PredictDay(ctx context.Context, loc weather.Location, day int) (weather.DayForecast, error) {
	c.days++
	return c.Predictor.PredictDay(ctx, loc, day)
}

func (c *countingForecaster) RefreshAll(ctx context.Context, loc weather.Location) (predict.RefreshResult, error) {
	c.refreshes++
	return c.Predictor.RefreshAll(ctx, loc)
}

func averageModel() predict.Model {
	w := make([]float64, 30)
	for i := range w {
		w[i] = 1.0 / 30
	}
	return &predict.LinearModel{Kind: "linear", WindowSize: 30, Weights: w, Activation: "identity"}
}

func newForecaster(s *store.SQLiteStore, load predict.LoaderFunc) *countingForecaster {
	p := predict.New(s, load,
		predict.WithClock(fakeclock.NewFakeClock(testNow)),
		predict.WithZone(time.UTC),
	)
	return &countingForecaster{Predictor: p}
}

func newService(s Store, f Fetcher, fc Forecaster) *Service {
	return NewService(s, f, fc, WithClock(fakeclock.NewFakeClock(testNow)), WithZone(time.UTC))
}

func TestLatestComputesHourlyTrend(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, time.Date(2026, 3, 10, 8, 10, 0, 0, time.UTC), 18)
	addReading(t, s, time.Date(2026, 3, 10, 8, 40, 0, 0, time.UTC), 20)
	addReading(t, s, time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC), 21)
	addReading(t, s, time.Date(2026, 3, 10, 9, 20, 0, 0, time.UTC), 23)

	svc := newService(s, &liveFetcher{store: s}, nil)
	v, err := svc.Latest(context.Background(), testLoc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 10, 9, 20, 0, 0, time.UTC), v.Time)
	assert.Equal(t, 23.0, v.Temperature)
	assert.Equal(t, 2, v.ReadingsThisHour)
	require.NotNil(t, v.CurrentHourAvg)
	require.NotNil(t, v.PreviousHourAvg)
	assert.InDelta(t, 22, *v.CurrentHourAvg, 1e-9)
	assert.InDelta(t, 19, *v.PreviousHourAvg, 1e-9)
	assert.Equal(t, weather.TrendUp, v.Trend)
}

func TestLatestWithoutPreviousHourIsStable(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC), 21)

	v, err := newService(s, &liveFetcher{store: s}, nil).Latest(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Nil(t, v.PreviousHourAvg)
	assert.Equal(t, weather.TrendStable, v.Trend)
}

func TestLatestSelfHealsOnce(t *testing.T) {
	s := newTestStore(t)
	f := &liveFetcher{store: s, temp: 19.5}

	v, err := newService(s, f, nil).Latest(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, 19.5, v.Temperature)
	assert.Equal(t, 1, f.calls)
}

func TestLatestReportsNoDataAfterFailedHeal(t *testing.T) {
	s := newTestStore(t)
	f := &liveFetcher{store: s, err: weather.ErrUpstreamUnavailable}

	_, err := newService(s, f, nil).Latest(context.Background(), testLoc)
	assert.ErrorIs(t, err, weather.ErrNoData)
	assert.Equal(t, 1, f.calls)
}

func TestHistoryIsChronologicalAndLimited(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 15; i++ {
		addReading(t, s, testNow.Add(-time.Duration(15-i)*time.Minute), float64(i))
	}
	svc := newService(s, &liveFetcher{store: s}, nil)

	v, err := svc.History(context.Background(), testLoc, 0, 0)
	require.NoError(t, err)
	require.Len(t, v.Readings, DefaultHistoryLimit)
	assert.Equal(t, 5.0, v.Readings[0].Temperature)
	assert.Equal(t, 14.0, v.Readings[9].Temperature)

	v, err = svc.History(context.Background(), testLoc, 3, 1)
	require.NoError(t, err)
	require.Len(t, v.Readings, 3)
	assert.Equal(t, 12.0, v.Readings[0].Temperature)
	assert.Equal(t, 14.0, v.Readings[2].Temperature)
}

func TestHistoryRejectsBadParameters(t *testing.T) {
	svc := newService(newTestStore(t), nil, nil)

	_, err := svc.History(context.Background(), testLoc, MaxHistoryLimit+1, 0)
	assert.ErrorIs(t, err, weather.ErrInvalidParameter)
	_, err = svc.History(context.Background(), testLoc, 10, -1)
	assert.ErrorIs(t, err, weather.ErrInvalidParameter)
}

func TestHistoryEmptyAfterHealIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	f := &liveFetcher{store: s, err: weather.ErrUpstreamUnavailable}

	v, err := newService(s, f, nil).History(context.Background(), testLoc, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, v.Readings)
	assert.Equal(t, 1, f.calls)
}

func TestWeeklyStatsGroupsByDate(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), 10)
	addReading(t, s, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC), 14)
	addReading(t, s, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 12)
	addReading(t, s, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), 99) // outside the week

	v, err := newService(s, &liveFetcher{store: s}, nil).WeeklyStats(context.Background(), testLoc)
	require.NoError(t, err)
	require.Len(t, v.Days, 2)
	assert.Equal(t, "2026-03-09", v.Days[0].Date)
	assert.Equal(t, 10.0, v.Days[0].Min)
	assert.Equal(t, 14.0, v.Days[0].Max)
	assert.Equal(t, 12.0, v.Days[0].Mean)
	assert.Equal(t, "2026-03-10", v.Days[1].Date)
}

func TestDayPredictionGeneratesOnMiss(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, testNow.Add(-time.Hour), 20)
	fc := newForecaster(s, func() (predict.Model, error) { return averageModel(), nil })
	svc := newService(s, nil, fc)

	v, err := svc.DayPrediction(context.Background(), testLoc, 1)
	require.NoError(t, err)
	assert.Len(t, v.Hourly, 24)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), v.Date)
	assert.Equal(t, 1, fc.days)

	_, err = svc.DayPrediction(context.Background(), testLoc, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fc.days, "stored predictions are served without regenerating")
}

func TestDayPredictionValidatesDay(t *testing.T) {
	_, err := newService(newTestStore(t), nil, nil).DayPrediction(context.Background(), testLoc, 6)
	assert.ErrorIs(t, err, weather.ErrInvalidParameter)
}

func TestForecastSelfHealsWithOneRefresh(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, testNow.Add(-time.Hour), 20)
	fc := newForecaster(s, func() (predict.Model, error) { return averageModel(), nil })
	svc := newService(s, nil, fc)

	v, err := svc.Forecast(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, 1, fc.refreshes)
	require.Len(t, v.Days, weather.ForecastDays)

	for i, d := range v.Days {
		assert.Equal(t, i+1, d.DayNumber)
		assert.Len(t, d.Hourly, 24)
		assert.Equal(t, 24, d.Stats.Count)
	}
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), v.Days[0].Date)
	assert.Equal(t, testNow, v.LastUpdated)
	assert.Equal(t, testNow.Add(24*time.Hour), v.NextUpdate)
}

func TestForecastWithoutModelFailsWithoutLooping(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, testNow.Add(-time.Hour), 20)
	fc := newForecaster(s, func() (predict.Model, error) { return nil, errors.New("missing") })
	svc := newService(s, nil, fc)

	_, err := svc.Forecast(context.Background(), testLoc)
	assert.ErrorIs(t, err, weather.ErrNoForecast)
	assert.Equal(t, 1, fc.refreshes)

	_, err = svc.Forecast(context.Background(), testLoc)
	assert.ErrorIs(t, err, weather.ErrNoForecast)
	assert.Equal(t, 2, fc.refreshes)
}

func TestForecastBucketsEachRowOnceAcrossDST(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	now := time.Date(2026, 3, 28, 10, 0, 0, 0, paris)
	clk := fakeclock.NewFakeClock(now)

	s := newTestStore(t)
	addReading(t, s, now.Add(-time.Hour), 14)
	p := predict.New(s, func() (predict.Model, error) { return averageModel(), nil },
		predict.WithClock(clk),
		predict.WithZone(paris),
	)
	svc := NewService(s, nil, p, WithClock(clk), WithZone(paris))

	v, err := svc.Forecast(context.Background(), testLoc)
	require.NoError(t, err)
	require.Len(t, v.Days, weather.ForecastDays)

	seen := map[time.Time]int{}
	for _, d := range v.Days {
		for _, pr := range d.Hourly {
			seen[pr.TargetDate.UTC()]++
			assert.Equal(t, d.Date.Day(), pr.TargetDate.In(paris).Day(), "day %d", d.DayNumber)
		}
	}
	for ts, n := range seen {
		assert.Equal(t, 1, n, "target %s", ts)
	}
	assert.Len(t, v.Days[0].Hourly, 23)
	assert.Len(t, v.Days[1].Hourly, 24)
	assert.Len(t, seen, 23+4*24)
}

func TestForecastOmitsEmptyBuckets(t *testing.T) {
	svc := newService(nil, nil, nil)
	start, _ := weather.DayWindow(testNow, 3, time.UTC)
	preds := []weather.Prediction{
		{TargetDate: start.Add(2 * time.Hour), Hour: 2, Temperature: 12, PredictionDate: testNow},
		{TargetDate: start, Hour: 0, Temperature: 10, PredictionDate: testNow.Add(-time.Hour)},
	}

	v := svc.bucket(testNow, preds)
	require.Len(t, v.Days, 1)
	assert.Equal(t, 3, v.Days[0].DayNumber)
	assert.Equal(t, 0, v.Days[0].Hourly[0].Hour)
	assert.Equal(t, 11.0, v.Days[0].Stats.Mean)
	assert.Equal(t, testNow, v.LastUpdated)
}

// busyOnce fails the first latest-reading call with ErrStoreBusy.
type busyOnce struct {
	Store
	failed bool
}

func (b *busyOnce) LatestReading(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	if !b.failed {
		b.failed = true
		return weather.Reading{}, weather.ErrStoreBusy
	}
	return b.Store.LatestReading(ctx, loc)
}

func TestLatestRetriesBusyReadOnce(t *testing.T) {
	s := newTestStore(t)
	addReading(t, s, testNow.Add(-time.Minute), 21)

	v, err := newService(&busyOnce{Store: s}, nil, nil).Latest(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, 21.0, v.Temperature)
}
