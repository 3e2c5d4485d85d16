package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-prediction/internal/store"
	"github.com/i474232898/weather-prediction/internal/weather"
)

var testLoc = weather.NewLocation(30.4202, -9.5982)

type fakeProvider struct {
	reading weather.ProviderReading
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	f.calls++
	if f.err != nil {
		return weather.ProviderReading{}, f.err
	}
	return f.reading, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "weather.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFetchAndRecordStoresReading(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)
	p := &fakeProvider{reading: weather.ProviderReading{ProviderName: "fake", Timestamp: ts, TemperatureC: 21.5}}
	ing := New(p, s)

	got, err := ing.FetchAndRecord(context.Background(), testLoc)
	require.NoError(t, err)
	assert.False(t, got.Duplicate)
	assert.Equal(t, ts, got.Timestamp)

	latest, err := s.LatestReading(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, 21.5, latest.Temperature)
}

func TestFetchAndRecordFlagsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)
	p := &fakeProvider{reading: weather.ProviderReading{Timestamp: ts, TemperatureC: 21.5}}
	ing := New(p, s)
	ctx := context.Background()

	_, err := ing.FetchAndRecord(ctx, testLoc)
	require.NoError(t, err)

	got, err := ing.FetchAndRecord(ctx, testLoc)
	require.NoError(t, err)
	assert.True(t, got.Duplicate)

	n, err := s.CountReadings(ctx, testLoc)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestFetchAndRecordUsesClockWhenProviderOmitsTime(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 10, 9, 30, 12, 500, time.UTC)
	ing := New(&fakeProvider{reading: weather.ProviderReading{TemperatureC: 18}}, s, WithClock(fakeclock.NewFakeClock(now)))

	got, err := ing.FetchAndRecord(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, now.Truncate(time.Second), got.Timestamp)
}

func TestFetchAndRecordUpstreamFailure(t *testing.T) {
	s := newTestStore(t)
	ing := New(&fakeProvider{err: errors.New("connection refused")}, s)

	_, err := ing.FetchAndRecord(context.Background(), testLoc)
	assert.ErrorIs(t, err, weather.ErrUpstreamUnavailable)

	n, err := s.CountReadings(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedMockHistory(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	ing := New(&fakeProvider{}, s, WithClock(fakeclock.NewFakeClock(now)))
	ctx := context.Background()

	n, err := ing.SeedMockHistory(ctx, testLoc, 0)
	require.NoError(t, err)
	assert.Equal(t, SeedHours, n)

	latest, err := s.LatestReading(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, now.Truncate(time.Hour), latest.Timestamp)

	n, err = ing.SeedMockHistory(ctx, testLoc, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice must not add rows")
}
