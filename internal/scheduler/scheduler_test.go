package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-prediction/internal/predict"
	"github.com/i474232898/weather-prediction/internal/weather"
)

var testLoc = weather.NewLocation(30.4202, -9.5982)

type recorder struct {
	mu    sync.Mutex
	calls []string

	ingestErr  error
	refreshErr error
	panicOn    string
	purgeAt    time.Time
	ctx        context.Context
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.panicOn == name {
		panic(name + " exploded")
	}
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) FetchAndRecord(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	r.record("ingest")
	return weather.Reading{}, r.ingestErr
}

func (r *recorder) RefreshAll(ctx context.Context, loc weather.Location) (predict.RefreshResult, error) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	r.record("refresh")
	return predict.RefreshResult{RunID: "run"}, r.refreshErr
}

func (r *recorder) Purge(ctx context.Context, policy weather.RetentionPolicy, now time.Time) (weather.PurgeResult, error) {
	r.record("purge")
	r.mu.Lock()
	r.purgeAt = now
	r.mu.Unlock()
	return weather.PurgeResult{}, nil
}

func newTestScheduler(r *recorder, cfg Config) *Scheduler {
	clk := fakeclock.NewFakeClock(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	return New([]weather.Location{testLoc}, cfg, r, r, r, clk)
}

func TestForecastCycleRefreshesThenPurges(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(r, Config{})

	s.RunForecastCycle()

	assert.Equal(t, []string{"refresh", "purge"}, r.Calls())
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), r.purgeAt)
}

func TestForecastCyclePurgesAfterRefreshFailure(t *testing.T) {
	r := &recorder{refreshErr: weather.ErrModelUnavailable}
	s := newTestScheduler(r, Config{})

	s.RunForecastCycle()
	assert.Equal(t, []string{"refresh", "purge"}, r.Calls())
}

func TestForecastCycleRecoversPanics(t *testing.T) {
	r := &recorder{panicOn: "refresh"}
	s := newTestScheduler(r, Config{})

	assert.NotPanics(t, s.RunForecastCycle)
	assert.Equal(t, []string{"refresh", "purge"}, r.Calls())
}

func TestIngestErrorsAreSwallowed(t *testing.T) {
	r := &recorder{ingestErr: errors.New("upstream down")}
	s := newTestScheduler(r, Config{})

	assert.NotPanics(t, s.RunIngest)
	assert.NotPanics(t, s.RunIngest)
	assert.Equal(t, []string{"ingest", "ingest"}, r.Calls())
}

func TestStartRunsColdStartAndStopCancels(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(r, Config{IngestInterval: time.Hour, DailyAt: "03:00", Zone: time.UTC})

	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool {
		calls := r.Calls()
		return len(calls) >= 3 // immediate ingest plus refresh and purge of the cold start
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()

	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	require.NotNil(t, ctx)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestStartRejectsBadDailyTime(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(r, Config{DailyAt: "25:99", SkipColdStart: true})
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestStartWithoutLocations(t *testing.T) {
	r := &recorder{}
	s := New(nil, Config{}, r, r, r, nil)
	defer s.Stop()

	assert.NoError(t, s.Start())
	assert.Empty(t, r.Calls())
}
