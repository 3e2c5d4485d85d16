package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// RefreshResult summarizes one full forecast run.
type RefreshResult struct {
	RunID    string
	Cleared  int64
	Days     []weather.DayForecast
	Failed   map[int]error
	Duration time.Duration
}

// Status is "ok", "partial" or "failed".
func (r RefreshResult) Status() string {
	switch {
	case len(r.Failed) == 0:
		return "ok"
	case len(r.Days) > 0:
		return "partial"
	default:
		return "failed"
	}
}

// DefaultRefreshTimeout bounds one shared refresh run.
const DefaultRefreshTimeout = 2 * time.Minute

// RefreshAll clears the stored predictions of loc and regenerates every
// forecast day in order. A failing day does not stop the others; an error
// is returned only when clearing fails or no day could be generated.
// Concurrent calls for the same location share a single run. The run is
// not cancelled with the caller that started it; a caller whose ctx ends
// early returns ctx.Err() and leaves the run to finish for the others.
func (p *Predictor) RefreshAll(ctx context.Context, loc weather.Location) (RefreshResult, error) {
	loc = loc.Normalized()

	ch := p.runs.DoChan(loc.Key(), func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.refreshTimeout)
		defer cancel()
		return p.refresh(rctx, loc)
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(RefreshResult)
		if r.Shared {
			logger.Debugf("predict: joined refresh run %s for %s", res.RunID, loc.Key())
		}
		return res, r.Err
	case <-ctx.Done():
		return RefreshResult{}, ctx.Err()
	}
}

func (p *Predictor) refresh(ctx context.Context, loc weather.Location) (RefreshResult, error) {
	started := p.clock.Now()
	res := RefreshResult{
		RunID:  uuid.NewString(),
		Failed: map[int]error{},
	}
	logger.Infof("predict: run %s refreshing forecast for %s", res.RunID, loc.Key())

	finish := func(err error) (RefreshResult, error) {
		res.Duration = p.clock.Since(started)
		p.metrics.ForecastRun(res.Status(), res.Duration)
		return res, err
	}

	cleared, err := p.store.ClearPredictions(ctx, loc)
	if err != nil {
		res.Failed[0] = err
		return finish(fmt.Errorf("run %s: clear predictions: %w", res.RunID, err))
	}
	res.Cleared = cleared

	var errs []error
	for day := 1; day <= weather.ForecastDays; day++ {
		if err := ctx.Err(); err != nil {
			res.Failed[day] = err
			errs = append(errs, err)
			continue
		}
		fc, err := p.PredictDay(ctx, loc, day)
		if err != nil {
			logger.Errorf("predict: run %s day %d failed: %v", res.RunID, day, err)
			res.Failed[day] = err
			errs = append(errs, fmt.Errorf("day %d: %w", day, err))
			continue
		}
		res.Days = append(res.Days, fc)
	}

	if len(res.Days) == 0 {
		return finish(fmt.Errorf("run %s: %w", res.RunID, errors.Join(errs...)))
	}
	logger.Infof("predict: run %s stored %d days (%d failed) in %s", res.RunID, len(res.Days), len(res.Failed), p.clock.Since(started))
	return finish(nil)
}
