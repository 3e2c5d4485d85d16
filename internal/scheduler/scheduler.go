// Package scheduler runs the background ingestion and forecast jobs.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/predict"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// Ingestor records one live reading.
type Ingestor interface {
	FetchAndRecord(ctx context.Context, loc weather.Location) (weather.Reading, error)
}

// Refresher regenerates the full forecast of a location.
type Refresher interface {
	RefreshAll(ctx context.Context, loc weather.Location) (predict.RefreshResult, error)
}

// Purger applies the retention policy.
type Purger interface {
	Purge(ctx context.Context, policy weather.RetentionPolicy, now time.Time) (weather.PurgeResult, error)
}

// Config holds the job timings.
type Config struct {
	IngestInterval time.Duration
	// DailyAt is the "HH:MM" wall-clock time of the forecast run in Zone.
	DailyAt   string
	Zone      *time.Location
	Retention weather.RetentionPolicy
	// SkipColdStart disables the forecast run issued by Start.
	SkipColdStart bool
}

// Scheduler periodically ingests readings and refreshes forecasts for the
// configured locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingestor  Ingestor
	refresher Refresher
	purger    Purger
	locations []weather.Location
	cfg       Config
	clock     clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Scheduler.
func New(locations []weather.Location, cfg Config, ingestor Ingestor, refresher Refresher, purger Purger, clk clock.Clock) *Scheduler {
	if cfg.Zone == nil {
		cfg.Zone = time.Local
	}
	if cfg.DailyAt == "" {
		cfg.DailyAt = "00:00"
	}
	if cfg.IngestInterval <= 0 {
		cfg.IngestInterval = time.Minute
	}
	if cfg.Retention == (weather.RetentionPolicy{}) {
		cfg.Retention = weather.DefaultRetention
	}
	if clk == nil {
		clk = clock.NewClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(cfg.Zone),
		ingestor:  ingestor,
		refresher: refresher,
		purger:    purger,
		locations: locations,
		cfg:       cfg,
		clock:     clk,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the jobs, starts the underlying scheduler and kicks off
// the cold-start forecast run.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		logger.Warnf("scheduler: no locations configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.cfg.IngestInterval).SingletonMode().Do(s.RunIngest)
	if err != nil {
		return fmt.Errorf("schedule ingestion: %w", err)
	}

	_, err = s.scheduler.Every(1).Day().At(s.cfg.DailyAt).WaitForSchedule().SingletonMode().Do(s.RunForecastCycle)
	if err != nil {
		return fmt.Errorf("schedule forecast at %q: %w", s.cfg.DailyAt, err)
	}

	s.scheduler.StartAsync()
	logger.Infof("scheduler: ingesting every %s, forecasting daily at %s %s", s.cfg.IngestInterval, s.cfg.DailyAt, s.cfg.Zone)

	if !s.cfg.SkipColdStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			logger.Infof("scheduler: cold-start forecast run")
			s.RunForecastCycle()
		}()
	}
	return nil
}

// Stop cancels in-flight work, stops the scheduler and waits for the
// cold-start run.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.wg.Wait()
}

// RunIngest records one reading per location.
func (s *Scheduler) RunIngest() {
	for _, loc := range s.locations {
		loc := loc
		s.guard("ingest", func() error {
			_, err := s.ingestor.FetchAndRecord(s.ctx, loc)
			return err
		})
	}
}

// RunForecastCycle refreshes every location's forecast, then purges expired
// rows. Each step is isolated from the others' failures.
func (s *Scheduler) RunForecastCycle() {
	for _, loc := range s.locations {
		loc := loc
		s.guard("forecast "+loc.Key(), func() error {
			res, err := s.refresher.RefreshAll(s.ctx, loc)
			if err != nil {
				return err
			}
			if res.Status() != "ok" {
				logger.Warnf("scheduler: forecast run %s for %s finished %s", res.RunID, loc.Key(), res.Status())
			}
			return nil
		})
	}
	s.guard("purge", func() error {
		res, err := s.purger.Purge(s.ctx, s.cfg.Retention, s.clock.Now())
		if err != nil {
			return err
		}
		logger.Infof("scheduler: purged %d readings and %d predictions", res.Readings, res.Predictions)
		return nil
	})
}

// guard runs fn, logging its error or panic instead of propagating it.
func (s *Scheduler) guard(job string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scheduler: %s panicked: %v\n%s", job, r, debug.Stack())
		}
	}()
	if err := fn(); err != nil {
		if s.ctx.Err() != nil {
			logger.Debugf("scheduler: %s aborted: %v", job, err)
			return
		}
		logger.Errorf("scheduler: %s failed: %v", job, err)
	}
}
