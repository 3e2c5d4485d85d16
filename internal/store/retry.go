package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/i474232898/weather-prediction/internal/common"
	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// RetryPolicy controls retries of writes that hit a locked database.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes up to 5 attempts with 50-150ms jittered delays.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	MinDelay:    50 * time.Millisecond,
	MaxDelay:    150 * time.Millisecond,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultRetryPolicy.MinDelay
	}
	if p.MaxDelay < p.MinDelay {
		p.MaxDelay = p.MinDelay
	}
	return p
}

// Delay returns a random delay in [MinDelay, MaxDelay].
func (p RetryPolicy) Delay() time.Duration {
	spread := p.MaxDelay - p.MinDelay
	if spread <= 0 {
		return p.MinDelay
	}
	return p.MinDelay + rand.N(spread+1)
}

// IsBusy reports whether err is SQLite lock contention.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return common.HasAny(strings.ToLower(err.Error()), "database is locked", "database table is locked", "sqlite_busy")
}

// write runs fn holding the writer slot, retrying busy failures.
// Exhausted retries surface weather.ErrStoreBusy.
func (s *SQLiteStore) write(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	policy := s.opts.Retry

	for attempt := 1; ; attempt++ {
		err := s.withWriteSlot(ctx, func() error {
			return fn(s.db.WithContext(ctx))
		})
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if attempt >= policy.MaxAttempts {
			return fmt.Errorf("%s after %d attempts: %w", op, attempt, weather.ErrStoreBusy)
		}

		s.opts.Metrics.StoreBusyRetry(op)
		delay := policy.Delay()
		logger.Debugf("store: %s busy (attempt %d/%d), retrying in %s", op, attempt, policy.MaxAttempts, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
}

// withWriteSlot acquires the single writer slot, giving up when ctx ends
// or the lock wait elapses.
func (s *SQLiteStore) withWriteSlot(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(s.opts.LockWait)
	defer timer.Stop()

	select {
	case s.writeSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	}
	defer func() { <-s.writeSem }()

	return fn()
}

// read runs fn under a bounded deadline. Lock contention or an expired
// deadline surfaces weather.ErrStoreBusy; callers may retry once.
func (s *SQLiteStore) read(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	rctx, cancel := context.WithTimeout(ctx, 2*s.opts.LockWait)
	defer cancel()

	err := fn(s.db.WithContext(rctx))
	switch {
	case err == nil:
		return nil
	case IsBusy(err):
		return fmt.Errorf("%s: %w", op, weather.ErrStoreBusy)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("%s: %w", op, weather.ErrStoreBusy)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
