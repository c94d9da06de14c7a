package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"villa/internal/domain"
	"villa/internal/models"

	"github.com/rs/zerolog"
)

// FailoverCalendarCache prefers the primary cache and switches to the
// fallback when it errors, retrying the primary after a minute.
type FailoverCalendarCache struct {
	primary   domain.CalendarCache
	fallback  domain.CalendarCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverCalendarCache(primary, fallback domain.CalendarCache, logger *zerolog.Logger) *FailoverCalendarCache {
	return &FailoverCalendarCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCalendarCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary calendar cache failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the primary should be tried, allowing a probe
// once the recovery interval has passed.
func (r *FailoverCalendarCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > time.Minute {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverCalendarCache) GetCalendar(ctx context.Context, window string) ([]models.CalendarDay, error) {
	if r.usePrimary() {
		days, err := r.primary.GetCalendar(ctx, window)
		if err == nil {
			r.isDown.Store(false)
			return days, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetCalendar(ctx, window)
}

func (r *FailoverCalendarCache) SetCalendar(ctx context.Context, window string, days []models.CalendarDay) error {
	if r.usePrimary() {
		err := r.primary.SetCalendar(ctx, window, days)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetCalendar(ctx, window, days)
}

// Invalidate clears both layers so a recovered primary never serves stale data.
func (r *FailoverCalendarCache) Invalidate(ctx context.Context) error {
	fallbackErr := r.fallback.Invalidate(ctx)
	if err := r.primary.Invalidate(ctx); err != nil {
		r.markDown(err)
	}
	return fallbackErr
}
