package repository

import (
	"context"
	"sync"
	"time"

	"villa/internal/models"
)

type memoryEntry struct {
	days      []models.CalendarDay
	expiresAt time.Time
}

type MemoryCalendarCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCalendarCache(ttl time.Duration) *MemoryCalendarCache {
	return &MemoryCalendarCache{ttl: ttl, now: time.Now}
}

func (r *MemoryCalendarCache) GetCalendar(ctx context.Context, window string) ([]models.CalendarDay, error) {
	val, ok := r.entries.Load(window)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.Delete(window)
		return nil, nil
	}
	return entry.days, nil
}

func (r *MemoryCalendarCache) SetCalendar(ctx context.Context, window string, days []models.CalendarDay) error {
	r.entries.Store(window, memoryEntry{days: days, expiresAt: r.now().Add(r.ttl)})
	return nil
}

func (r *MemoryCalendarCache) Invalidate(ctx context.Context) error {
	r.entries.Range(func(key, _ any) bool {
		r.entries.Delete(key)
		return true
	})
	return nil
}
