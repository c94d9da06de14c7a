package repository

import (
	"context"
	"testing"
	"time"

	"villa/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDays() []models.CalendarDay {
	price := 20000.0
	return []models.CalendarDay{
		{Date: "2026-05-01", Total: 1, Available: 1, Price: &price, Bookable: true},
		{Date: "2026-05-02", Total: 2, Available: 0, Price: &price},
	}
}

func TestRedisCalendarCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewRedisCalendarCache(client, time.Minute)
	ctx := context.Background()

	t.Run("Miss", func(t *testing.T) {
		got, err := cache.GetCalendar(ctx, "2026-05-01:2026-05-02")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.SetCalendar(ctx, "2026-05-01:2026-05-02", sampleDays()))
		got, err := cache.GetCalendar(ctx, "2026-05-01:2026-05-02")
		require.NoError(t, err)
		assert.Equal(t, sampleDays(), got)
		assert.True(t, s.Exists("calendar:0:2026-05-01:2026-05-02"))
	})

	t.Run("InvalidateBumpsGeneration", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx))
		got, err := cache.GetCalendar(ctx, "2026-05-01:2026-05-02")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, cache.SetCalendar(ctx, "w", sampleDays()))
		s.FastForward(2 * time.Minute)
		got, err := cache.GetCalendar(ctx, "w")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisCalendarCacheServerDown(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	cache := NewRedisCalendarCache(client, time.Minute)
	_, err = cache.GetCalendar(context.Background(), "w")
	assert.Error(t, err)
}
