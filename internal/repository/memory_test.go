package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCalendarCache(t *testing.T) {
	cache := NewMemoryCalendarCache(time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.SetCalendar(ctx, "w1", sampleDays()))
	require.NoError(t, cache.SetCalendar(ctx, "w2", sampleDays()))

	got, err := cache.GetCalendar(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	now = now.Add(2 * time.Minute)
	got, err = cache.GetCalendar(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SetCalendar(ctx, "w1", sampleDays()))
	require.NoError(t, cache.Invalidate(ctx))
	got, _ = cache.GetCalendar(ctx, "w1")
	assert.Nil(t, got)
	got, _ = cache.GetCalendar(ctx, "w2")
	assert.Nil(t, got)
}
