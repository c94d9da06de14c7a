package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"villa/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetCalendar(ctx context.Context, key string) ([]models.CalendarDay, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CalendarDay), args.Error(1)
}

func (m *mockCache) SetCalendar(ctx context.Context, key string, days []models.CalendarDay) error {
	args := m.Called(ctx, key, days)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestFailoverCalendarCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverCalendarCache(primary, fallback, &logger)
	ctx := context.Background()
	days := sampleDays()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetCalendar", ctx, "w").Return(days, nil).Once()

		got, err := cache.GetCalendar(ctx, "w")
		require.NoError(t, err)
		assert.Equal(t, days, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("GetCalendar", ctx, "w").Return(nil, errors.New("redis down")).Once()
		fallback.On("GetCalendar", ctx, "w").Return(days, nil).Once()

		got, err := cache.GetCalendar(ctx, "w")
		require.NoError(t, err)
		assert.Equal(t, days, got)
		assert.True(t, cache.isDown.Load())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("SetCalendar", ctx, "w", days).Return(nil).Once()

		require.NoError(t, cache.SetCalendar(ctx, "w", days))
		primary.AssertNotCalled(t, "SetCalendar", ctx, "w", days)
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		cache.mu.Lock()
		cache.lastCheck = time.Now().Add(-2 * time.Minute)
		cache.mu.Unlock()
		primary.On("GetCalendar", ctx, "w").Return(days, nil).Once()

		_, err := cache.GetCalendar(ctx, "w")
		require.NoError(t, err)
		assert.False(t, cache.isDown.Load())
	})

	t.Run("InvalidateClearsBoth", func(t *testing.T) {
		primary.On("Invalidate", ctx).Return(nil).Once()
		fallback.On("Invalidate", ctx).Return(nil).Once()

		require.NoError(t, cache.Invalidate(ctx))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
