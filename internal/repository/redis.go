package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"villa/internal/config"
	"villa/internal/models"

	"github.com/redis/go-redis/v9"
)

const calendarGenerationKey = "calendar:gen"

// RedisCalendarCache keeps computed calendars in Redis. Invalidation bumps a
// generation counter so stale windows simply stop being addressed.
type RedisCalendarCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCalendarCache(client *redis.Client, ttl time.Duration) *RedisCalendarCache {
	return &RedisCalendarCache{client: client, ttl: ttl}
}

func (r *RedisCalendarCache) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, calendarGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read calendar generation: %w", err)
	}
	return gen, nil
}

func (r *RedisCalendarCache) key(ctx context.Context, window string) (string, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("calendar:%d:%s", gen, window), nil
}

func (r *RedisCalendarCache) GetCalendar(ctx context.Context, window string) ([]models.CalendarDay, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key, err := r.key(ctx, window)
	if err != nil {
		return nil, err
	}
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar from redis: %w", err)
	}

	var days []models.CalendarDay
	if err := json.Unmarshal([]byte(val), &days); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calendar: %w", err)
	}
	return days, nil
}

func (r *RedisCalendarCache) SetCalendar(ctx context.Context, window string, days []models.CalendarDay) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key, err := r.key(ctx, window)
	if err != nil {
		return err
	}
	data, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set calendar in redis: %w", err)
	}
	return nil
}

func (r *RedisCalendarCache) Invalidate(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Incr(ctx, calendarGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump calendar generation: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
