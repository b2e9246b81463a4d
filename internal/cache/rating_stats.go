// Package cache хранит вычисленную статистику оценок, чтобы не пересчитывать её на каждый запрос.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/errands-backend/internal/models"
)

const statsKeyPrefix = "rating_stats:"

func statsKey(userID uuid.UUID) string {
	return statsKeyPrefix + userID.String()
}

// RedisStatsCache хранит статистику в Redis в виде JSON с TTL.
type RedisStatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatsCache(rdb *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{rdb: rdb, ttl: ttl}
}

// Get возвращает статистику; отсутствие ключа не является ошибкой.
func (c *RedisStatsCache) Get(ctx context.Context, userID uuid.UUID) (*models.RatingStats, bool, error) {
	raw, err := c.rdb.Get(ctx, statsKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var stats models.RatingStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("redis decode: %w", err)
	}
	return &stats, true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, userID uuid.UUID, stats models.RatingStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if err := c.rdb.Set(ctx, statsKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.rdb.Del(ctx, statsKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryStatsCache: кэш в памяти процесса на случай, когда Redis не настроен.
type MemoryStatsCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uuid.UUID]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	stats     models.RatingStats
	expiresAt time.Time
}

func NewMemoryStatsCache(ttl time.Duration) *MemoryStatsCache {
	return &MemoryStatsCache{
		ttl:     ttl,
		entries: make(map[uuid.UUID]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryStatsCache) Get(_ context.Context, userID uuid.UUID) (*models.RatingStats, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	stats := entry.stats
	return &stats, true, nil
}

func (c *MemoryStatsCache) Set(_ context.Context, userID uuid.UUID, stats models.RatingStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = memoryEntry{stats: stats, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryStatsCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userID)
	return nil
}

// Cleanup удаляет просроченные записи до отмены контекста.
func (c *MemoryStatsCache) Cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for id, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
