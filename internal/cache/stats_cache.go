package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/repository"
)

// StatsCache keeps notification stat summaries in Redis for a short TTL so
// dashboard polling does not hammer the aggregate queries. All methods are
// nil-safe: without Redis the caller just goes straight to the database.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewStatsCache(addr, password string, ttl time.Duration, logger *slog.Logger) (*StatsCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StatsCache{client: rdb, ttl: ttl, logger: logger}, nil
}

func statsKey(userID, tenantID uuid.UUID) string {
	return fmt.Sprintf("notification:stats:%s:%s", tenantID, userID)
}

// Get returns the cached stats for the user, or (nil, false) on miss
func (c *StatsCache) Get(ctx context.Context, userID, tenantID uuid.UUID) (*repository.NotificationStats, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, statsKey(userID, tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("stats_cache_get_failed", "error", err.Error())
		}
		return nil, false
	}

	var stats repository.NotificationStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		c.logger.Warn("stats_cache_decode_failed", "error", err.Error())
		return nil, false
	}
	return &stats, true
}

// Set stores the stats under the cache TTL; failures are logged, not returned
func (c *StatsCache) Set(ctx context.Context, userID, tenantID uuid.UUID, stats *repository.NotificationStats) {
	if c == nil || c.client == nil || stats == nil {
		return
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("stats_cache_encode_failed", "error", err.Error())
		return
	}

	if err := c.client.Set(ctx, statsKey(userID, tenantID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("stats_cache_set_failed", "error", err.Error())
	}
}

// Invalidate drops the cached entry after any write that changes the counters
func (c *StatsCache) Invalidate(ctx context.Context, userID, tenantID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Del(ctx, statsKey(userID, tenantID)).Err(); err != nil {
		c.logger.Warn("stats_cache_invalidate_failed", "error", err.Error())
	}
}

// Close releases the underlying Redis connection
func (c *StatsCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
