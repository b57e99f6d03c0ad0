// Package cache provides Redis-backed caching of masked lines. A cache
// entry is keyed by tenant and line content; entries for a tenant are
// dropped wholesale when its tables or templates change.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MaskCache handles Redis-based caching of masked lines.
type MaskCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger

	hits   int64
	misses int64
}

// NewMaskCache creates a new Redis-based mask cache and verifies the
// connection.
func NewMaskCache(config *Config, logger *zap.Logger) (*MaskCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	mc := &MaskCache{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Mask cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return mc, nil
}

// Get looks up the masked form of line for the tenant. A nil result with a
// nil error is a cache miss; Redis failures degrade to misses.
func (mc *MaskCache) Get(ctx context.Context, tenantID, line string) (*CachedLine, error) {
	key := mc.lineKey(tenantID, line)

	data, err := mc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&mc.misses, 1)
		return nil, nil
	} else if err != nil {
		atomic.AddInt64(&mc.misses, 1)
		mc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, nil
	}

	var cached CachedLine
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		mc.logger.Error("Failed to unmarshal cached line", zap.Error(err))
		mc.client.Del(ctx, key)
		atomic.AddInt64(&mc.misses, 1)
		return nil, nil
	}

	atomic.AddInt64(&mc.hits, 1)
	mc.logger.Debug("Cache hit", zap.String("key", key))
	return &cached, nil
}

// Store caches the masked form of line for the tenant with the default TTL.
func (mc *MaskCache) Store(ctx context.Context, tenantID, line string, cached *CachedLine) error {
	key := mc.lineKey(tenantID, line)

	cached.CachedAt = time.Now()
	cached.TTL = int64(mc.config.DefaultTTL.Seconds())

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal line for caching: %w", err)
	}

	if err := mc.client.Set(ctx, key, data, mc.config.DefaultTTL).Err(); err != nil {
		mc.logger.Error("Failed to cache masked line", zap.Error(err))
		return fmt.Errorf("failed to cache masked line: %w", err)
	}
	return nil
}

// ClearTenant removes every cached line for the tenant. Called after a
// table reload or template update makes the tenant's entries stale.
func (mc *MaskCache) ClearTenant(ctx context.Context, tenantID string) error {
	pattern := mc.tenantPrefix(tenantID) + "*"

	iter := mc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := mc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	mc.logger.Info("Tenant cache cleared",
		zap.String("tenant", tenantID),
		zap.Int("deleted_keys", len(keys)))
	return nil
}

// GetStats returns cache performance statistics.
func (mc *MaskCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := mc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   atomic.LoadInt64(&mc.hits),
		Misses: atomic.LoadInt64(&mc.misses),
	}
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	for _, line := range strings.Split(info, "\r\n") {
		if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != line {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := mc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}
	return stats, nil
}

// Close closes the Redis connection.
func (mc *MaskCache) Close() error {
	if mc.client != nil {
		return mc.client.Close()
	}
	return nil
}

func (mc *MaskCache) tenantPrefix(tenantID string) string {
	return fmt.Sprintf("%s:%s:", mc.config.KeyPrefix, tenantID)
}

// lineKey hashes the line so keys stay bounded regardless of line length.
func (mc *MaskCache) lineKey(tenantID, line string) string {
	sum := sha256.Sum256([]byte(line))
	return mc.tenantPrefix(tenantID) + hex.EncodeToString(sum[:16])
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
