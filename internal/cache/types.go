package cache

import (
	"time"

	"github.com/whitemask/maskd/internal/mask"
)

// CachedLine is one masked line with the counts its masking produced.
type CachedLine struct {
	Masked   string      `json:"masked"`
	Counts   mask.Counts `json:"counts"`
	CachedAt time.Time   `json:"cached_at"`
	TTL      int64       `json:"ttl"`
}

// Stats represents cache performance statistics.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// Config contains cache configuration.
type Config struct {
	RedisURL        string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns    int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	DefaultTTL      time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix       string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}
