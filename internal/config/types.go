package config

import (
	"time"

	"github.com/whitemask/maskd/internal/blacklist"
	"github.com/whitemask/maskd/internal/cache"
	"github.com/whitemask/maskd/internal/security"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig             `yaml:"server" mapstructure:"server"`
	Tenants   TenantsConfig            `yaml:"tenants" mapstructure:"tenants"`
	Logging   LoggingConfig            `yaml:"logging" mapstructure:"logging"`
	Cache     CacheConfig              `yaml:"cache" mapstructure:"cache"`
	Database  DatabaseConfig           `yaml:"database" mapstructure:"database"`
	RateLimit security.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	WebSocket WebSocketConfig          `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// TenantsConfig locates the per-tenant resource directories.
type TenantsConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string            `yaml:"level" mapstructure:"level"`
	Format string            `yaml:"format" mapstructure:"format"` // json or console
	File   LoggingFileConfig `yaml:"file" mapstructure:"file"`
}

// LoggingFileConfig contains file logging configuration
type LoggingFileConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// CacheConfig contains masked-line cache configuration.
type CacheConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	cache.Config `yaml:",inline" mapstructure:",squash"`
}

// DatabaseConfig contains blacklist persistence configuration.
type DatabaseConfig struct {
	Enabled               bool `yaml:"enabled" mapstructure:"enabled"`
	blacklist.StoreConfig `yaml:",inline" mapstructure:",squash"`
}

// WebSocketConfig contains dashboard WebSocket configuration
type WebSocketConfig struct {
	Enabled  bool                  `yaml:"enabled" mapstructure:"enabled"`
	Username string                `yaml:"username" mapstructure:"username"`
	Password string                `yaml:"password" mapstructure:"password"`
	Events   WebSocketEventsConfig `yaml:"events" mapstructure:"events"`
}

// WebSocketEventsConfig gates which event types are broadcast.
type WebSocketEventsConfig struct {
	BroadcastMasks       bool `yaml:"broadcast_masks" mapstructure:"broadcast_masks"`
	BroadcastTemplates   bool `yaml:"broadcast_templates" mapstructure:"broadcast_templates"`
	BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
	BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Tenants: TenantsConfig{
			Dir:   "tenants",
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: LoggingFileConfig{
				Enabled: false,
				Path:    "logs/maskd.log",
			},
		},
		Cache: CacheConfig{
			Enabled: false,
			Config: cache.Config{
				RedisURL:       "redis://localhost:6379",
				MaxConnections: 10,
				MinIdleConns:   2,
				DefaultTTL:     15 * time.Minute,
				KeyPrefix:      "maskd",
			},
		},
		Database: DatabaseConfig{
			Enabled: false,
			StoreConfig: blacklist.StoreConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: time.Hour,
				FlushInterval:   time.Minute,
			},
		},
		RateLimit: security.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 600,
			Burst:          60,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
			Events: WebSocketEventsConfig{
				BroadcastMasks:       true,
				BroadcastTemplates:   true,
				BroadcastSystem:      true,
				BroadcastConnections: true,
			},
		},
	}
}
