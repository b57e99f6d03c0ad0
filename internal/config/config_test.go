package config

import "testing"

// TestValidateConfig tests configuration validation
func TestValidateConfig(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		if err := validateConfig(GetDefaults()); err != nil {
			t.Errorf("defaults should validate: %v", err)
		}
	})

	t.Run("BadPort", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Server.Port = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("port 0 should be rejected")
		}
	})

	t.Run("MissingTenantsDir", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Tenants.Dir = ""
		if err := validateConfig(cfg); err == nil {
			t.Error("empty tenants dir should be rejected")
		}
	})

	t.Run("BadLogLevel", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Logging.Level = "verbose"
		if err := validateConfig(cfg); err == nil {
			t.Error("unknown log level should be rejected")
		}
	})

	t.Run("CacheWithoutURL", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Cache.Enabled = true
		cfg.Cache.RedisURL = ""
		if err := validateConfig(cfg); err == nil {
			t.Error("enabled cache without redis_url should be rejected")
		}
	})

	t.Run("DatabaseWithoutURL", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Database.Enabled = true
		if err := validateConfig(cfg); err == nil {
			t.Error("enabled database without database_url should be rejected")
		}
	})
}
