package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults tests the configuration defaults
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "ride.notices", cfg.RabbitMQ.Exchange)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTLIdempotency)
	assert.True(t, cfg.Features.EnableNotices)
}

// TestLoad_Overrides tests reading values from the environment
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_CONNECTIONS", "40")
	t.Setenv("ENABLE_NOTICES", "false")
	t.Setenv("CACHE_TTL_PLACES", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 40, cfg.Database.MaxConnections)
	assert.False(t, cfg.Features.EnableNotices)
	assert.Equal(t, time.Minute, cfg.Cache.TTLPlaces)
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", Env: "development"},
			Store:    StoreConfig{Driver: "postgres"},
			Database: DatabaseConfig{Host: "localhost", Name: "ride_pooling"},
			Redis:    RedisConfig{Host: "localhost"},
			RabbitMQ: RabbitMQConfig{Exchange: "ride.notices"},
			JWT:      JWTConfig{Secret: "s3cret"},
			Features: FeatureFlags{EnableNotices: true, EnableIdempotency: true},
		}
	}

	tests := []struct {
		name    string
		mod     func(*Config)
		wantErr bool
	}{
		{name: "valid", mod: func(c *Config) {}},
		{name: "memory store needs no database", mod: func(c *Config) { c.Store.Driver = "memory"; c.Database.Host = "" }},
		{name: "unknown store", mod: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: true},
		{name: "missing db host", mod: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "idempotency without redis", mod: func(c *Config) { c.Redis.Host = "" }, wantErr: true},
		{name: "redis optional without idempotency", mod: func(c *Config) {
			c.Redis.Host = ""
			c.Features.EnableIdempotency = false
		}},
		{name: "default secret in production", mod: func(c *Config) {
			c.Server.Env = "production"
			c.JWT.Secret = "your_jwt_secret_key_here"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mod(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
