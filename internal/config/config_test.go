package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode
			c.JWTSecret = "secure-secret-at-least-32-chars-long"
			c.DBPassword = "secure-password"

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateLimits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero vote limit", func(c *Config) { c.RateVoteLimit = 0 }},
		{"zero comment window", func(c *Config) { c.RateCommentWindow = 0 }},
		{"feed max above 50", func(c *Config) { c.FeedMaxLimit = 100 }},
		{"feed default above max", func(c *Config) { c.FeedDefaultLimit = 60 }},
		{"no comment depth", func(c *Config) { c.CommentMaxDepth = 0 }},
		{"unknown fail policy", func(c *Config) { c.RateLimitFailPolicy = "maybe" }},
		{"maintenance too frequent", func(c *Config) { c.MaintenanceInterval = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, Defaults().Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("RATE_VOTE_LIMIT", "7")
	t.Setenv("RATE_VOTE_WINDOW", "2m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, 7, cfg.RateVoteLimit)
	assert.Equal(t, 2*time.Minute, cfg.RateVoteWindow)
	assert.Equal(t, 6, cfg.CommentMaxDepth)
	assert.False(t, cfg.RateLimitEnabled)
}
