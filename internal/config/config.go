// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Rate-limit failure policies applied when Redis cannot be reached.
const (
	FailPolicyOpen   = "open"
	FailPolicyClosed = "closed"
	FailPolicyLocal  = "local"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTIssuer      string `mapstructure:"JWT_ISSUER"`
	JWTAudience    string `mapstructure:"JWT_AUDIENCE"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode   string `mapstructure:"DB_SCHEMA_MODE"`
	DBReadHost     string `mapstructure:"DB_READ_HOST"`
	DBReadPort     string `mapstructure:"DB_READ_PORT"`
	DBReadUser     string `mapstructure:"DB_READ_USER"`
	DBReadPassword string `mapstructure:"DB_READ_PASSWORD"`

	DBMaxOpenConns           int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	RateLimitEnabled    bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitFailPolicy string        `mapstructure:"RATE_LIMIT_FAIL_POLICY"`
	RatePostLimit       int           `mapstructure:"RATE_POST_LIMIT"`
	RatePostWindow      time.Duration `mapstructure:"RATE_POST_WINDOW"`
	RateCommentLimit    int           `mapstructure:"RATE_COMMENT_LIMIT"`
	RateCommentWindow   time.Duration `mapstructure:"RATE_COMMENT_WINDOW"`
	RateVoteLimit       int           `mapstructure:"RATE_VOTE_LIMIT"`
	RateVoteWindow      time.Duration `mapstructure:"RATE_VOTE_WINDOW"`
	RateSavedLimit      int           `mapstructure:"RATE_SAVED_LIMIT"`
	RateSavedWindow     time.Duration `mapstructure:"RATE_SAVED_WINDOW"`

	CachePrefix       string        `mapstructure:"CACHE_PREFIX"`
	FeedCacheTTL      time.Duration `mapstructure:"FEED_CACHE_TTL"`
	CommunityCacheTTL time.Duration `mapstructure:"COMMUNITY_CACHE_TTL"`

	FeedDefaultLimit  int `mapstructure:"FEED_DEFAULT_LIMIT"`
	FeedMaxLimit      int `mapstructure:"FEED_MAX_LIMIT"`
	CommentMaxDepth   int `mapstructure:"COMMENT_MAX_DEPTH"`
	CommentMaxPerPage int `mapstructure:"COMMENT_MAX_PER_PAGE"`
	CommentMaxServed  int `mapstructure:"COMMENT_MAX_SERVED"`

	MaintenanceEnabled  bool          `mapstructure:"MAINTENANCE_ENABLED"`
	MaintenanceInterval time.Duration `mapstructure:"MAINTENANCE_INTERVAL"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults cover a bare checkout.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults(env)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(env string) {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "community")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("JWT_ISSUER", "")
	viper.SetDefault("JWT_AUDIENCE", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "feed_cache=on,search=on")
	viper.SetDefault("APP_ENV", "development")

	// Limits stay on outside of local development so staging mirrors prod.
	viper.SetDefault("RATE_LIMIT_ENABLED", env != "development" && env != "test")
	viper.SetDefault("RATE_LIMIT_FAIL_POLICY", FailPolicyLocal)
	viper.SetDefault("RATE_POST_LIMIT", 5)
	viper.SetDefault("RATE_POST_WINDOW", "10m")
	viper.SetDefault("RATE_COMMENT_LIMIT", 20)
	viper.SetDefault("RATE_COMMENT_WINDOW", "1m")
	viper.SetDefault("RATE_VOTE_LIMIT", 60)
	viper.SetDefault("RATE_VOTE_WINDOW", "1m")
	viper.SetDefault("RATE_SAVED_LIMIT", 30)
	viper.SetDefault("RATE_SAVED_WINDOW", "1m")

	viper.SetDefault("CACHE_PREFIX", "cmty")
	viper.SetDefault("FEED_CACHE_TTL", "30s")
	viper.SetDefault("COMMUNITY_CACHE_TTL", "60s")

	viper.SetDefault("FEED_DEFAULT_LIMIT", 20)
	viper.SetDefault("FEED_MAX_LIMIT", 50)
	viper.SetDefault("COMMENT_MAX_DEPTH", 6)
	viper.SetDefault("COMMENT_MAX_PER_PAGE", 50)
	viper.SetDefault("COMMENT_MAX_SERVED", 500)

	viper.SetDefault("MAINTENANCE_ENABLED", true)
	viper.SetDefault("MAINTENANCE_INTERVAL", "15m")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.RateLimitFailPolicy = strings.ToLower(strings.TrimSpace(c.RateLimitFailPolicy))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the config targets a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
		if !c.RateLimitEnabled {
			log.Println("WARNING: RATE_LIMIT_ENABLED is false in production.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	switch c.RateLimitFailPolicy {
	case "", FailPolicyOpen, FailPolicyClosed, FailPolicyLocal:
	default:
		return fmt.Errorf("RATE_LIMIT_FAIL_POLICY must be one of open, closed, local (got %q)", c.RateLimitFailPolicy)
	}

	buckets := []struct {
		name   string
		limit  int
		window time.Duration
	}{
		{"POST", c.RatePostLimit, c.RatePostWindow},
		{"COMMENT", c.RateCommentLimit, c.RateCommentWindow},
		{"VOTE", c.RateVoteLimit, c.RateVoteWindow},
		{"SAVED", c.RateSavedLimit, c.RateSavedWindow},
	}
	for _, b := range buckets {
		if b.limit <= 0 || b.window <= 0 {
			return fmt.Errorf("RATE_%s_LIMIT and RATE_%s_WINDOW must be positive", b.name, b.name)
		}
	}

	if c.FeedMaxLimit <= 0 || c.FeedMaxLimit > 50 {
		return errors.New("FEED_MAX_LIMIT must be between 1 and 50")
	}
	if c.FeedDefaultLimit <= 0 || c.FeedDefaultLimit > c.FeedMaxLimit {
		return errors.New("FEED_DEFAULT_LIMIT must be between 1 and FEED_MAX_LIMIT")
	}
	if c.CommentMaxDepth < 1 {
		return errors.New("COMMENT_MAX_DEPTH must be at least 1")
	}
	if c.CommentMaxPerPage <= 0 || c.CommentMaxServed <= 0 {
		return errors.New("COMMENT_MAX_PER_PAGE and COMMENT_MAX_SERVED must be positive")
	}
	if c.MaintenanceEnabled && c.MaintenanceInterval < time.Minute {
		return errors.New("MAINTENANCE_INTERVAL must be at least 1m")
	}

	return nil
}

// Defaults returns a Config populated with development defaults. Tests and
// tools that do not read files start from it.
func Defaults() *Config {
	return &Config{
		JWTSecret:                "test-secret-test-secret-test-secret",
		Port:                     "8375",
		DBSSLMode:                "disable",
		DBSchemaMode:             "auto",
		DBMaxOpenConns:           25,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 5,
		RedisURL:                 "localhost:6379",
		FeatureFlags:             "feed_cache=on,search=on",
		Env:                      "test",
		RateLimitEnabled:         true,
		RateLimitFailPolicy:      FailPolicyLocal,
		RatePostLimit:            5,
		RatePostWindow:           10 * time.Minute,
		RateCommentLimit:         20,
		RateCommentWindow:        time.Minute,
		RateVoteLimit:            60,
		RateVoteWindow:           time.Minute,
		RateSavedLimit:           30,
		RateSavedWindow:          time.Minute,
		CachePrefix:              "cmty",
		FeedCacheTTL:             30 * time.Second,
		CommunityCacheTTL:        60 * time.Second,
		FeedDefaultLimit:         20,
		FeedMaxLimit:             50,
		CommentMaxDepth:          6,
		CommentMaxPerPage:        50,
		CommentMaxServed:         500,
		MaintenanceEnabled:       true,
		MaintenanceInterval:      15 * time.Minute,
		TracingExporter:          "stdout",
	}
}
