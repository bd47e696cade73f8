// Package bootstrap wires the storage connections, the shared collaborators
// and the services for the commands.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/database"
	"github.com/v1mal/open-scene-engine-sub000/internal/featureflags"
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs the configured schema policy on connect.
	ApplySchema bool
	// SkipReplica keeps every query on the primary.
	SkipReplica bool
}

// Runtime holds the connections and services one process shares.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	ReadDB   *gorm.DB
	Redis    *redis.Client
	Cache    *cache.Store
	Limiter  *ratelimit.Limiter
	Flags    *featureflags.Manager
	Services *service.Services
}

// InitRuntime connects to the database, the optional read replica and Redis,
// then builds the services. Redis being down is not fatal.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: opts.ApplySchema})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var read *gorm.DB
	if !opts.SkipReplica {
		read, err = database.ConnectReplica(cfg)
		if err != nil {
			return nil, fmt.Errorf("read replica connection failed: %w", err)
		}
	}

	rdb := cache.InitRedis(cfg.RedisURL)
	return NewRuntime(cfg, db, read, rdb), nil
}

// NewRuntime builds the services over already-open connections. read and
// rdb may be nil.
func NewRuntime(cfg *config.Config, db, read *gorm.DB, rdb *redis.Client) *Runtime {
	logger := middleware.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{
		Config:  cfg,
		DB:      db,
		ReadDB:  read,
		Redis:   rdb,
		Cache:   cache.NewStore(rdb, cfg.CachePrefix, logger),
		Limiter: ratelimit.NewFromConfig(rdb, cfg, logger),
		Flags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	deps := service.NewDeps(db, read)
	deps.Limiter = rt.Limiter
	deps.Cache = rt.Cache
	deps.Flags = rt.Flags
	deps.Limits = service.LimitsFromConfig(cfg)
	deps.Logger = logger
	rt.Services = service.New(deps)
	return rt
}

// Close releases every connection the runtime opened.
func (r *Runtime) Close() error {
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	for _, db := range []*gorm.DB{r.ReadDB, r.DB} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
