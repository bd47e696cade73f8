package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Store is a read-through cache whose keys embed a global version counter.
// Bumping the counter orphans every entry at once; TTLs reclaim them.
type Store struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// NewStore returns a Store. A nil client yields a pass-through store.
func NewStore(rdb *redis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "cmty"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger}
}

// Enabled reports whether a Redis client is attached.
func (s *Store) Enabled() bool {
	return s != nil && s.rdb != nil
}

func (s *Store) versionKey() string {
	return s.prefix + ":" + versionKeySuffix
}

// Version reads the current version. A missing counter is version 0.
func (s *Store) Version(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	v, err := s.rdb.Get(ctx, s.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump increments the version counter, invalidating every cached entry.
// Failures are logged and swallowed; the TTL bounds staleness.
func (s *Store) Bump(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	v, err := s.rdb.Incr(ctx, s.versionKey()).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "cache version bump failed", slog.String("error", err.Error()))
		return
	}
	observability.CacheVersionBumps.Inc()
	s.logger.DebugContext(ctx, "cache version bumped", slog.Int64("version", v))
}

// Key builds the versioned key for segment.
func (s *Store) Key(version int64, segment string) string {
	return fmt.Sprintf("%s:v%d:%s", s.prefix, version, segment)
}

// Aside fills dest from the cache, or from fetch on a miss. fetch's result
// is stored with ttl. Any Redis error degrades to calling fetch directly.
func (s *Store) Aside(ctx context.Context, segment string, dest any, ttl time.Duration, fetch func() (any, error)) error {
	label := SegmentName(segment)
	if !s.Enabled() {
		observability.CacheRequestsTotal.WithLabelValues(label, "bypass").Inc()
		return fill(dest, fetch)
	}

	version, err := s.Version(ctx)
	if err != nil {
		observability.CacheRequestsTotal.WithLabelValues(label, "error").Inc()
		s.logger.WarnContext(ctx, "cache version read failed", slog.String("error", err.Error()))
		return fill(dest, fetch)
	}
	key := s.Key(version, segment)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(raw, dest); jerr == nil {
			observability.CacheRequestsTotal.WithLabelValues(label, "hit").Inc()
			return nil
		}
		observability.CacheRequestsTotal.WithLabelValues(label, "error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheRequestsTotal.WithLabelValues(label, "miss").Inc()
	default:
		observability.CacheRequestsTotal.WithLabelValues(label, "error").Inc()
		s.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return fill(dest, fetch)
	}

	value, err := fetch()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", segment, err)
	}
	if err := s.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return json.Unmarshal(payload, dest)
}

func fill(dest any, fetch func() (any, error)) error {
	value, err := fetch()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}
