// Package ratelimit implements admission control: fixed-window counters keyed
// by (bucket, subject) and stored in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Bucket names for the write-heavy operations.
const (
	BucketPost    = "post"
	BucketComment = "comment"
	BucketVote    = "vote"
	BucketSaved   = "saved_post"
)

// Bucket is one independently exhausted (limit, window) pair.
type Bucket struct {
	Name   string
	Limit  int
	Window time.Duration
}

// FailPolicy selects the behavior when Redis cannot be reached.
type FailPolicy string

const (
	// FailOpen admits the call.
	FailOpen FailPolicy = config.FailPolicyOpen
	// FailClosed rejects the call as rate limited.
	FailClosed FailPolicy = config.FailPolicyClosed
	// FailLocal falls back to an in-process token bucket per key.
	FailLocal FailPolicy = config.FailPolicyLocal
)

const maxLocalKeys = 10000

// Limiter gates operations per (bucket, subject).
type Limiter struct {
	rdb     *redis.Client
	buckets map[string]Bucket
	enabled bool
	policy  FailPolicy
	logger  *slog.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// Options configures a Limiter.
type Options struct {
	Enabled bool
	Policy  FailPolicy
	Buckets []Bucket
	Logger  *slog.Logger
}

// New returns a Limiter. A nil client is treated as an unreachable store.
func New(rdb *redis.Client, opts Options) *Limiter {
	l := &Limiter{
		rdb:     rdb,
		buckets: make(map[string]Bucket, len(opts.Buckets)),
		enabled: opts.Enabled,
		policy:  opts.Policy,
		logger:  opts.Logger,
		local:   make(map[string]*rate.Limiter),
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.policy == "" {
		l.policy = FailLocal
	}
	for _, b := range opts.Buckets {
		l.buckets[b.Name] = b
	}
	return l
}

// NewFromConfig builds the four write buckets from config.
func NewFromConfig(rdb *redis.Client, cfg *config.Config, logger *slog.Logger) *Limiter {
	return New(rdb, Options{
		Logger:  logger,
		Enabled: cfg.RateLimitEnabled,
		Policy:  FailPolicy(cfg.RateLimitFailPolicy),
		Buckets: []Bucket{
			{Name: BucketPost, Limit: cfg.RatePostLimit, Window: cfg.RatePostWindow},
			{Name: BucketComment, Limit: cfg.RateCommentLimit, Window: cfg.RateCommentWindow},
			{Name: BucketVote, Limit: cfg.RateVoteLimit, Window: cfg.RateVoteWindow},
			{Name: BucketSaved, Limit: cfg.RateSavedLimit, Window: cfg.RateSavedWindow},
		},
	})
}

// Bucket returns the configured bucket by name.
func (l *Limiter) Bucket(name string) (Bucket, bool) {
	b, ok := l.buckets[name]
	return b, ok
}

// Allow consumes one unit from the named bucket for subject. It returns a
// RATE_LIMITED AppError when the window is exhausted.
func (l *Limiter) Allow(ctx context.Context, bucket, subject string) error {
	if l == nil || !l.enabled {
		return nil
	}
	b, ok := l.buckets[bucket]
	if !ok {
		return fmt.Errorf("ratelimit: unknown bucket %q", bucket)
	}
	return l.AllowBucket(ctx, b, subject)
}

// AllowBucket is Allow for an ad hoc bucket, used by the HTTP middleware.
func (l *Limiter) AllowBucket(ctx context.Context, b Bucket, subject string) error {
	if l == nil || !l.enabled {
		return nil
	}

	allowed, err := l.hit(ctx, b, subject)
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("ratelimit").Inc()
		switch l.policy {
		case FailOpen:
			l.logger.WarnContext(ctx, "rate limit store unavailable, admitting",
				slog.String("bucket", b.Name), slog.String("error", err.Error()))
			return nil
		case FailClosed:
			observability.RateLimitedTotal.WithLabelValues(b.Name).Inc()
			return models.NewRateLimitedError(b.Name)
		default:
			allowed = l.localAllow(b, subject)
		}
	}
	if !allowed {
		observability.RateLimitedTotal.WithLabelValues(b.Name).Inc()
		return models.NewRateLimitedError(b.Name)
	}
	return nil
}

// hit increments the window counter. The key expires with the window, so no
// pruning is needed.
func (l *Limiter) hit(ctx context.Context, b Bucket, subject string) (bool, error) {
	if l.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := Key(b.Name, subject)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, b.Window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(b.Limit), nil
}

func (l *Limiter) localAllow(b Bucket, subject string) bool {
	key := Key(b.Name, subject)

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local[key]
	if !ok {
		if len(l.local) >= maxLocalKeys {
			l.local = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(b.Window/time.Duration(b.Limit)), b.Limit)
		l.local[key] = lim
	}
	return lim.Allow()
}

// Key is the Redis key of a (bucket, subject) window.
func Key(bucket, subject string) string {
	return fmt.Sprintf("rl:%s:%s", bucket, subject)
}

// Subject identifies the caller: the user id when authenticated, otherwise
// the normalized client address.
func Subject(actor models.Actor) string {
	if actor.UserID != 0 {
		return fmt.Sprintf("user:%d", actor.UserID)
	}
	return "ip:" + NormalizeAddr(actor.ClientAddr)
}

// NormalizeAddr strips ports and zones, unmaps IPv4-in-IPv6 and collapses
// IPv6 addresses to their /64 so one host cannot rotate through its prefix.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")

	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return strings.ToLower(addr)
	}
	ip = ip.WithZone("").Unmap()
	if ip.Is6() {
		if prefix, err := ip.Prefix(64); err == nil {
			return prefix.String()
		}
	}
	return ip.String()
}
