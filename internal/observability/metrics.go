package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records storage latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "community_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesTotal counts ledger mutations by target and branch.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_votes_total",
		Help: "Vote ledger mutations by target type and outcome",
	}, []string{"target", "outcome"})

	// CommentsCreatedTotal counts comments by resulting depth.
	CommentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_comments_created_total",
		Help: "Comments created by depth",
	}, []string{"depth"})

	// CommentDepthRejections counts replies refused by the nesting cap.
	CommentDepthRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "community_comment_depth_rejections_total",
		Help: "Replies rejected because the parent was at the maximum depth",
	})

	// ModerationActionsTotal counts moderation transitions by action.
	ModerationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_moderation_actions_total",
		Help: "Moderation state transitions by action",
	}, []string{"action"})

	// RateLimitedTotal counts admission rejections by bucket.
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_rate_limited_total",
		Help: "Calls rejected by admission control",
	}, []string{"bucket"})

	// CacheRequestsTotal counts read-through lookups by result (hit, miss, bypass, error).
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_cache_requests_total",
		Help: "Read-through cache lookups by segment and result",
	}, []string{"segment", "result"})

	// CacheVersionBumps counts global invalidations.
	CacheVersionBumps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "community_cache_version_bumps_total",
		Help: "Cache version counter increments",
	})

	// FeedPageLatency records feed page latency by sort mode.
	FeedPageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "community_feed_page_latency_seconds",
		Help:    "Feed page query latency by sort mode",
		Buckets: prometheus.DefBuckets,
	}, []string{"sort"})

	// CursorRejections counts cursors that failed validation and restarted at page 1.
	CursorRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_cursor_rejections_total",
		Help: "Cursors ignored because they were malformed or for another sort",
	}, []string{"reason"})

	// IntegrityDrift is the number of drifted rows found by the last check.
	IntegrityDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "community_integrity_drift_rows",
		Help: "Rows whose denormalized counters drifted, by check",
	}, []string{"check"})

	// MaintenanceRuns counts maintenance job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_maintenance_runs_total",
		Help: "Maintenance job runs by job and result",
	}, []string{"job", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
