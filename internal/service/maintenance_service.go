package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"

	"golang.org/x/sync/errgroup"
)

// sampleLimit bounds the rows each integrity check reports.
const sampleLimit = 100

// IntegrityReport lists drifted rows found by one reconcile run. It is
// diagnostic; nothing in it has been corrected.
type IntegrityReport struct {
	RunID          string                     `json:"run_id" yaml:"run_id"`
	StartedAt      time.Time                  `json:"started_at" yaml:"started_at"`
	Duration       time.Duration              `json:"duration" yaml:"duration"`
	PostScore      []repository.DriftRow      `json:"post_score" yaml:"post_score"`
	CommentScore   []repository.DriftRow      `json:"comment_score" yaml:"comment_score"`
	CommentCount   []repository.DriftRow      `json:"comment_count" yaml:"comment_count"`
	ChildCount     []repository.DriftRow      `json:"child_count" yaml:"child_count"`
	DuplicateVotes []repository.DuplicateVote `json:"duplicate_votes" yaml:"duplicate_votes"`
	OrphanComments []uint                     `json:"orphan_comments" yaml:"orphan_comments"`
}

// Total is the number of findings across all checks.
func (r *IntegrityReport) Total() int {
	return len(r.PostScore) + len(r.CommentScore) + len(r.CommentCount) +
		len(r.ChildCount) + len(r.DuplicateVotes) + len(r.OrphanComments)
}

// Clean reports whether no check found drift.
func (r *IntegrityReport) Clean() bool { return r.Total() == 0 }

// CleanupReport counts the rows each cleanup step touched.
type CleanupReport struct {
	RunID            string        `json:"run_id" yaml:"run_id"`
	StartedAt        time.Time     `json:"started_at" yaml:"started_at"`
	Duration         time.Duration `json:"duration" yaml:"duration"`
	OrphanEvents     int64         `json:"orphan_events" yaml:"orphan_events"`
	OrphanSavedPosts int64         `json:"orphan_saved_posts" yaml:"orphan_saved_posts"`
	OrphanReports    int64         `json:"orphan_reports" yaml:"orphan_reports"`
	OrphanVotes      int64         `json:"orphan_votes" yaml:"orphan_votes"`
	ExpiredBans      int64         `json:"expired_bans" yaml:"expired_bans"`
}

// MaintenanceService exposes the idempotent maintenance entry points. Both
// are safe to run concurrently with normal traffic.
type MaintenanceService struct {
	integrity repository.IntegrityRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewMaintenanceService(d Deps) *MaintenanceService {
	return &MaintenanceService{integrity: d.Integrity, logger: d.logger(), now: d.clock()}
}

func (s *MaintenanceService) runContext(ctx context.Context) (context.Context, string) {
	id := observability.ExtractCorrelationID(ctx)
	if id == "" {
		id = observability.GenerateCorrelationID()
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx, id
}

// ReconcileAggregates runs every drift check concurrently and publishes
// the counts as gauges.
func (s *MaintenanceService) ReconcileAggregates(ctx context.Context) (report *IntegrityReport, err error) {
	ctx, end := observability.StartOperation(ctx, "maintenance", "ReconcileAggregates")
	defer func() { end(err) }()

	ctx, runID := s.runContext(ctx)
	report = &IntegrityReport{RunID: runID, StartedAt: s.now()}
	start := time.Now()

	drift := []struct {
		name  string
		check func(context.Context, int) ([]repository.DriftRow, error)
		dest  *[]repository.DriftRow
	}{
		{"post_score", s.integrity.PostScoreDrift, &report.PostScore},
		{"comment_score", s.integrity.CommentScoreDrift, &report.CommentScore},
		{"comment_count", s.integrity.CommentCountDrift, &report.CommentCount},
		{"child_count", s.integrity.ChildCountDrift, &report.ChildCount},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range drift {
		d := d
		g.Go(func() error {
			rows, err := d.check(gctx, sampleLimit)
			if err != nil {
				return fmt.Errorf("%s check: %w", d.name, err)
			}
			*d.dest = rows
			return nil
		})
	}
	g.Go(func() error {
		rows, err := s.integrity.DuplicateVotes(gctx, sampleLimit)
		if err != nil {
			return fmt.Errorf("duplicate_votes check: %w", err)
		}
		report.DuplicateVotes = rows
		return nil
	})
	g.Go(func() error {
		ids, err := s.integrity.OrphanComments(gctx, sampleLimit)
		if err != nil {
			return fmt.Errorf("orphan_comments check: %w", err)
		}
		report.OrphanComments = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		observability.MaintenanceRuns.WithLabelValues("reconcile", "error").Inc()
		s.logger.ErrorContext(ctx, "integrity check failed",
			slog.String("run_id", runID), slog.String("error", err.Error()))
		return nil, err
	}
	report.Duration = time.Since(start)

	gauges := map[string]int{
		"post_score":      len(report.PostScore),
		"comment_score":   len(report.CommentScore),
		"comment_count":   len(report.CommentCount),
		"child_count":     len(report.ChildCount),
		"duplicate_votes": len(report.DuplicateVotes),
		"orphan_comments": len(report.OrphanComments),
	}
	attrs := []any{slog.String("run_id", runID), slog.Duration("duration", report.Duration)}
	for name, n := range gauges {
		observability.IntegrityDrift.WithLabelValues(name).Set(float64(n))
		attrs = append(attrs, slog.Int(name, n))
	}
	observability.MaintenanceRuns.WithLabelValues("reconcile", "ok").Inc()

	if report.Clean() {
		s.logger.InfoContext(ctx, "integrity check clean", attrs...)
	} else {
		s.logger.WarnContext(ctx, "integrity drift detected", attrs...)
	}
	return report, nil
}

// CleanupOrphans deletes rows whose parent is gone and expires bans. Each
// step is a single statement; a second run finds nothing to do.
func (s *MaintenanceService) CleanupOrphans(ctx context.Context) (report *CleanupReport, err error) {
	ctx, end := observability.StartOperation(ctx, "maintenance", "CleanupOrphans")
	defer func() { end(err) }()

	ctx, runID := s.runContext(ctx)
	report = &CleanupReport{RunID: runID, StartedAt: s.now()}
	start := time.Now()

	steps := []struct {
		name string
		run  func(context.Context) (int64, error)
		dest *int64
	}{
		{"events", s.integrity.DeleteOrphanEvents, &report.OrphanEvents},
		{"saved_posts", s.integrity.DeleteOrphanSavedPosts, &report.OrphanSavedPosts},
		{"reports", s.integrity.DeleteOrphanReports, &report.OrphanReports},
		{"votes", s.integrity.DeleteOrphanVotes, &report.OrphanVotes},
		{"bans", s.integrity.ExpireBans, &report.ExpiredBans},
	}
	for _, step := range steps {
		n, err := step.run(ctx)
		if err != nil {
			observability.MaintenanceRuns.WithLabelValues("cleanup", "error").Inc()
			s.logger.ErrorContext(ctx, "cleanup step failed",
				slog.String("run_id", runID), slog.String("step", step.name), slog.String("error", err.Error()))
			return nil, fmt.Errorf("cleanup %s: %w", step.name, err)
		}
		*step.dest = n
	}
	report.Duration = time.Since(start)
	observability.MaintenanceRuns.WithLabelValues("cleanup", "ok").Inc()

	s.logger.InfoContext(ctx, "cleanup finished",
		slog.String("run_id", runID),
		slog.Int64("orphan_events", report.OrphanEvents),
		slog.Int64("orphan_saved_posts", report.OrphanSavedPosts),
		slog.Int64("orphan_reports", report.OrphanReports),
		slog.Int64("orphan_votes", report.OrphanVotes),
		slog.Int64("expired_bans", report.ExpiredBans),
		slog.Duration("duration", report.Duration))
	return report, nil
}
