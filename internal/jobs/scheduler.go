// Package jobs runs the periodic maintenance passes in the background.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/service"
)

// Maintainer is the part of the maintenance service the scheduler drives.
type Maintainer interface {
	ReconcileAggregates(ctx context.Context) (*service.IntegrityReport, error)
	CleanupOrphans(ctx context.Context) (*service.CleanupReport, error)
}

// ErrRunning is returned by Start when the scheduler is already running.
var ErrRunning = errors.New("scheduler is already running")

// Scheduler runs cleanup and then reconciliation every interval. Both
// passes are idempotent, so overlapping processes are harmless.
type Scheduler struct {
	m        Maintainer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler returns a stopped scheduler. Each pass is bounded by the
// interval itself.
func NewScheduler(m Maintainer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{m: m, interval: interval, timeout: interval, logger: logger}
}

// Start launches the loop. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	s.running = true
	s.done = make(chan struct{})

	s.logger.Info("maintenance scheduler starting", slog.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.loop(ctx, s.done)
	return nil
}

// Stop signals the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one cleanup pass followed by one reconciliation pass.
// Failures are logged; the next tick tries again.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.m.CleanupOrphans(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled cleanup failed", slog.String("error", err.Error()))
	}
	if _, err := s.m.ReconcileAggregates(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled reconcile failed", slog.String("error", err.Error()))
	}
}
