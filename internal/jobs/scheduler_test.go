package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaintainer struct {
	mu        sync.Mutex
	calls     []string
	failClean bool
}

func (f *fakeMaintainer) ReconcileAggregates(ctx context.Context) (*service.IntegrityReport, error) {
	f.record("reconcile")
	return &service.IntegrityReport{}, nil
}

func (f *fakeMaintainer) CleanupOrphans(ctx context.Context) (*service.CleanupReport, error) {
	f.record("cleanup")
	if f.failClean {
		return nil, errors.New("storage down")
	}
	return &service.CleanupReport{}, nil
}

func (f *fakeMaintainer) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeMaintainer) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestScheduler_RunOnceOrder(t *testing.T) {
	m := &fakeMaintainer{}
	NewScheduler(m, time.Minute, nil).RunOnce(context.Background())
	assert.Equal(t, []string{"cleanup", "reconcile"}, m.snapshot())
}

func TestScheduler_CleanupFailureStillReconciles(t *testing.T) {
	m := &fakeMaintainer{failClean: true}
	NewScheduler(m, time.Minute, nil).RunOnce(context.Background())
	assert.Equal(t, []string{"cleanup", "reconcile"}, m.snapshot())
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	m := &fakeMaintainer{}
	s := NewScheduler(m, 10*time.Millisecond, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrRunning)

	require.Eventually(t, func() bool { return len(m.snapshot()) >= 4 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	n := len(m.snapshot())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(m.snapshot()), "no passes after Stop returns")
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	m := &fakeMaintainer{}
	s := NewScheduler(m, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return len(m.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	assert.Error(t, NewScheduler(&fakeMaintainer{}, 0, nil).Start(context.Background()))
}
