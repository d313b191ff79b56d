package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockSweeper is a mock implementation of Sweeper for testing.
type mockSweeper struct {
	sweepCount  atomic.Int64
	purgedCount int64
	err         error
}

func (m *mockSweeper) Sweep(ctx context.Context) (int64, error) {
	m.sweepCount.Add(1)
	return m.purgedCount, m.err
}

func TestSweepJob_RunsAtInterval(t *testing.T) {
	sweeper := &mockSweeper{purgedCount: 3}

	job := NewSweepJob(sweeper, 50*time.Millisecond, zerolog.Nop())
	job.Start()

	// Wait for initial sweep + at least one interval
	time.Sleep(120 * time.Millisecond)

	job.Stop()

	// Should have run at least twice (initial + interval)
	count := sweeper.sweepCount.Load()
	if count < 2 {
		t.Errorf("expected at least 2 sweeps, got %d", count)
	}
}

func TestSweepJob_Stop(t *testing.T) {
	sweeper := &mockSweeper{}

	job := NewSweepJob(sweeper, time.Hour, zerolog.Nop())
	job.Start()

	// Should complete quickly
	done := make(chan struct{})
	go func() {
		job.Stop()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(time.Second):
		t.Error("Stop did not return in time")
	}
}

func TestSweepJob_ContinuesOnError(t *testing.T) {
	sweeper := &mockSweeper{
		err: context.DeadlineExceeded,
	}

	job := NewSweepJob(sweeper, 30*time.Millisecond, zerolog.Nop())
	job.Start()

	// Wait for multiple sweep attempts
	time.Sleep(100 * time.Millisecond)

	job.Stop()

	// Should have attempted multiple sweeps despite errors
	count := sweeper.sweepCount.Load()
	if count < 2 {
		t.Errorf("expected at least 2 sweep attempts, got %d", count)
	}
}
