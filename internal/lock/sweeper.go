package lock

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is anything that can purge expired lease records.
type Sweeper interface {
	// Sweep removes expired records and returns how many were purged.
	Sweep(ctx context.Context) (int64, error)
}

// SweepJob periodically purges expired lease records to bound table growth
// and keep diagnostic listings clean. It is not load-bearing: a lease that
// expired is already invisible to acquire, heartbeat, and query, whether or
// not the physical record is gone. Safe to run next to everything else:
// anything it deletes is by definition already inactive.
type SweepJob struct {
	sweeper  Sweeper
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweepJob creates a sweep job that runs at the specified interval.
func NewSweepJob(sweeper Sweeper, interval time.Duration, logger zerolog.Logger) *SweepJob {
	return &SweepJob{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With().Str("component", "lock-sweeper").Logger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the sweep job in a background goroutine.
func (j *SweepJob) Start() {
	go j.run()
}

// Stop signals the sweep job to stop and waits for it to finish.
func (j *SweepJob) Stop() {
	close(j.stopCh)
	<-j.doneCh
}

func (j *SweepJob) run() {
	defer close(j.doneCh)

	// Run an initial sweep
	j.runSweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			j.logger.Info().Msg("sweep job stopped")
			return
		case <-ticker.C:
			j.runSweep()
		}
	}
}

func (j *SweepJob) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to sweep expired locks")
		return
	}

	if count > 0 {
		j.logger.Info().
			Int64("purgedCount", count).
			Msg("swept expired locks")
	}
}
