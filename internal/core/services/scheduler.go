package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// ReconcileRun is the outcome of one scheduled reconciliation pass.
type ReconcileRun struct {
	StartedAt time.Time
	EndedAt   time.Time
	Report    domain.ReconcileReport
	Err       error
}

// Scheduler re-runs reconciliation in the background while a long-lived
// front end is serving, so catalog edits get re-embedded eventually.
type Scheduler struct {
	ingest   driving.IngestService
	interval time.Duration

	mu      sync.Mutex
	running bool
	busy    bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	last    *ReconcileRun
}

// NewScheduler creates a scheduler that reconciles every interval.
func NewScheduler(ingest driving.IngestService, interval time.Duration) *Scheduler {
	return &Scheduler{
		ingest:   ingest,
		interval: interval,
	}
}

// Start runs one pass immediately, then one per interval. It blocks until
// Stop is called or ctx is cancelled. A non-positive interval disables it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// Stop ends the loop and waits for a pass in progress to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// LastRun returns the most recent completed pass, or nil.
func (s *Scheduler) LastRun() *ReconcileRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	run := *s.last
	return &run
}

// trigger starts a pass unless one is still in progress.
func (s *Scheduler) trigger(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		logger.Debug("scheduler: previous reconcile still running, skipping")
		return
	}
	s.busy = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		run := &ReconcileRun{StartedAt: time.Now()}
		run.Report, run.Err = s.ingest.Reconcile(ctx)
		run.EndedAt = time.Now()

		if run.Err != nil {
			logger.Warn("scheduler: reconcile failed: %v", run.Err)
		} else if n := run.Report.ProductsEmbedded + run.Report.ChunksEmbedded; n > 0 {
			logger.Info("scheduler: embedded %d stale entities", n)
		}

		s.mu.Lock()
		s.busy = false
		s.last = run
		s.mu.Unlock()
	}()
}
