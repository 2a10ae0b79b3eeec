package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// ReconcileScheduler periodically rebuilds daily summaries from raw logs so
// that increments lost to failed upserts are eventually repaired.
type ReconcileScheduler struct {
	summaries *SummaryService
	interval  time.Duration
	delay     time.Duration // wait before the first run
	stopChan  chan struct{}
	done      chan struct{}
	running   bool
	mu        sync.Mutex
	// keeps cycles from overlapping
	reconciling sync.Mutex
}

// NewReconcileScheduler creates a new reconcile scheduler
func NewReconcileScheduler(summaries *SummaryService, interval time.Duration) *ReconcileScheduler {
	return &ReconcileScheduler{
		summaries: summaries,
		interval:  interval,
		delay:     30 * time.Second,
	}
}

// Start begins the periodic reconciliation. A non-positive interval disables it.
// A stopped scheduler can be started again.
func (s *ReconcileScheduler) Start() {
	s.mu.Lock()
	if s.running || s.interval <= 0 {
		s.mu.Unlock()
		return
	}
	s.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopChan = stop
	s.done = done
	s.mu.Unlock()

	log.Printf("[Reconcile] Starting with interval: %v", s.interval)

	go s.loop(stop, done)
}

func (s *ReconcileScheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// let the server settle before the first pass
	select {
	case <-time.After(s.delay):
		s.runOnce(stop)
	case <-stop:
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(stop)
		case <-stop:
			log.Println("[Reconcile] Stopping")
			return
		}
	}
}

// Stop stops the periodic reconciliation and waits for the loop to exit
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
}

// RunOnce rebuilds the summaries unless a previous cycle is still running.
// It reports whether a rebuild was attempted.
func (s *ReconcileScheduler) RunOnce() bool {
	s.mu.Lock()
	stop := s.stopChan
	s.mu.Unlock()
	return s.runOnce(stop)
}

// runOnce cancels the rebuild when stop is closed. A nil stop never cancels.
func (s *ReconcileScheduler) runOnce(stop <-chan struct{}) bool {
	if !s.reconciling.TryLock() {
		log.Println("[Reconcile] Previous cycle still running, skipping this cycle")
		return false
	}
	defer s.reconciling.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := s.summaries.Rebuild(ctx)
	if err != nil {
		log.Printf("[Reconcile] Rebuild failed: %v", err)
		return true
	}
	if result.Corrected > 0 {
		log.Printf("[Reconcile] Corrected %d of %d daily summaries (%d logs scanned)", result.Corrected, result.Days, result.LogsScanned)
	}
	return true
}
