package utility

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the learning cycle periodically in the background.
//
// Thread safety: all public methods are safe for concurrent use. The
// running state is protected by a mutex so Start/Stop cannot race.
type Scheduler struct {
	interval time.Duration
	learner  *Learner
	project  string
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the time between learning cycles. Default is 24h.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = interval }
}

// WithProject restricts scheduled cycles to one project.
func WithProject(project string) SchedulerOption {
	return func(s *Scheduler) { s.project = project }
}

// NewScheduler creates a scheduler. It does not start automatically;
// call Start.
func NewScheduler(learner *Learner, logger *zap.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if learner == nil {
		return nil, fmt.Errorf("learner cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		interval: 24 * time.Hour,
		learner:  learner,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins periodic learning cycles. Returns an error if the
// scheduler is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.logger.Info("learning scheduler started", zap.Duration("interval", s.interval))
	go s.run()
	return nil
}

// Stop signals the background loop to exit. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("learning scheduler stopped")
}

func (s *Scheduler) run() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler goroutine panicked",
				zap.Any("panic", r), zap.Stack("stack"))
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle()
		case <-s.stopCh:
			return
		}
	}
}

// runCycle executes one scheduled cycle. Errors are logged, never
// propagated: a failed cycle must not stop the scheduler.
func (s *Scheduler) runCycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("learning cycle panicked, scheduler continues",
				zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.learner.Run(ctx, s.project); err != nil {
		s.logger.Error("scheduled learning cycle failed", zap.Error(err))
	}
}
