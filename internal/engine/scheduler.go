package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feltsync/internal/config"
	"feltsync/internal/logging"
)

// Scheduler drives the orchestrator: one cycle at startup, then periodic
// cycles on the configured interval, plus immediate cycles on Trigger and on
// mutations enqueued while online.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	log      *slog.Logger
	trigger  chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler constructs a scheduler over the orchestrator.
func NewScheduler(orch *Orchestrator, cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		orch:     orch,
		interval: time.Duration(cfg.Sync.CycleInterval) * time.Second,
		log:      logging.NewComponentLogger(logger, "scheduler"),
		trigger:  make(chan struct{}, 1),
	}
	orch.setEnqueueHook(s.Trigger)
	return s
}

// Start begins background cycling.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Stop terminates background cycling and waits for the in-flight cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Trigger requests an immediate cycle. Requests arriving while one is queued
// or running collapse into a single extra cycle.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		case <-s.trigger:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.orch.RunCycle(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrCycleRunning) {
			return
		}
		s.log.Error("sync cycle failed", logging.Error(err))
	}
}
