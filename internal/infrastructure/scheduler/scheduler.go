package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalConfig configures a job that runs on a fixed interval
type IntervalConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between two runs
	Interval time.Duration

	// RunOnStart runs the job once immediately after Start
	RunOnStart bool

	// Timeout bounds a single run
	Timeout time.Duration
}

func (c IntervalConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// intervalScheduler owns the goroutine lifecycle shared by the ledger jobs.
// run is called at most once at a time.
type intervalScheduler struct {
	name   string
	config IntervalConfig
	run    func(ctx context.Context)
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	runMu     sync.Mutex
	isRunning bool
}

func newIntervalScheduler(name string, config IntervalConfig, log *zap.Logger, run func(ctx context.Context)) *intervalScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &intervalScheduler{
		name:   name,
		config: config,
		run:    run,
		logger: log,
	}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *intervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Scheduler is disabled", zap.String("scheduler", s.name))
		return nil
	}
	if err := s.config.validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("Scheduler started",
		zap.String("scheduler", s.name),
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run until ctx expires
func (s *intervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully", zap.String("scheduler", s.name))
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out", zap.String("scheduler", s.name))
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *intervalScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Trigger runs the job once in the background
func (s *intervalScheduler) Trigger(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.execute(ctx)
	}()
	return nil
}

func (s *intervalScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.execute(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Scheduler loop stopping", zap.String("scheduler", s.name))
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

func (s *intervalScheduler) execute(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled job panicked",
				zap.String("scheduler", s.name),
				zap.Any("panic", r),
			)
		}
	}()

	s.run(runCtx)
}
