package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-wabridge/core"
)

type RetryProcessor interface {
	ProcessRetryQueue(ctx context.Context) (SweepReport, error)
}

// Sweeper runs ProcessRetryQueue on a fixed interval until stopped.
type Sweeper struct {
	processor RetryProcessor
	interval  time.Duration
	observer  *core.Observer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(processor RetryProcessor, interval time.Duration, logger core.Logger) *Sweeper {
	if interval <= 0 {
		interval = core.DefaultSweepInterval
	}
	return &Sweeper{
		processor: processor,
		interval:  interval,
		observer:  core.NewObserver(loggerName, logger, nil, nil),
	}
}

func (s *Sweeper) Interval() time.Duration {
	if s == nil {
		return 0
	}
	return s.interval
}

// Start launches the loop. The first sweep runs one interval after Start.
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil || s.processor == nil {
		return fmt.Errorf("webhooks: sweeper requires a retry processor")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("webhooks: sweeper already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.run(loopCtx)
	}()
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish or ctx
// to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if ctx == nil {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// RunOnce performs a single sweep synchronously.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	if s == nil || s.processor == nil {
		return SweepReport{}, fmt.Errorf("webhooks: sweeper requires a retry processor")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.processor.ProcessRetryQueue(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.processor.ProcessRetryQueue(ctx); err != nil {
				s.observer.Error(ctx, "retry sweep failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
