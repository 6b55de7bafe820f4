package autoapply

import (
	"context"
	"fmt"
	"sync"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/logging"
)

// Runner executes session automations as bounded background goroutines. The
// bound keeps one busy tenant from exhausting the browser capacity of the
// whole process.
type Runner struct {
	sem             chan struct{}
	wg              sync.WaitGroup
	baseCtx         context.Context
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
	logger          logging.Logger

	mu      sync.Mutex
	stopped bool
}

// NewRunner creates a runner with the configured concurrency bound
func NewRunner(cfg *config.Config) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:             make(chan struct{}, cfg.Runner.MaxConcurrentSessions),
		baseCtx:         ctx,
		cancel:          cancel,
		shutdownTimeout: cfg.Runner.ShutdownTimeout,
		logger:          logging.GetGlobalLogger(),
	}
}

// Launch starts fn as a background automation goroutine. Returns an error
// when the runner is shutting down or already at capacity; it never blocks
// the caller.
func (r *Runner) Launch(sessionID string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("runner is shutting down")
	}
	r.mu.Unlock()

	select {
	case r.sem <- struct{}{}:
	default:
		return fmt.Errorf("maximum concurrent sessions reached")
	}

	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()

		r.logger.Debug("Session automation goroutine started", map[string]interface{}{
			"session_id": sessionID,
		})
		fn(r.baseCtx)
		r.logger.Debug("Session automation goroutine finished", map[string]interface{}{
			"session_id": sessionID,
		})
	}()

	return nil
}

// Stop cancels all running automations and waits for them to wind down,
// up to the configured shutdown timeout
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("All session automations stopped")
		return nil
	case <-time.After(r.shutdownTimeout):
		return fmt.Errorf("timed out waiting for session automations to stop")
	}
}
