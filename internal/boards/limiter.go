package boards

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"applypilot/internal/config"
	"applypilot/internal/logging"
	"applypilot/internal/logging/types"
)

// boardState tracks rate limiting and failure history for one board
type boardState struct {
	limiter     *rate.Limiter
	failures    int
	pausedUntil time.Time
	lastSeen    time.Time
}

// Limiter throttles navigations per board and pauses a board after repeated
// consecutive failures so a broken or hostile site doesn't burn the whole
// session budget.
type Limiter struct {
	config *config.Config
	boards map[string]*boardState
	mu     sync.Mutex
	logger types.Logger
}

// NewLimiter creates a board limiter from the configured rate and cooldown
func NewLimiter(cfg *config.Config) *Limiter {
	return &Limiter{
		config: cfg,
		boards: make(map[string]*boardState),
		logger: logging.GetGlobalLogger().WithField("component", "board_limiter"),
	}
}

// Allow reports whether a navigation against the board may start now.
// A paused board rejects until its cooldown expires.
func (l *Limiter) Allow(board string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.getState(board)
	state.lastSeen = time.Now()

	if !state.pausedUntil.IsZero() && time.Now().Before(state.pausedUntil) {
		return fmt.Errorf("board %s paused until %s after repeated failures", board, state.pausedUntil.Format(time.RFC3339))
	}

	if !state.limiter.Allow() {
		return fmt.Errorf("board %s rate limit exceeded", board)
	}

	return nil
}

// RecordSuccess resets the board's consecutive failure count
func (l *Limiter) RecordSuccess(board string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.getState(board)
	state.failures = 0
	state.pausedUntil = time.Time{}
}

// RecordFailure bumps the failure count and pauses the board once it reaches
// the configured threshold
func (l *Limiter) RecordFailure(board string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.getState(board)
	state.failures++

	if state.failures >= l.config.Boards.MaxFails {
		state.pausedUntil = time.Now().Add(l.config.Boards.Cooldown)
		state.failures = 0
		l.logger.Warn("Board paused after repeated failures", map[string]interface{}{
			"board":        board,
			"paused_until": state.pausedUntil,
		})
	}
}

// getState returns the board state, creating it on first use. Caller holds l.mu.
func (l *Limiter) getState(board string) *boardState {
	state, exists := l.boards[board]
	if !exists {
		perSecond := rate.Limit(float64(l.config.Boards.RateLimit) / 60.0)
		state = &boardState{
			limiter: rate.NewLimiter(perSecond, l.config.Boards.RateLimit),
		}
		l.boards[board] = state
	}
	return state
}
