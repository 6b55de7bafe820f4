package boards_test

import (
	"strings"
	"testing"
	"time"

	"applypilot/internal/boards"
	"applypilot/internal/config"
)

func limiterConfig(rateLimit, maxFails int, cooldown time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.Boards.RateLimit = rateLimit
	cfg.Boards.MaxFails = maxFails
	cfg.Boards.Cooldown = cooldown
	return cfg
}

// Within the burst budget every navigation is allowed.
func TestLimiter_AllowsWithinBudget(t *testing.T) {
	l := boards.NewLimiter(limiterConfig(30, 5, time.Minute))

	for i := 0; i < 30; i++ {
		if err := l.Allow("indeed"); err != nil {
			t.Fatalf("Allow #%d rejected within budget: %v", i+1, err)
		}
	}
}

// Exhausting the burst budget rejects the next navigation.
func TestLimiter_RejectsBeyondBudget(t *testing.T) {
	l := boards.NewLimiter(limiterConfig(5, 5, time.Minute))

	for i := 0; i < 5; i++ {
		if err := l.Allow("indeed"); err != nil {
			t.Fatalf("Allow #%d rejected within budget: %v", i+1, err)
		}
	}
	if err := l.Allow("indeed"); err == nil {
		t.Error("Allow beyond budget succeeded, want rejection")
	}
}

// Boards are throttled independently of each other.
func TestLimiter_BoardsAreIndependent(t *testing.T) {
	l := boards.NewLimiter(limiterConfig(2, 5, time.Minute))

	_ = l.Allow("indeed")
	_ = l.Allow("indeed")
	if err := l.Allow("indeed"); err == nil {
		t.Fatal("indeed should be exhausted")
	}

	if err := l.Allow("remotive"); err != nil {
		t.Errorf("remotive rejected although untouched: %v", err)
	}
}

// Reaching the failure threshold pauses the board for the cooldown.
func TestLimiter_RepeatedFailuresPauseBoard(t *testing.T) {
	l := boards.NewLimiter(limiterConfig(100, 3, time.Hour))

	for i := 0; i < 3; i++ {
		l.RecordFailure("indeed")
	}

	err := l.Allow("indeed")
	if err == nil {
		t.Fatal("Allow on paused board succeeded, want rejection")
	}
	if !strings.Contains(err.Error(), "paused") {
		t.Errorf("pause rejection message = %q, want it to mention the pause", err)
	}
}

// A success before the threshold resets the failure count.
func TestLimiter_SuccessResetsFailures(t *testing.T) {
	l := boards.NewLimiter(limiterConfig(100, 3, time.Hour))

	l.RecordFailure("indeed")
	l.RecordFailure("indeed")
	l.RecordSuccess("indeed")
	l.RecordFailure("indeed")
	l.RecordFailure("indeed")

	if err := l.Allow("indeed"); err != nil {
		t.Errorf("board paused although failures never reached the threshold: %v", err)
	}
}
