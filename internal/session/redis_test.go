package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/session"
	"applypilot/pkg/models"
	"applypilot/pkg/utils"
)

// newRedisStore connects to the Redis named by TEST_REDIS_URL, or skips the
// test when no instance is available.
func newRedisStore(t *testing.T) *session.RedisStore {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	cfg := &config.Config{}
	cfg.Redis.URL = url
	cfg.Redis.Timeout = 5 * time.Second

	store, err := session.NewRedisStore(cfg)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// A freshly created session must read back with the seed logs and jobs it was
// created with, matching what the in-memory store returns.
func TestRedisCreate_PersistsSeedLogsAndJobs(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sess := newSession(utils.GenerateSessionID(), "alice")
	sess.Logs = []models.SessionLog{{
		Timestamp: now,
		Message:   "Automation session started",
		Severity:  models.LogSeverityInfo,
	}}
	sess.Jobs = []models.FoundJob{foundJob("https://example.com/jobs/seed-1")}

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "alice", sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Logs) != 1 {
		t.Fatalf("fresh session has %d logs, want 1", len(got.Logs))
	}
	if got.Logs[0].Message != "Automation session started" {
		t.Errorf("seed log message = %q", got.Logs[0].Message)
	}
	if len(got.Jobs) != 1 {
		t.Fatalf("fresh session has %d jobs, want 1", len(got.Jobs))
	}
	if got.Jobs[0].URL != "https://example.com/jobs/seed-1" {
		t.Errorf("seed job url = %q", got.Jobs[0].URL)
	}
}

// A seed job appended again after create must be treated as a duplicate.
func TestRedisAppendJobs_DedupsAgainstSeedJobs(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	sess := newSession(utils.GenerateSessionID(), "alice")
	sess.Jobs = []models.FoundJob{foundJob("https://example.com/jobs/seed-2")}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	appended, err := store.AppendJobs(ctx, sess.ID, []models.FoundJob{
		foundJob("https://example.com/jobs/seed-2"),
		foundJob("https://example.com/jobs/other"),
	})
	if err != nil {
		t.Fatalf("AppendJobs failed: %v", err)
	}
	if len(appended) != 1 || appended[0].URL != "https://example.com/jobs/other" {
		t.Errorf("appended = %+v, want only the new URL", appended)
	}
}
