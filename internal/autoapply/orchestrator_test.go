package autoapply_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"applypilot/internal/autoapply"
	"applypilot/internal/boards"
	"applypilot/internal/config"
	"applypilot/internal/profile"
	"applypilot/internal/session"
	"applypilot/pkg/models"
	"applypilot/pkg/utils"
)

// ── Test fixtures ─────────────────────────────────────────────────────────

// stubBoard scripts Search and Apply so tests can drive the orchestration
// loop without a browser.
type stubBoard struct {
	name     string
	searchFn func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error)
	applyFn  func(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error)
}

func (b *stubBoard) Name() string { return b.name }

func (b *stubBoard) Search(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
	return b.searchFn(ctx, q)
}

func (b *stubBoard) Apply(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
	return b.applyFn(ctx, l, p)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Runner.MaxConcurrentSessions = 4
	cfg.Runner.ShutdownTimeout = 5 * time.Second
	cfg.Boards.RateLimit = 6000
	cfg.Boards.MaxFails = 5
	cfg.Boards.Cooldown = time.Minute
	return cfg
}

func listing(board, title, company, url string) models.JobListing {
	return models.JobListing{
		Board:   board,
		Title:   title,
		Company: company,
		URL:     url,
	}
}

func alwaysApply(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
	return models.ApplyOutcome{Status: models.ApplyStatusApplied}, nil
}

// newFixture builds a store, registry and orchestrator around the given
// boards, with a profile stored for user "alice".
func newFixture(t *testing.T, sources ...boards.JobSource) (session.Store, *autoapply.Orchestrator) {
	t.Helper()

	store := session.NewMemoryStore()
	registry := boards.NewRegistry()
	for _, src := range sources {
		registry.Register(src)
	}

	profiles := profile.NewStaticProvider()
	profiles.Put(models.UserProfile{
		UserID:   "alice",
		FullName: "Alice Martin",
		Email:    "alice@example.com",
	})

	orch := autoapply.NewOrchestrator(store, registry, boards.NewLimiter(testConfig()), profiles)
	return store, orch
}

func createRunningSession(t *testing.T, store session.Store, criteria models.SearchCriteria) *models.AutomationSession {
	t.Helper()

	now := time.Now().UTC()
	sess := &models.AutomationSession{
		ID:        "sess-1",
		UserID:    "alice",
		Status:    models.SessionStatusRunning,
		Criteria:  criteria,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return sess
}

// ── Full run ──────────────────────────────────────────────────────────────

// A run over one board with one excluded company must finish completed with
// reconciled counters: both listings found, one applied, one skipped, and
// the excluded company never reaches Apply.
func TestRun_ExclusionAndCountersReconcile(t *testing.T) {
	var appliedTo []string
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			return []models.JobListing{
				listing("stub", "Backend Engineer", "GoodCorp", "https://stub/good"),
				listing("stub", "Backend Engineer", "BadCorp", "https://stub/bad"),
			}, nil
		},
		applyFn: func(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
			appliedTo = append(appliedTo, l.Company)
			return models.ApplyOutcome{Status: models.ApplyStatusApplied}, nil
		},
	}

	store, orch := newFixture(t, board)
	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles:        []string{"Backend Engineer"},
		Locations:        []string{"Paris"},
		ExcludeCompanies: []string{"badcorp"},
	})

	orch.Run(context.Background(), sess)

	got, err := store.Get(context.Background(), "alice", sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.Counters.JobsFound != 2 {
		t.Errorf("jobsFound = %d, want 2", got.Counters.JobsFound)
	}
	if got.Counters.ApplicationsSubmitted != 1 {
		t.Errorf("applicationsSubmitted = %d, want 1", got.Counters.ApplicationsSubmitted)
	}
	if got.Counters.ApplicationsSkipped != 1 {
		t.Errorf("applicationsSkipped = %d, want 1", got.Counters.ApplicationsSkipped)
	}

	if len(appliedTo) != 1 || appliedTo[0] != "GoodCorp" {
		t.Errorf("Apply called for %v, want only GoodCorp", appliedTo)
	}

	statuses := map[string]models.JobStatus{}
	for _, j := range got.Jobs {
		statuses[j.URL] = j.Status
	}
	if statuses["https://stub/good"] != models.JobStatusApplied {
		t.Errorf("GoodCorp job status = %s, want applied", statuses["https://stub/good"])
	}
	if statuses["https://stub/bad"] != models.JobStatusSkipped {
		t.Errorf("BadCorp job status = %s, want skipped", statuses["https://stub/bad"])
	}
}

// A listing returned by two probes must be recorded and applied to once.
func TestRun_DuplicateListingHandledOnce(t *testing.T) {
	applyCalls := 0
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			return []models.JobListing{listing("stub", "Engineer", "Acme", "https://stub/same")}, nil
		},
		applyFn: func(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
			applyCalls++
			return models.ApplyOutcome{Status: models.ApplyStatusApplied}, nil
		},
	}

	store, orch := newFixture(t, board)
	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer", "Software Engineer"},
		Locations: []string{"Lyon"},
	})

	orch.Run(context.Background(), sess)

	got, _ := store.Get(context.Background(), "alice", sess.ID)
	if got.Counters.JobsFound != 1 {
		t.Errorf("jobsFound = %d, want 1 for duplicate URL", got.Counters.JobsFound)
	}
	if applyCalls != 1 {
		t.Errorf("Apply called %d times, want 1", applyCalls)
	}
	if len(got.Jobs) != 1 {
		t.Errorf("session has %d jobs, want 1", len(got.Jobs))
	}
}

// ── Failure containment ───────────────────────────────────────────────────

// A failed apply attempt is contained: the job is marked error, it counts
// toward the skipped counter, and the run still completes.
func TestRun_ApplyErrorIsContained(t *testing.T) {
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			return []models.JobListing{listing("stub", "Engineer", "Acme", "https://stub/1")}, nil
		},
		applyFn: func(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
			return models.ApplyOutcome{}, boards.NewAdapterError("stub", "apply", errors.New("form changed"))
		},
	}

	store, orch := newFixture(t, board)
	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})

	orch.Run(context.Background(), sess)

	got, _ := store.Get(context.Background(), "alice", sess.ID)
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want completed despite apply failure", got.Status)
	}
	if got.Jobs[0].Status != models.JobStatusError {
		t.Errorf("job status = %s, want error", got.Jobs[0].Status)
	}
	if got.Counters.ApplicationsSkipped != 1 {
		t.Errorf("applicationsSkipped = %d, want 1", got.Counters.ApplicationsSkipped)
	}
	if got.Counters.ApplicationsSubmitted != 0 {
		t.Errorf("applicationsSubmitted = %d, want 0", got.Counters.ApplicationsSubmitted)
	}
}

// A search failure on one board must not abort the others.
func TestRun_SearchFailureDoesNotAbortOtherBoards(t *testing.T) {
	broken := &stubBoard{
		name: "broken",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			return nil, boards.NewAdapterError("broken", "search", errors.New("selector drift"))
		},
		applyFn: alwaysApply,
	}
	working := &stubBoard{
		name: "working",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			return []models.JobListing{listing("working", "Engineer", "Acme", "https://working/1")}, nil
		},
		applyFn: alwaysApply,
	}

	store, orch := newFixture(t, broken, working)
	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})

	orch.Run(context.Background(), sess)

	got, _ := store.Get(context.Background(), "alice", sess.ID)
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.Counters.JobsFound != 1 {
		t.Errorf("jobsFound = %d, want 1 from the working board", got.Counters.JobsFound)
	}

	foundErrorLog := false
	for _, l := range got.Logs {
		if l.Severity == models.LogSeverityError {
			foundErrorLog = true
		}
	}
	if !foundErrorLog {
		t.Error("search failure produced no error log entry")
	}
}

// A panicking adapter must leave the session in the error state rather than
// running forever.
func TestRun_PanicMarksSessionErrored(t *testing.T) {
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			panic("nil dereference in adapter")
		},
		applyFn: alwaysApply,
	}

	store, orch := newFixture(t, board)
	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})

	orch.Run(context.Background(), sess)

	status, err := store.GetStatus(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != models.SessionStatusError {
		t.Errorf("status after panic = %s, want error", status)
	}
}

// outageStore delegates to the in-memory store but fails every status read,
// as a store that went away mid-run would.
type outageStore struct {
	*session.MemoryStore
}

func (s *outageStore) GetStatus(ctx context.Context, sessionID string) (models.SessionStatus, error) {
	return "", errors.New("connection refused")
}

// A store that stops answering status reads must still leave the session in
// a terminal state rather than stranded as running.
func TestRun_StoreOutageMarksSessionErrored(t *testing.T) {
	searched := false
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			searched = true
			return nil, nil
		},
		applyFn: alwaysApply,
	}

	store := &outageStore{session.NewMemoryStore()}
	registry := boards.NewRegistry()
	registry.Register(board)
	profiles := profile.NewStaticProvider()
	profiles.Put(models.UserProfile{UserID: "alice", FullName: "Alice Martin", Email: "alice@example.com"})
	orch := autoapply.NewOrchestrator(store, registry, boards.NewLimiter(testConfig()), profiles)

	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})

	orch.Run(context.Background(), sess)

	// Read through the inner store: the wrapper's status reads always fail
	status, err := store.MemoryStore.GetStatus(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != models.SessionStatusError {
		t.Errorf("status after store outage = %s, want error", status)
	}
	if searched {
		t.Error("board was searched with the store unreadable")
	}
}

// A user without a stored profile cannot run: the session must end errored
// with an explanatory log entry before any board is touched.
func TestRun_MissingProfileErrorsSession(t *testing.T) {
	searched := false
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			searched = true
			return nil, nil
		},
		applyFn: alwaysApply,
	}

	store := session.NewMemoryStore()
	registry := boards.NewRegistry()
	registry.Register(board)
	orch := autoapply.NewOrchestrator(store, registry, boards.NewLimiter(testConfig()), profile.NewStaticProvider())

	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})

	orch.Run(context.Background(), sess)

	status, _ := store.GetStatus(context.Background(), sess.ID)
	if status != models.SessionStatusError {
		t.Errorf("status = %s, want error", status)
	}
	if searched {
		t.Error("board was searched despite missing profile")
	}
}

// ── Cooperative stop ──────────────────────────────────────────────────────

// A stop that lands during a probe must halt the loop at the next boundary:
// no further searches run and the stopped status survives.
func TestRun_StopHaltsAtNextBoundary(t *testing.T) {
	store := session.NewMemoryStore()

	searches := 0
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			searches++
			// Stop request arrives while the first search is in flight
			if err := store.SetStatus(ctx, "sess-1", models.SessionStatusRunning, models.SessionStatusStopped); err != nil {
				t.Fatalf("stop transition failed: %v", err)
			}
			return []models.JobListing{listing("stub", "Engineer", "Acme", "https://stub/1")}, nil
		},
		applyFn: func(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
			t.Error("Apply ran after the session was stopped")
			return models.ApplyOutcome{Status: models.ApplyStatusApplied}, nil
		},
	}

	registry := boards.NewRegistry()
	registry.Register(board)
	profiles := profile.NewStaticProvider()
	profiles.Put(models.UserProfile{UserID: "alice"})
	orch := autoapply.NewOrchestrator(store, registry, boards.NewLimiter(testConfig()), profiles)

	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer", "Developer"},
		Locations: []string{"Paris"},
	})

	orch.Run(context.Background(), sess)

	if searches != 1 {
		t.Errorf("searches after stop = %d, want 1", searches)
	}
	status, _ := store.GetStatus(context.Background(), sess.ID)
	if status != models.SessionStatusStopped {
		t.Errorf("status = %s, want stopped to remain terminal", status)
	}
}

// ── Service surface ───────────────────────────────────────────────────────

func newService(t *testing.T, sources ...boards.JobSource) (*autoapply.Service, session.Store) {
	t.Helper()

	store, orch := newFixture(t, sources...)
	runner := autoapply.NewRunner(testConfig())
	t.Cleanup(func() { _ = runner.Stop() })
	return autoapply.NewService(store, runner, orch), store
}

// Start must reject criteria without titles or without locations before
// creating anything.
func TestServiceStart_RejectsEmptyCriteria(t *testing.T) {
	svc, store := newService(t)

	cases := []models.StartAutoApplyRequest{
		{JobTitles: nil, Locations: []string{"Paris"}},
		{JobTitles: []string{"Engineer"}, Locations: nil},
		{JobTitles: []string{}, Locations: []string{"Paris"}},
	}
	for _, req := range cases {
		r := req
		if _, err := svc.Start(context.Background(), "alice", &r); err == nil {
			t.Errorf("Start(%+v) succeeded, want validation error", req)
		}
	}

	sessions, _ := store.ListByOwner(context.Background(), "alice")
	if len(sessions) != 0 {
		t.Errorf("rejected starts still created %d sessions", len(sessions))
	}
}

// Start must return an immediately pollable running session.
func TestServiceStart_SessionImmediatelyPollable(t *testing.T) {
	done := make(chan struct{})
	board := &stubBoard{
		name: "stub",
		searchFn: func(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
			<-done
			return nil, nil
		},
		applyFn: alwaysApply,
	}
	svc, _ := newService(t, board)
	defer close(done)

	id, err := svc.Start(context.Background(), "alice", &models.StartAutoApplyRequest{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sess, err := svc.Status(context.Background(), "alice", id)
	if err != nil {
		t.Fatalf("Status right after Start failed: %v", err)
	}
	if sess.Status != models.SessionStatusRunning {
		t.Errorf("fresh session status = %s, want running", sess.Status)
	}
	if len(sess.Logs) == 0 {
		t.Error("fresh session has no initial log entry")
	}
}

// Stopping a session that already finished is a client error carrying a 400.
func TestServiceStop_TerminalSessionIsBadRequest(t *testing.T) {
	svc, store := newService(t)

	sess := createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})
	if err := store.SetStatus(context.Background(), sess.ID, models.SessionStatusRunning, models.SessionStatusCompleted); err != nil {
		t.Fatalf("complete transition failed: %v", err)
	}

	err := svc.Stop(context.Background(), "alice", sess.ID)
	var custom *utils.CustomError
	if !errors.As(err, &custom) {
		t.Fatalf("Stop returned %T, want *utils.CustomError", err)
	}
	if custom.Code != 400 {
		t.Errorf("Stop on terminal session code = %d, want 400", custom.Code)
	}
}

// Stopping someone else's session is rejected without revealing whether the
// session exists.
func TestServiceStop_OtherOwnerIsRejected(t *testing.T) {
	svc, store := newService(t)

	createRunningSession(t, store, models.SearchCriteria{
		JobTitles: []string{"Engineer"},
		Locations: []string{"Paris"},
	})

	err := svc.Stop(context.Background(), "mallory", "sess-1")
	var custom *utils.CustomError
	if !errors.As(err, &custom) {
		t.Fatalf("Stop returned %T, want *utils.CustomError", err)
	}
	if custom.Code != 400 {
		t.Errorf("Stop by non-owner code = %d, want 400", custom.Code)
	}

	// And the owner's session is untouched
	status, _ := store.GetStatus(context.Background(), "sess-1")
	if status != models.SessionStatusRunning {
		t.Errorf("session status after foreign stop = %s, want running", status)
	}
}
