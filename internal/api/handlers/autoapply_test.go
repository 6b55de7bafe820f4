package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"applypilot/internal/api/routes"
	"applypilot/internal/autoapply"
	"applypilot/internal/boards"
	"applypilot/internal/config"
	"applypilot/internal/profile"
	"applypilot/internal/session"
	"applypilot/pkg/models"
)

// ── Test server ───────────────────────────────────────────────────────────

// echoSource returns one fixed listing and applies successfully, enough to
// exercise the HTTP surface end to end.
type echoSource struct{}

func (s *echoSource) Name() string { return "stub" }

func (s *echoSource) Search(ctx context.Context, q boards.SearchQuery) ([]models.JobListing, error) {
	return []models.JobListing{{
		Board:   "stub",
		Title:   q.Title,
		Company: "Acme",
		URL:     "https://stub/" + q.Title,
	}}, nil
}

func (s *echoSource) Apply(ctx context.Context, l models.JobListing, p models.UserProfile) (models.ApplyOutcome, error) {
	return models.ApplyOutcome{Status: models.ApplyStatusApplied}, nil
}

func newTestServer(t *testing.T) (*echo.Echo, session.Store) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Runner.MaxConcurrentSessions = 4
	cfg.Runner.ShutdownTimeout = 5 * time.Second
	cfg.Boards.RateLimit = 6000
	cfg.Boards.MaxFails = 5
	cfg.Boards.Cooldown = time.Minute

	store := session.NewMemoryStore()
	registry := boards.NewRegistry()
	registry.Register(&echoSource{})

	profiles := profile.NewStaticProvider()
	profiles.Put(models.UserProfile{UserID: "alice", FullName: "Alice Martin", Email: "alice@example.com"})

	runner := autoapply.NewRunner(cfg)
	t.Cleanup(func() { _ = runner.Stop() })

	orch := autoapply.NewOrchestrator(store, registry, boards.NewLimiter(cfg), profiles)
	svc := autoapply.NewService(store, runner, orch)

	e := echo.New()
	routes.SetupRoutes(e, cfg, svc, store)
	return e, store
}

func doJSON(e *echo.Echo, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedSession(t *testing.T, store session.Store, id, owner string, status models.SessionStatus) {
	t.Helper()

	now := time.Now().UTC()
	err := store.Create(context.Background(), &models.AutomationSession{
		ID:        id,
		UserID:    owner,
		Status:    status,
		StartedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed session failed: %v", err)
	}
}

// ── Identity enforcement ──────────────────────────────────────────────────

// Every owner-scoped endpoint must reject requests without a user header.
func TestRoutes_MissingIdentityIsUnauthorized(t *testing.T) {
	e, _ := newTestServer(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/auto-apply/start"},
		{http.MethodGet, "/api/v1/auto-apply/status/sess-1"},
		{http.MethodGet, "/api/v1/auto-apply/sessions"},
		{http.MethodPost, "/api/v1/auto-apply/stop/sess-1"},
	}
	for _, tc := range cases {
		rec := doJSON(e, tc.method, tc.path, "", "{}")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without identity = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

// ── Start ─────────────────────────────────────────────────────────────────

// A valid start returns a session ID that is immediately pollable.
func TestStart_ReturnsPollableSession(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/start", "alice",
		`{"jobTitles":["Backend Engineer"],"locations":["Paris"],"includeRemote":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d, body %s", rec.Code, rec.Body.String())
	}

	var started models.StartAutoApplyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("failed to decode start response: %v", err)
	}
	if started.SessionID == "" {
		t.Fatal("start returned an empty session ID")
	}

	statusRec := doJSON(e, http.MethodGet, "/api/v1/auto-apply/status/"+started.SessionID, "alice", "")
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status right after start = %d", statusRec.Code)
	}

	var sess models.AutomationSession
	if err := json.Unmarshal(statusRec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if sess.ID != started.SessionID {
		t.Errorf("session id = %s, want %s", sess.ID, started.SessionID)
	}
}

// Criteria without locations must be rejected with a 400.
func TestStart_EmptyLocationsRejected(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/start", "alice",
		`{"jobTitles":["Backend Engineer"],"locations":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("start with empty locations = %d, want 400", rec.Code)
	}
}

// Malformed JSON must be rejected with a 400.
func TestStart_MalformedBodyRejected(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/start", "alice", `{"jobTitles": [`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("start with malformed body = %d, want 400", rec.Code)
	}
}

// ── Status and list ───────────────────────────────────────────────────────

// Polling someone else's session must 404 exactly like a missing one.
func TestStatus_OtherOwnerIs404(t *testing.T) {
	e, store := newTestServer(t)
	seedSession(t, store, "sess-1", "alice", models.SessionStatusRunning)

	if rec := doJSON(e, http.MethodGet, "/api/v1/auto-apply/status/sess-1", "mallory", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status by non-owner = %d, want 404", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/v1/auto-apply/status/missing", "alice", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status of missing session = %d, want 404", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/v1/auto-apply/status/sess-1", "alice", ""); rec.Code != http.StatusOK {
		t.Errorf("status by owner = %d, want 200", rec.Code)
	}
}

// The session list is owner-scoped and reports its count.
func TestListSessions_OwnerScoped(t *testing.T) {
	e, store := newTestServer(t)
	seedSession(t, store, "sess-1", "alice", models.SessionStatusCompleted)
	seedSession(t, store, "sess-2", "alice", models.SessionStatusRunning)
	seedSession(t, store, "sess-3", "bob", models.SessionStatusRunning)

	rec := doJSON(e, http.MethodGet, "/api/v1/auto-apply/sessions", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}

	var list models.SessionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if list.Count != 2 || len(list.Sessions) != 2 {
		t.Errorf("list count = %d with %d sessions, want 2", list.Count, len(list.Sessions))
	}
	for _, s := range list.Sessions {
		if s.UserID != "alice" {
			t.Errorf("list leaked session %s owned by %s", s.ID, s.UserID)
		}
	}
}

// ── Stop ──────────────────────────────────────────────────────────────────

// Stopping a running session succeeds and the status flips to stopped.
func TestStop_RunningSession(t *testing.T) {
	e, store := newTestServer(t)
	seedSession(t, store, "sess-1", "alice", models.SessionStatusRunning)

	rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/stop/sess-1", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop = %d, body %s", rec.Code, rec.Body.String())
	}

	status, err := store.GetStatus(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != models.SessionStatusStopped {
		t.Errorf("status after stop = %s, want stopped", status)
	}
}

// Stopping a terminal session is a client error, and stopping twice in a
// row fails the second time.
func TestStop_TerminalSessionIs400(t *testing.T) {
	e, store := newTestServer(t)
	seedSession(t, store, "sess-done", "alice", models.SessionStatusCompleted)
	seedSession(t, store, "sess-run", "alice", models.SessionStatusRunning)

	if rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/stop/sess-done", "alice", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("stop of completed session = %d, want 400", rec.Code)
	}

	if rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/stop/sess-run", "alice", ""); rec.Code != http.StatusOK {
		t.Errorf("first stop = %d, want 200", rec.Code)
	}
	if rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/stop/sess-run", "alice", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("second stop = %d, want 400", rec.Code)
	}
}

// Stopping someone else's session must be rejected without touching it.
func TestStop_OtherOwnerIsRejected(t *testing.T) {
	e, store := newTestServer(t)
	seedSession(t, store, "sess-1", "alice", models.SessionStatusRunning)

	if rec := doJSON(e, http.MethodPost, "/api/v1/auto-apply/stop/sess-1", "mallory", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("stop by non-owner = %d, want 400", rec.Code)
	}

	status, _ := store.GetStatus(context.Background(), "sess-1")
	if status != models.SessionStatusRunning {
		t.Errorf("status after foreign stop = %s, want running", status)
	}
}

// ── Health ────────────────────────────────────────────────────────────────

// Health endpoints are open, no identity required.
func TestHealth_OpenEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := doJSON(e, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
