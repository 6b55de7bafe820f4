package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"applypilot/pkg/models"
)

// MemoryStore implements Store using in-memory storage. It backs tests and
// single-node deployments without Redis; the data does not survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.AutomationSession
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.AutomationSession),
	}
}

// Create inserts a new session document
func (s *MemoryStore) Create(ctx context.Context, sess *models.AutomationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// Get reads a full session snapshot scoped to its owner
func (s *MemoryStore) Get(ctx context.Context, ownerID, sessionID string) (*models.AutomationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists || sess.UserID != ownerID {
		return nil, ErrNotFound
	}

	return cloneSession(sess), nil
}

// GetStatus reads only the current status
func (s *MemoryStore) GetStatus(ctx context.Context, sessionID string) (models.SessionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return "", ErrNotFound
	}

	return sess.Status, nil
}

// ListByOwner returns all sessions for an owner, newest start time first
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.AutomationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.AutomationSession, 0)
	for _, sess := range s.sessions {
		if sess.UserID == ownerID {
			result = append(result, cloneSession(sess))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	return result, nil
}

// AppendLog appends a single log entry
func (s *MemoryStore) AppendLog(ctx context.Context, sessionID string, entry models.SessionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return ErrNotFound
	}

	sess.Logs = append(sess.Logs, entry)
	sess.UpdatedAt = time.Now()
	return nil
}

// AppendJobs appends only listings with URLs not already present
func (s *MemoryStore) AppendJobs(ctx context.Context, sessionID string, jobs []models.FoundJob) ([]models.FoundJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}

	seen := make(map[string]bool, len(sess.Jobs))
	for _, j := range sess.Jobs {
		seen[j.URL] = true
	}

	appended := make([]models.FoundJob, 0, len(jobs))
	for _, job := range jobs {
		if job.URL == "" || seen[job.URL] {
			continue
		}
		seen[job.URL] = true
		sess.Jobs = append(sess.Jobs, job)
		appended = append(appended, job)
	}

	if len(appended) > 0 {
		sess.UpdatedAt = time.Now()
	}

	return appended, nil
}

// UpdateJobStatus transitions a found job identified by its URL
func (s *MemoryStore) UpdateJobStatus(ctx context.Context, sessionID, jobURL string, status models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return ErrNotFound
	}

	for i := range sess.Jobs {
		if sess.Jobs[i].URL == jobURL {
			now := time.Now()
			sess.Jobs[i].Status = status
			sess.Jobs[i].UpdatedAt = now
			sess.UpdatedAt = now
			return nil
		}
	}

	return ErrNotFound
}

// IncrementCounters applies the non-zero deltas
func (s *MemoryStore) IncrementCounters(ctx context.Context, sessionID string, deltas models.CounterDeltas) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return ErrNotFound
	}

	sess.Counters.JobsFound += deltas.JobsFound
	sess.Counters.ApplicationsSubmitted += deltas.ApplicationsSubmitted
	sess.Counters.ApplicationsSkipped += deltas.ApplicationsSkipped
	sess.UpdatedAt = time.Now()
	return nil
}

// SetStatus transitions the session status from one state to another
func (s *MemoryStore) SetStatus(ctx context.Context, sessionID string, from, to models.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return ErrNotFound
	}

	if sess.Status != from {
		return ErrConflict
	}

	sess.Status = to
	sess.UpdatedAt = time.Now()
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

// cloneSession returns a deep copy so callers never share slices with the
// store's canonical document
func cloneSession(sess *models.AutomationSession) *models.AutomationSession {
	copied := *sess
	copied.Logs = append([]models.SessionLog(nil), sess.Logs...)
	copied.Jobs = append([]models.FoundJob(nil), sess.Jobs...)
	copied.Criteria.JobTitles = append([]string(nil), sess.Criteria.JobTitles...)
	copied.Criteria.Locations = append([]string(nil), sess.Criteria.Locations...)
	copied.Criteria.ExcludeCompanies = append([]string(nil), sess.Criteria.ExcludeCompanies...)
	return &copied
}
