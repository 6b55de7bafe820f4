package session

import (
	"context"
	"errors"

	"applypilot/pkg/models"
)

// Common store errors
var (
	// ErrNotFound is returned when a session does not exist or is owned by
	// another user. Callers cannot distinguish the two cases.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned by SetStatus when the session is not in the
	// expected source state (e.g. stopping an already terminal session).
	ErrConflict = errors.New("session status conflict")
)

// Store is the persistence contract for automation session documents.
//
// Every mutation is a single atomic partial update against the stored
// document: a concurrent status poll observes either the pre- or the
// post-mutation state, never a torn write. Log and job entries are appended
// in the order they are produced, so a reader may observe any prefix of the
// eventual sequence but never a reordering.
type Store interface {
	// Create inserts a new session document.
	Create(ctx context.Context, sess *models.AutomationSession) error

	// Get reads a full session snapshot scoped to its owner.
	Get(ctx context.Context, ownerID, sessionID string) (*models.AutomationSession, error)

	// GetStatus reads only the current status. Used by the orchestration
	// loop for its cancellation checks.
	GetStatus(ctx context.Context, sessionID string) (models.SessionStatus, error)

	// ListByOwner returns all sessions for an owner, newest start time first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.AutomationSession, error)

	// AppendLog appends a single log entry.
	AppendLog(ctx context.Context, sessionID string, entry models.SessionLog) error

	// AppendJobs appends only listings whose URL is not already present in
	// the session and returns the genuinely new entries. Appending the same
	// URL twice never produces a duplicate.
	AppendJobs(ctx context.Context, sessionID string, jobs []models.FoundJob) ([]models.FoundJob, error)

	// UpdateJobStatus transitions a found job identified by its URL and
	// refreshes its timestamp.
	UpdateJobStatus(ctx context.Context, sessionID, jobURL string, status models.JobStatus) error

	// IncrementCounters applies the non-zero deltas atomically.
	IncrementCounters(ctx context.Context, sessionID string, deltas models.CounterDeltas) error

	// SetStatus transitions the session status from one state to another.
	// Returns ErrConflict when the current status is not the expected one,
	// which is what keeps terminal states terminal.
	SetStatus(ctx context.Context, sessionID string, from, to models.SessionStatus) error

	// Close releases any underlying connections.
	Close() error
}
