package models

import (
	"fmt"
	"time"
)

// SessionStatus represents the lifecycle state of an automation session
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusStopped   SessionStatus = "stopped"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
)

// ParseSessionStatus validates and converts a raw string into a SessionStatus
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch SessionStatus(s) {
	case SessionStatusRunning, SessionStatusStopped, SessionStatusCompleted, SessionStatusError:
		return SessionStatus(s), nil
	default:
		return "", fmt.Errorf("invalid session status: %q", s)
	}
}

// IsTerminal reports whether the status accepts no further transitions
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusStopped || s == SessionStatusCompleted || s == SessionStatusError
}

// LogSeverity represents the severity of a session log entry
type LogSeverity string

const (
	LogSeverityInfo    LogSeverity = "info"
	LogSeveritySuccess LogSeverity = "success"
	LogSeverityWarning LogSeverity = "warning"
	LogSeverityError   LogSeverity = "error"
)

// SessionLog is a single append-only log entry within a session
type SessionLog struct {
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message"`
	Severity  LogSeverity `json:"severity"`
}

// JobStatus represents the application outcome of a discovered listing
type JobStatus string

const (
	JobStatusFound   JobStatus = "found"
	JobStatusApplied JobStatus = "applied"
	JobStatusSkipped JobStatus = "skipped"
	JobStatusError   JobStatus = "error"
)

// FoundJob is a discovered listing embedded in a session. The listing URL is
// the unique key within the session and drives de-duplication.
type FoundJob struct {
	Board     string    `json:"board"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	Location  string    `json:"location"`
	URL       string    `json:"url"`
	FoundAt   time.Time `json:"foundAt"`
	Status    JobStatus `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SalaryRange bounds the target salary in the session criteria
type SalaryRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SearchCriteria is the immutable criteria snapshot taken at session creation
type SearchCriteria struct {
	JobTitles        []string    `json:"jobTitles"`
	Locations        []string    `json:"locations"`
	SalaryRange      SalaryRange `json:"salaryRange"`
	ExcludeCompanies []string    `json:"excludeCompanies"`
	IncludeRemote    bool        `json:"includeRemote"`
}

// SessionCounters holds the monotonically non-decreasing progress counters
type SessionCounters struct {
	JobsFound             int `json:"jobsFound"`
	ApplicationsSubmitted int `json:"applicationsSubmitted"`
	ApplicationsSkipped   int `json:"applicationsSkipped"`
}

// CounterDeltas describes a single atomic counter increment
type CounterDeltas struct {
	JobsFound             int
	ApplicationsSubmitted int
	ApplicationsSkipped   int
}

// AutomationSession is one run of the auto-apply workflow for one owner with
// one fixed criteria snapshot
type AutomationSession struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Status    SessionStatus   `json:"status"`
	Criteria  SearchCriteria  `json:"criteria"`
	Counters  SessionCounters `json:"counters"`
	StartedAt time.Time       `json:"startedAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Logs      []SessionLog    `json:"logs"`
	Jobs      []FoundJob      `json:"jobs"`
}
