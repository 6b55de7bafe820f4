package models

import "time"

// StartAutoApplyResponse is returned once the session document exists; the
// automation itself continues in the background and is observed via polling
type StartAutoApplyResponse struct {
	SessionID string `json:"sessionId"`
}

// StopAutoApplyResponse confirms a stop request was persisted
type StopAutoApplyResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// SessionListResponse wraps the owner-scoped session list, newest first
type SessionListResponse struct {
	Sessions []*AutomationSession `json:"sessions"`
	Count    int                  `json:"count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
