package models

// JobListing represents a single listing returned by a job board search
type JobListing struct {
	Board       string `json:"board"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	URL         string `json:"url"`
	Remote      bool   `json:"remote"`
	SalaryText  string `json:"salary_text,omitempty"`
	Description string `json:"description,omitempty"`
}

// ApplyStatus represents the outcome class of an apply attempt
type ApplyStatus string

const (
	ApplyStatusApplied ApplyStatus = "applied"
	ApplyStatusSkipped ApplyStatus = "skipped"
	ApplyStatusError   ApplyStatus = "error"
)

// ApplyOutcome is the result of a single apply attempt against a listing.
// Skipped covers legitimate non-failure cases such as a listing without a
// one-click apply affordance; Error covers failed navigation or form
// interaction and carries enough detail for a log entry.
type ApplyOutcome struct {
	Status ApplyStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Detail string      `json:"detail,omitempty"`
}
