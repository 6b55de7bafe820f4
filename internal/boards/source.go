package boards

import (
	"context"
	"fmt"

	"applypilot/pkg/models"
)

// SearchQuery is one title×location probe against a board. Boards that can
// pre-filter on the remote flag or salary bounds do so; the others ignore
// the extra fields and leave filtering to the orchestration loop.
type SearchQuery struct {
	Title         string
	Location      string
	IncludeRemote bool
	SalaryMin     int
	SalaryMax     int
}

// JobSource is the capability every job board adapter implements. Adapters
// are independent and share no mutable state: each Search or Apply call owns
// whatever navigation resources it needs and releases them before returning.
//
// Search must not fail for "no results"; an empty slice is the answer.
// Apply reports its outcome rather than erroring for legitimate skips such as
// a listing without a one-click apply affordance.
type JobSource interface {
	// Name identifies the board (stable, lowercase).
	Name() string

	// Search performs the board's scripted navigation and scrape for one query.
	Search(ctx context.Context, query SearchQuery) ([]models.JobListing, error)

	// Apply attempts to submit an application for the listing using the profile.
	Apply(ctx context.Context, listing models.JobListing, profile models.UserProfile) (models.ApplyOutcome, error)
}

// AdapterError wraps a board-level navigation or selector failure. These are
// recovered by the orchestration loop: logged into the session, never fatal.
type AdapterError struct {
	Board string
	Op    string // "search" or "apply"
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Board, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates an AdapterError for the given board and operation
func NewAdapterError(board, op string, err error) *AdapterError {
	return &AdapterError{Board: board, Op: op, Err: err}
}
