package autoapply

import (
	"context"
	"fmt"
	"time"

	"applypilot/internal/boards"
	"applypilot/internal/logging"
	"applypilot/internal/profile"
	"applypilot/internal/session"
	"applypilot/pkg/models"
	"applypilot/pkg/utils"
)

// Orchestrator drives one session's search-and-apply loop. All progress goes
// through the session store so a concurrent poll observes live state, and the
// store is re-read for the current status before every board interaction so
// a stop request takes effect at the next step boundary.
type Orchestrator struct {
	store    session.Store
	registry *boards.Registry
	limiter  *boards.Limiter
	profiles profile.Provider
	logger   logging.Logger
}

// NewOrchestrator wires the orchestration loop to its collaborators
func NewOrchestrator(store session.Store, registry *boards.Registry, limiter *boards.Limiter, profiles profile.Provider) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		limiter:  limiter,
		profiles: profiles,
		logger:   logging.GetGlobalLogger(),
	}
}

// Run executes the automation loop for one session until it finishes, is
// stopped, or fails. Board-level errors are logged into the session and
// never abort the run; only a missing profile or a panic does.
func (o *Orchestrator) Run(ctx context.Context, sess *models.AutomationSession) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Session automation panicked", map[string]interface{}{
				"session_id": sess.ID,
				"panic":      fmt.Sprintf("%v", r),
			})
			o.markError(sess.ID, fmt.Sprintf("internal failure: %v", r))
		}
	}()

	prof, err := o.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		if err == profile.ErrProfileNotFound {
			o.markError(sess.ID, "no applicant profile found for user")
		} else {
			o.markError(sess.ID, fmt.Sprintf("profile fetch failed: %s", err))
		}
		return
	}

	for _, source := range o.registry.Sources() {
		for _, title := range sess.Criteria.JobTitles {
			for _, location := range sess.Criteria.Locations {
				if halted := o.halted(ctx, sess.ID); halted {
					return
				}
				o.runProbe(ctx, sess, source, *prof, title, location)
			}
		}
	}

	if halted := o.halted(ctx, sess.ID); halted {
		return
	}

	if err := o.store.SetStatus(ctx, sess.ID, models.SessionStatusRunning, models.SessionStatusCompleted); err != nil {
		// A stop that landed between the last check and here wins
		if err != session.ErrConflict {
			o.logger.Error("Failed to mark session completed", map[string]interface{}{
				"session_id": sess.ID,
				"error":      err.Error(),
			})
		}
		return
	}

	o.appendLog(sess.ID, models.LogSeveritySuccess, "Automation completed")
}

// runProbe performs one board×title×location search and works through the
// new listings it produced
func (o *Orchestrator) runProbe(ctx context.Context, sess *models.AutomationSession, source boards.JobSource, prof models.UserProfile, title, location string) {
	board := source.Name()

	if err := o.limiter.Allow(board); err != nil {
		o.appendLog(sess.ID, models.LogSeverityWarning,
			fmt.Sprintf("Skipping %s search for %q in %q: %s", board, title, location, err))
		return
	}

	query := boards.SearchQuery{
		Title:         title,
		Location:      location,
		IncludeRemote: sess.Criteria.IncludeRemote,
		SalaryMin:     sess.Criteria.SalaryRange.Min,
		SalaryMax:     sess.Criteria.SalaryRange.Max,
	}

	listings, err := source.Search(ctx, query)
	if err != nil {
		o.limiter.RecordFailure(board)
		o.appendLog(sess.ID, models.LogSeverityError,
			fmt.Sprintf("Search on %s for %q in %q failed: %s", board, title, location, err))
		return
	}
	o.limiter.RecordSuccess(board)

	now := time.Now().UTC()
	found := make([]models.FoundJob, 0, len(listings))
	for _, l := range listings {
		found = append(found, models.FoundJob{
			Board:     board,
			Title:     l.Title,
			Company:   l.Company,
			Location:  l.Location,
			URL:       l.URL,
			FoundAt:   now,
			Status:    models.JobStatusFound,
			UpdatedAt: now,
		})
	}

	newJobs, err := o.store.AppendJobs(ctx, sess.ID, found)
	if err != nil {
		o.logger.Error("Failed to record found jobs", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		return
	}

	if len(newJobs) > 0 {
		if err := o.store.IncrementCounters(ctx, sess.ID, models.CounterDeltas{JobsFound: len(newJobs)}); err != nil {
			o.logger.Error("Failed to increment found counter", map[string]interface{}{
				"session_id": sess.ID,
				"error":      err.Error(),
			})
		}
	}
	o.appendLog(sess.ID, models.LogSeverityInfo,
		fmt.Sprintf("Found %d new jobs on %s for %q in %q", len(newJobs), board, title, location))

	// Only genuinely new listings are applied to; a re-discovered URL was
	// already handled in an earlier probe
	byURL := make(map[string]models.JobListing, len(listings))
	for _, l := range listings {
		byURL[l.URL] = l
	}

	for _, job := range newJobs {
		if halted := o.halted(ctx, sess.ID); halted {
			return
		}
		o.applyToJob(ctx, sess, source, prof, byURL[job.URL])
	}
}

// applyToJob runs the exclusion filter and the board's apply flow for one
// newly discovered listing, recording the outcome
func (o *Orchestrator) applyToJob(ctx context.Context, sess *models.AutomationSession, source boards.JobSource, prof models.UserProfile, listing models.JobListing) {
	if excluded, hit := utils.ContainsFold(listing.Company, sess.Criteria.ExcludeCompanies); hit {
		o.recordOutcome(sess.ID, listing, models.JobStatusSkipped, models.LogSeverityWarning,
			fmt.Sprintf("Skipped %q at %s: company matches exclusion %q", listing.Title, listing.Company, excluded))
		return
	}

	if err := o.limiter.Allow(source.Name()); err != nil {
		o.recordOutcome(sess.ID, listing, models.JobStatusSkipped, models.LogSeverityWarning,
			fmt.Sprintf("Skipped %q at %s: %s", listing.Title, listing.Company, err))
		return
	}

	outcome, err := source.Apply(ctx, listing, prof)
	if err != nil {
		o.limiter.RecordFailure(source.Name())
		o.recordOutcome(sess.ID, listing, models.JobStatusError, models.LogSeverityError,
			fmt.Sprintf("Apply to %q at %s failed: %s", listing.Title, listing.Company, err))
		return
	}
	o.limiter.RecordSuccess(source.Name())

	switch outcome.Status {
	case models.ApplyStatusApplied:
		o.recordOutcome(sess.ID, listing, models.JobStatusApplied, models.LogSeveritySuccess,
			fmt.Sprintf("Applied to %q at %s", listing.Title, listing.Company))
	case models.ApplyStatusSkipped:
		o.recordOutcome(sess.ID, listing, models.JobStatusSkipped, models.LogSeverityWarning,
			fmt.Sprintf("Skipped %q at %s: %s", listing.Title, listing.Company, outcome.Reason))
	default:
		detail := outcome.Detail
		if detail == "" {
			detail = outcome.Reason
		}
		o.recordOutcome(sess.ID, listing, models.JobStatusError, models.LogSeverityError,
			fmt.Sprintf("Apply to %q at %s failed: %s", listing.Title, listing.Company, detail))
	}
}

// recordOutcome persists a job's terminal status, bumps the matching counter
// and appends the log line. Applications that error count toward the skipped
// counter so found always reconciles with submitted plus skipped.
func (o *Orchestrator) recordOutcome(sessionID string, listing models.JobListing, status models.JobStatus, severity models.LogSeverity, message string) {
	ctx := context.Background()

	if err := o.store.UpdateJobStatus(ctx, sessionID, listing.URL, status); err != nil {
		o.logger.Error("Failed to update job status", map[string]interface{}{
			"session_id": sessionID,
			"job_url":    listing.URL,
			"error":      err.Error(),
		})
	}

	deltas := models.CounterDeltas{}
	if status == models.JobStatusApplied {
		deltas.ApplicationsSubmitted = 1
	} else {
		deltas.ApplicationsSkipped = 1
	}
	if err := o.store.IncrementCounters(ctx, sessionID, deltas); err != nil {
		o.logger.Error("Failed to increment counters", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	o.appendLog(sessionID, severity, message)
}

// halted reports whether the loop must stop: either the process is shutting
// down or the session left the running state. The status read goes to the
// store, not a cached snapshot, so a stop issued from another instance is
// honored too.
func (o *Orchestrator) halted(ctx context.Context, sessionID string) bool {
	select {
	case <-ctx.Done():
		o.markError(sessionID, "server shut down while session was running")
		return true
	default:
	}

	status, err := o.store.GetStatus(ctx, sessionID)
	if err != nil {
		o.logger.Error("Failed to read session status", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		// The loop cannot continue without knowing whether a stop landed,
		// so give the session a terminal state rather than abandoning it
		// as running. Best effort, like the panic path.
		o.markError(sessionID, fmt.Sprintf("session store unavailable: %s", err))
		return true
	}
	if status != models.SessionStatusRunning {
		o.logger.Info("Automation halted after stop request", map[string]interface{}{
			"session_id": sessionID,
			"status":     string(status),
		})
		return true
	}
	return false
}

// markError transitions the session to the error state with a log entry.
// The log is appended only when the transition wins; a session that already
// reached a terminal state is left untouched.
func (o *Orchestrator) markError(sessionID, reason string) {
	ctx := context.Background()
	if err := o.store.SetStatus(ctx, sessionID, models.SessionStatusRunning, models.SessionStatusError); err != nil {
		if err != session.ErrConflict {
			o.logger.Error("Failed to mark session errored", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
		return
	}
	o.appendLog(sessionID, models.LogSeverityError, reason)
}

func (o *Orchestrator) appendLog(sessionID string, severity models.LogSeverity, message string) {
	entry := models.SessionLog{
		Timestamp: time.Now().UTC(),
		Message:   message,
		Severity:  severity,
	}
	if err := o.store.AppendLog(context.Background(), sessionID, entry); err != nil {
		o.logger.Error("Failed to append session log", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}
