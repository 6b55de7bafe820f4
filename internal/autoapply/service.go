package autoapply

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"applypilot/internal/logging"
	"applypilot/internal/session"
	"applypilot/pkg/models"
	"applypilot/pkg/utils"
)

// Service is the application-facing surface for the auto-apply workflow:
// start, stop, status and listing. Everything it returns comes from the
// session store, never from in-process automation state.
type Service struct {
	store     session.Store
	runner    *Runner
	orch      *Orchestrator
	validator *validator.Validate
	logger    logging.Logger
}

// NewService wires the session workflow together
func NewService(store session.Store, runner *Runner, orch *Orchestrator) *Service {
	return &Service{
		store:     store,
		runner:    runner,
		orch:      orch,
		validator: validator.New(),
		logger:    logging.GetGlobalLogger(),
	}
}

// Start validates the criteria, persists a new running session and launches
// its automation in the background. The returned session ID is immediately
// pollable.
func (s *Service) Start(ctx context.Context, userID string, req *models.StartAutoApplyRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", utils.NewValidationError(err.Error())
	}

	now := time.Now().UTC()
	sess := &models.AutomationSession{
		ID:        utils.GenerateSessionID(),
		UserID:    userID,
		Status:    models.SessionStatusRunning,
		Criteria:  req.Criteria(),
		StartedAt: now,
		UpdatedAt: now,
		Logs: []models.SessionLog{{
			Timestamp: now,
			Message:   "Automation session started",
			Severity:  models.LogSeverityInfo,
		}},
		Jobs: []models.FoundJob{},
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return "", utils.NewInternalServerError(fmt.Sprintf("failed to create session: %s", err))
	}

	if err := s.runner.Launch(sess.ID, func(runCtx context.Context) {
		s.orch.Run(runCtx, sess)
	}); err != nil {
		// The document exists but nothing will drive it; surface that in
		// the session itself before failing the request
		s.orch.markError(sess.ID, fmt.Sprintf("could not start automation: %s", err))
		return "", utils.NewInternalServerError(err.Error())
	}

	s.logger.Info("Automation session started", map[string]interface{}{
		"session_id": sess.ID,
		"user_id":    userID,
		"titles":     len(req.JobTitles),
		"locations":  len(req.Locations),
	})

	return sess.ID, nil
}

// Stop requests cancellation of a running session. The transition is
// conditional on the session still running: a session that is absent, owned
// by someone else or already terminal is rejected the same way, and the
// running automation observes the new status at its next step boundary.
func (s *Service) Stop(ctx context.Context, userID, sessionID string) error {
	// Ownership check before the transition; the store scopes Get by owner
	if _, err := s.store.Get(ctx, userID, sessionID); err != nil {
		if err == session.ErrNotFound {
			return utils.NewBadRequestError("session is not running")
		}
		return utils.NewInternalServerError(err.Error())
	}

	if err := s.store.SetStatus(ctx, sessionID, models.SessionStatusRunning, models.SessionStatusStopped); err != nil {
		switch err {
		case session.ErrConflict, session.ErrNotFound:
			return utils.NewBadRequestError("session is not running")
		default:
			return utils.NewInternalServerError(err.Error())
		}
	}

	entry := models.SessionLog{
		Timestamp: time.Now().UTC(),
		Message:   "Stop requested by user",
		Severity:  models.LogSeverityInfo,
	}
	if err := s.store.AppendLog(ctx, sessionID, entry); err != nil {
		s.logger.Error("Failed to append stop log", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	s.logger.Info("Automation session stopped", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	})

	return nil
}

// Status returns the full session snapshot for polling
func (s *Service) Status(ctx context.Context, userID, sessionID string) (*models.AutomationSession, error) {
	sess, err := s.store.Get(ctx, userID, sessionID)
	if err != nil {
		if err == session.ErrNotFound {
			return nil, utils.NewNotFoundError("session not found")
		}
		return nil, utils.NewInternalServerError(err.Error())
	}
	return sess, nil
}

// List returns all of the owner's sessions, newest first
func (s *Service) List(ctx context.Context, userID string) ([]*models.AutomationSession, error) {
	sessions, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, utils.NewInternalServerError(err.Error())
	}
	return sessions, nil
}
