package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applypilot/internal/api/middleware"
	"applypilot/internal/autoapply"
	"applypilot/internal/logging"
	"applypilot/pkg/models"
	"applypilot/pkg/utils"
)

// StartAutoApplyHandler starts a new automation session for the caller
func StartAutoApplyHandler(svc *autoapply.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.GetGlobalLogger()
		userID := middleware.UserID(c)

		var req models.StartAutoApplyRequest
		if err := c.Bind(&req); err != nil {
			logger.Error("Failed to bind start request", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "invalid_request",
				Message:   "Invalid request format",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		sessionID, err := svc.Start(c.Request().Context(), userID, &req)
		if err != nil {
			return writeServiceError(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.StartAutoApplyResponse{SessionID: sessionID})
	}
}

// SessionStatusHandler returns the full session snapshot for polling
func SessionStatusHandler(svc *autoapply.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		userID := middleware.UserID(c)
		sessionID := c.Param("sessionId")

		sess, err := svc.Status(c.Request().Context(), userID, sessionID)
		if err != nil {
			return writeServiceError(c, requestID, err)
		}

		return c.JSON(http.StatusOK, sess)
	}
}

// ListSessionsHandler returns all of the caller's sessions, newest first
func ListSessionsHandler(svc *autoapply.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		userID := middleware.UserID(c)

		sessions, err := svc.List(c.Request().Context(), userID)
		if err != nil {
			return writeServiceError(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.SessionListResponse{
			Sessions: sessions,
			Count:    len(sessions),
		})
	}
}

// StopAutoApplyHandler requests cancellation of a running session
func StopAutoApplyHandler(svc *autoapply.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		userID := middleware.UserID(c)
		sessionID := c.Param("sessionId")

		if err := svc.Stop(c.Request().Context(), userID, sessionID); err != nil {
			return writeServiceError(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.StopAutoApplyResponse{
			SessionID: sessionID,
			Message:   "stop requested",
		})
	}
}

// writeServiceError maps service errors onto the wire error shape
func writeServiceError(c echo.Context, requestID string, err error) error {
	var custom *utils.CustomError
	if errors.As(err, &custom) {
		return c.JSON(custom.Code, models.ErrorResponse{
			Error:     http.StatusText(custom.Code),
			Message:   custom.Error(),
			RequestID: requestID,
			Timestamp: time.Now(),
		})
	}

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:     "internal_error",
		Message:   err.Error(),
		RequestID: requestID,
		Timestamp: time.Now(),
	})
}
