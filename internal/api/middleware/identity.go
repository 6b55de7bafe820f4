package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applypilot/pkg/models"
	"applypilot/pkg/utils"
)

// userIDHeader carries the authenticated user set by the API gateway
const userIDHeader = "X-User-ID"

// userIDContextKey is where RequireIdentity stores the user for handlers
const userIDContextKey = "user_id"

// RequireIdentity rejects requests without an authenticated user. The
// gateway terminates authentication and forwards the user in a trusted
// header; this service only enforces its presence.
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get(userIDHeader)
			if userID == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:     "unauthorized",
					Message:   "missing user identity",
					RequestID: utils.GenerateRequestID(),
					Timestamp: time.Now(),
				})
			}
			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user stored by RequireIdentity
func UserID(c echo.Context) string {
	userID, _ := c.Get(userIDContextKey).(string)
	return userID
}
