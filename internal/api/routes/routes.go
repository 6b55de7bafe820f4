package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"applypilot/internal/api/handlers"
	"applypilot/internal/api/middleware"
	"applypilot/internal/autoapply"
	"applypilot/internal/config"
	"applypilot/internal/session"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, svc *autoapply.Service, store session.Store) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.TimeoutConfig(cfg.Server.ReadTimeout))

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(store))
		health.GET("/live", handlers.LivenessHandler)
	}

	// API v1 routes, all owner-scoped
	v1 := e.Group("/api/v1", middleware.RequireIdentity())
	{
		autoApply := v1.Group("/auto-apply")
		{
			autoApply.POST("/start", handlers.StartAutoApplyHandler(svc))
			autoApply.GET("/status/:sessionId", handlers.SessionStatusHandler(svc))
			autoApply.GET("/sessions", handlers.ListSessionsHandler(svc))
			autoApply.POST("/stop/:sessionId", handlers.StopAutoApplyHandler(svc))
		}
	}

	// Root endpoint
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"service": "applypilot",
			"version": "1.0.0",
			"status":  "running",
		})
	})
}
