package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"applypilot/internal/api/routes"
	"applypilot/internal/autoapply"
	"applypilot/internal/boards"
	"applypilot/internal/boards/indeed"
	"applypilot/internal/boards/remotive"
	"applypilot/internal/boards/weworkremotely"
	"applypilot/internal/browser"
	"applypilot/internal/captcha"
	"applypilot/internal/config"
	"applypilot/internal/llm"
	"applypilot/internal/logging"
	"applypilot/internal/profile"
	"applypilot/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting ApplyPilot")

	// Session store: Redis when configured, in-memory otherwise
	var store session.Store
	if cfg.Redis.URL != "" {
		redisStore, err := session.NewRedisStore(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", map[string]interface{}{
				"error": err.Error(),
			})
		}
		store = redisStore
		logger.Info("Using Redis session store")
	} else {
		store = session.NewMemoryStore()
		logger.Warn("REDIS_URL not set, using in-memory session store")
	}
	defer store.Close()

	// LLM manager, used as an extraction fallback by browser boards
	llmManager := llm.NewManager(cfg)
	if err := llmManager.Start(); err != nil {
		logger.Fatal("Failed to start LLM manager", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Shared navigation infrastructure
	engine := browser.NewEngine(cfg)
	solver := captcha.NewTwoCaptchaSolver(cfg)
	limiter := boards.NewLimiter(cfg)

	// Board registry, built from the enabled list
	registry := boards.NewRegistry()
	if cfg.BoardEnabled("indeed") {
		registry.Register(indeed.New(engine, solver, llmManager, cfg))
	}
	if cfg.BoardEnabled("remotive") {
		registry.Register(remotive.New())
	}
	if cfg.BoardEnabled("weworkremotely") {
		wwr, err := weworkremotely.New(cfg)
		if err != nil {
			logger.Warn("We Work Remotely adapter disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			registry.Register(wwr)
		}
	}
	logger.Info("Job boards registered", map[string]interface{}{
		"boards": len(registry.Sources()),
	})

	// Applicant profiles
	profiles := profile.NewHTTPProvider(cfg, logger)

	// Automation workflow
	runner := autoapply.NewRunner(cfg)
	orch := autoapply.NewOrchestrator(store, registry, limiter, profiles)
	svc := autoapply.NewService(store, runner, orch)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	routes.SetupRoutes(e, cfg, svc, store)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Stop accepting requests first, then wind down automations
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down HTTP server", map[string]interface{}{
				"error": err.Error(),
			})
		}

		if err := runner.Stop(); err != nil {
			logger.Error("Error stopping session runner", map[string]interface{}{
				"error": err.Error(),
			})
		}

		if err := llmManager.Stop(); err != nil {
			logger.Error("Error stopping LLM manager", map[string]interface{}{
				"error": err.Error(),
			})
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", map[string]interface{}{"address": address})

	if err := e.Start(address); err != nil {
		logger.Info("Server stopped", map[string]interface{}{"reason": err.Error()})
	}
}
