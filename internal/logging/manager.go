package logging

import (
	"fmt"

	"applypilot/internal/config"
	"applypilot/internal/logging/adapters"
	"applypilot/internal/logging/types"
)

// Manager owns the process-wide logger and builds its adapters from
// configuration
type Manager struct {
	factory *AdapterFactory
	logger  *MultiLogger
}

// NewManager creates an uninitialized logging manager
func NewManager() *Manager {
	return &Manager{
		factory: NewAdapterFactory(),
		logger:  NewMultiLogger(),
	}
}

// Initialize sets the level and wires the configured adapters. When the
// configuration names no enabled adapter, a single stdout sink built from
// the top-level level/format settings keeps the service observable.
func (m *Manager) Initialize(cfg *config.Config) error {
	m.logger.SetLevel(types.ParseLevel(cfg.Logging.Level))

	added := 0
	for _, ac := range cfg.Logging.Adapters {
		if !ac.Enabled {
			continue
		}

		adapter, err := m.factory.CreateAdapter(AdapterConfig{
			Name:    ac.Name,
			Type:    ac.Type,
			Enabled: ac.Enabled,
			Options: ac.Options,
		})
		if err != nil {
			return fmt.Errorf("create adapter %s: %w", ac.Name, err)
		}
		if err := m.logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("add adapter %s: %w", ac.Name, err)
		}
		added++
	}

	if added == 0 {
		stdout := adapters.NewStdoutAdapter("stdout", adapters.StdoutConfig{
			Format: cfg.Logging.Format,
		})
		if err := m.logger.AddAdapter(stdout); err != nil {
			return fmt.Errorf("add stdout adapter: %w", err)
		}
	}
	return nil
}

// GetLogger returns the managed logger
func (m *Manager) GetLogger() Logger {
	return m.logger
}

// Close closes the managed logger's adapters
func (m *Manager) Close() error {
	if m.logger != nil {
		return m.logger.Close()
	}
	return nil
}

var globalManager *Manager

// InitializeLogging builds the global logging system from configuration
func InitializeLogging(cfg *config.Config) error {
	globalManager = NewManager()
	return globalManager.Initialize(cfg)
}

// GetGlobalLogger returns the global logger, falling back to a JSON stdout
// logger when InitializeLogging has not run, as in tests
func GetGlobalLogger() Logger {
	if globalManager == nil {
		manager := NewManager()
		manager.logger.AddAdapter(adapters.NewStdoutAdapter("stdout", adapters.StdoutConfig{
			Format: "json",
		}))
		globalManager = manager
	}
	return globalManager.GetLogger()
}

// CloseLogging closes the global logging system
func CloseLogging() error {
	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}
