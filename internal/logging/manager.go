package logging

import (
	"fmt"
	"sync"

	"pathfinder/internal/config"
	"pathfinder/internal/logging/adapters"
)

// Manager manages the logging system initialization and configuration
type Manager struct {
	factory *AdapterFactory
	logger  *MultiLogger
}

func NewManager() *Manager {
	return &Manager{
		factory: NewAdapterFactory(),
		logger:  NewMultiLogger(),
	}
}

// Initialize initializes the logging system from configuration
func (m *Manager) Initialize(cfg *config.Config) error {
	m.logger.SetLevel(ParseLogLevel(cfg.Logging.Level))

	enabled := 0
	for _, adapterConfig := range cfg.Logging.Adapters {
		if !adapterConfig.Enabled {
			continue
		}

		adapter, err := m.factory.CreateAdapter(AdapterConfig{
			Name:    adapterConfig.Name,
			Type:    adapterConfig.Type,
			Enabled: adapterConfig.Enabled,
			Options: adapterConfig.Options,
		})
		if err != nil {
			return fmt.Errorf("failed to create adapter %s: %w", adapterConfig.Name, err)
		}

		if err := m.logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add adapter %s: %w", adapterConfig.Name, err)
		}
		enabled++
	}

	if enabled > 0 {
		return nil
	}

	// No adapter list: single stdout adapter from the flat settings
	return m.logger.AddAdapter(adapters.NewStdoutAdapter("stdout", adapters.StdoutConfig{
		Format:    cfg.Logging.Format,
		Colorized: cfg.Logging.Format == "text",
	}))
}

// GetLogger returns the initialized logger
func (m *Manager) GetLogger() Logger {
	return m.logger
}

// Close closes the logging system
func (m *Manager) Close() error {
	if m.logger != nil {
		return m.logger.Close()
	}
	return nil
}

var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// InitializeLogging initializes the global logging system
func InitializeLogging(cfg *config.Config) error {
	manager := NewManager()
	if err := manager.Initialize(cfg); err != nil {
		return err
	}

	globalMu.Lock()
	globalManager = manager
	globalMu.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger, falling back to JSON on stdout
func GetGlobalLogger() Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		manager := NewManager()
		_ = manager.logger.AddAdapter(adapters.NewStdoutAdapter("fallback_stdout", adapters.StdoutConfig{Format: "json"}))
		globalManager = manager
	}
	return globalManager.GetLogger()
}

// CloseLogging closes the global logging system
func CloseLogging() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}

// ForRun returns the global logger tagged with a run identifier
func ForRun(runID string) Logger {
	return GetGlobalLogger().WithField("run_id", runID)
}
