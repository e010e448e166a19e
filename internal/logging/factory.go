package logging

import (
	"fmt"
	"time"

	"pathfinder/internal/logging/adapters"
	"pathfinder/internal/logging/types"
)

// AdapterFactory creates logging adapters based on configuration
type AdapterFactory struct{}

func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{}
}

// CreateAdapter creates a logging adapter based on the provided configuration
func (f *AdapterFactory) CreateAdapter(adapterConfig types.AdapterConfig) (types.LogAdapter, error) {
	switch adapterConfig.Type {
	case "stdout":
		return f.createStdoutAdapter(adapterConfig), nil
	case "file":
		return f.createFileAdapter(adapterConfig)
	case "zap":
		return adapters.NewZapAdapter(adapterConfig.Name, adapters.ZapConfig{
			Pretty: getBoolOption(adapterConfig.Options, "pretty", false),
		})
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", adapterConfig.Type)
	}
}

func (f *AdapterFactory) createStdoutAdapter(adapterConfig types.AdapterConfig) types.LogAdapter {
	config := adapters.StdoutConfig{
		Format:    getStringOption(adapterConfig.Options, "format", "json"),
		Colorized: getBoolOption(adapterConfig.Options, "colorized", false),
	}
	return adapters.NewStdoutAdapter(adapterConfig.Name, config)
}

func (f *AdapterFactory) createFileAdapter(adapterConfig types.AdapterConfig) (types.LogAdapter, error) {
	config := adapters.FileConfig{
		FilePath:       getStringOption(adapterConfig.Options, "file_path", ""),
		Format:         getStringOption(adapterConfig.Options, "format", "json"),
		MaxSize:        getInt64Option(adapterConfig.Options, "max_size", 0),
		MaxAge:         getDurationOption(adapterConfig.Options, "max_age", 0),
		MaxBackups:     getIntOption(adapterConfig.Options, "max_backups", 10),
		Compress:       getBoolOption(adapterConfig.Options, "compress", false),
		CreateDirs:     getBoolOption(adapterConfig.Options, "create_dirs", true),
		FileMode:       0644,
		SyncOnWrite:    getBoolOption(adapterConfig.Options, "sync_on_write", false),
		RotationPolicy: getStringOption(adapterConfig.Options, "rotation_policy", "size"),
	}

	if config.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for file adapter")
	}

	return adapters.NewFileAdapter(adapterConfig.Name, config)
}

// Helper functions to extract options with defaults. YAML decodes numbers
// as int and JSON as float64, so both are accepted.

func getStringOption(options map[string]interface{}, key string, defaultValue string) string {
	if str, ok := options[key].(string); ok {
		return str
	}
	return defaultValue
}

func getIntOption(options map[string]interface{}, key string, defaultValue int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return defaultValue
}

func getInt64Option(options map[string]interface{}, key string, defaultValue int64) int64 {
	switch v := options[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return defaultValue
}

func getBoolOption(options map[string]interface{}, key string, defaultValue bool) bool {
	if b, ok := options[key].(bool); ok {
		return b
	}
	return defaultValue
}

func getDurationOption(options map[string]interface{}, key string, defaultValue time.Duration) time.Duration {
	if str, ok := options[key].(string); ok {
		if duration, err := time.ParseDuration(str); err == nil {
			return duration
		}
	}
	return defaultValue
}
