package types

import (
	"context"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "info"
	}
}

// ParseLogLevel parses a string log level into LogLevel, defaulting to info
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Fields is the structured payload attached to an entry
type Fields = map[string]interface{}

// LogEntry represents a single log entry
type LogEntry struct {
	Level     LogLevel        `json:"level"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Fields    Fields          `json:"fields,omitempty"`
	Context   context.Context `json:"-"`
}

// LogAdapter defines the interface for log output adapters
type LogAdapter interface {
	// Write writes a log entry to the adapter's destination
	Write(entry *LogEntry) error

	// Close flushes and releases the destination
	Close() error

	// Health returns the health status of the adapter
	Health() error

	Name() string
}

// Logger defines the main logging interface
type Logger interface {
	Debug(message string, fields ...Fields)
	Info(message string, fields ...Fields)
	Warn(message string, fields ...Fields)
	Error(message string, fields ...Fields)
	Fatal(message string, fields ...Fields)

	// Contextual logging
	WithContext(ctx context.Context) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	Log(level LogLevel, message string, fields ...Fields)

	SetLevel(level LogLevel)
	GetLevel() LogLevel

	// Adapter management
	AddAdapter(adapter LogAdapter) error
	RemoveAdapter(adapterName string) error

	Close() error
}

// AdapterConfig represents configuration for a specific adapter
type AdapterConfig struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Enabled bool                   `yaml:"enabled"`
	Options map[string]interface{} `yaml:"options"`
}
