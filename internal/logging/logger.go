package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"pathfinder/internal/logging/types"
)

// adapterSet is shared by a logger and every logger derived from it
type adapterSet struct {
	mu       sync.RWMutex
	adapters map[string]types.LogAdapter
	level    LogLevel
}

// MultiLogger fans every entry out to all registered adapters
type MultiLogger struct {
	shared  *adapterSet
	context context.Context
	fields  Fields
}

// NewMultiLogger creates a new MultiLogger instance
func NewMultiLogger() *MultiLogger {
	return &MultiLogger{
		shared: &adapterSet{
			adapters: make(map[string]types.LogAdapter),
			level:    InfoLevel,
		},
		context: context.Background(),
		fields:  make(Fields),
	}
}

func (l *MultiLogger) Debug(message string, fields ...Fields) {
	l.Log(DebugLevel, message, fields...)
}

func (l *MultiLogger) Info(message string, fields ...Fields) {
	l.Log(InfoLevel, message, fields...)
}

func (l *MultiLogger) Warn(message string, fields ...Fields) {
	l.Log(WarnLevel, message, fields...)
}

func (l *MultiLogger) Error(message string, fields ...Fields) {
	l.Log(ErrorLevel, message, fields...)
}

// Fatal logs a fatal message, closes the adapters and exits
func (l *MultiLogger) Fatal(message string, fields ...Fields) {
	l.Log(FatalLevel, message, fields...)
	l.Close()
	os.Exit(1)
}

// Log logs a message at the specified level
func (l *MultiLogger) Log(level LogLevel, message string, fields ...Fields) {
	l.shared.mu.RLock()
	defer l.shared.mu.RUnlock()

	if level < l.shared.level {
		return
	}

	entry := &types.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Context:   l.context,
		Fields:    l.mergeFields(fields...),
	}

	for name, adapter := range l.shared.adapters {
		if err := adapter.Write(entry); err != nil {
			// stderr, not the logger itself, to avoid recursion
			fmt.Fprintf(os.Stderr, "logging adapter %s error: %v\n", name, err)
		}
	}
}

// WithContext returns a new logger with the specified context
func (l *MultiLogger) WithContext(ctx context.Context) Logger {
	return &MultiLogger{shared: l.shared, context: ctx, fields: l.copyFields()}
}

// WithField returns a new logger with the specified field
func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	fields := l.copyFields()
	fields[key] = value
	return &MultiLogger{shared: l.shared, context: l.context, fields: fields}
}

// WithFields returns a new logger with the specified fields
func (l *MultiLogger) WithFields(fields Fields) Logger {
	merged := l.copyFields()
	for k, v := range fields {
		merged[k] = v
	}
	return &MultiLogger{shared: l.shared, context: l.context, fields: merged}
}

// SetLevel sets the minimum log level for this logger and its children
func (l *MultiLogger) SetLevel(level LogLevel) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.level = level
}

func (l *MultiLogger) GetLevel() LogLevel {
	l.shared.mu.RLock()
	defer l.shared.mu.RUnlock()
	return l.shared.level
}

// AddAdapter adds a new log adapter
func (l *MultiLogger) AddAdapter(adapter types.LogAdapter) error {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	name := adapter.Name()
	if _, exists := l.shared.adapters[name]; exists {
		return fmt.Errorf("adapter %s already exists", name)
	}

	l.shared.adapters[name] = adapter
	return nil
}

// RemoveAdapter closes and removes a log adapter
func (l *MultiLogger) RemoveAdapter(adapterName string) error {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	adapter, exists := l.shared.adapters[adapterName]
	if !exists {
		return fmt.Errorf("adapter %s not found", adapterName)
	}

	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter %s: %w", adapterName, err)
	}

	delete(l.shared.adapters, adapterName)
	return nil
}

// Close closes all adapters
func (l *MultiLogger) Close() error {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	var errs []string
	for name, adapter := range l.shared.adapters {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("adapter %s: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close adapters: %s", strings.Join(errs, ", "))
	}
	return nil
}

func (l *MultiLogger) copyFields() Fields {
	fields := make(Fields, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return fields
}

func (l *MultiLogger) mergeFields(additional ...Fields) Fields {
	fields := l.copyFields()
	for _, fieldMap := range additional {
		for k, v := range fieldMap {
			fields[k] = v
		}
	}
	return fields
}

// NewNopLogger returns a logger without adapters; entries are dropped
func NewNopLogger() *MultiLogger {
	return NewMultiLogger()
}
