package adapters

import (
	"fmt"
	"io"
	"os"
	"sync"

	"pathfinder/internal/logging/types"
)

// StdoutAdapter writes entries to stdout, or any writer handed to it
type StdoutAdapter struct {
	name      string
	format    string
	colorized bool
	out       io.Writer
	mu        sync.Mutex
}

// StdoutConfig represents configuration for the stdout adapter
type StdoutConfig struct {
	Format    string `yaml:"format"`    // json or text
	Colorized bool   `yaml:"colorized"` // only applies to text
	Writer    io.Writer
}

// NewStdoutAdapter creates a new stdout adapter
func NewStdoutAdapter(name string, config StdoutConfig) *StdoutAdapter {
	out := config.Writer
	if out == nil {
		out = os.Stdout
	}
	return &StdoutAdapter{
		name:      name,
		format:    config.Format,
		colorized: config.Colorized,
		out:       out,
	}
}

// Write writes a log entry to the configured writer
func (a *StdoutAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	output, err := formatEntry(entry, a.format, a.colorized)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	_, err = fmt.Fprintln(a.out, output)
	return err
}

func (a *StdoutAdapter) Close() error  { return nil }
func (a *StdoutAdapter) Health() error { return nil }
func (a *StdoutAdapter) Name() string  { return a.name }
