package adapters

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pathfinder/internal/logging/types"
)

// ZapAdapter forwards entries to a zap logger
type ZapAdapter struct {
	name string
	base *zap.Logger
}

// ZapConfig selects the zap preset
type ZapConfig struct {
	Pretty bool `yaml:"pretty"` // development console encoder with colored levels
}

// NewZapAdapter builds a zap logger that accepts every level; filtering
// happens upstream in the MultiLogger.
func NewZapAdapter(name string, config ZapConfig) (*ZapAdapter, error) {
	var cfg zap.Config
	if config.Pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.DisableCaller = true

	base, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return newZapAdapter(name, base), nil
}

func newZapAdapter(name string, base *zap.Logger) *ZapAdapter {
	return &ZapAdapter{name: name, base: base}
}

// Write writes a log entry through zap. Fatal is downgraded to error so the
// MultiLogger stays in charge of exiting.
func (a *ZapAdapter) Write(entry *types.LogEntry) error {
	fields := make([]zap.Field, 0, len(entry.Fields))
	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}

	switch entry.Level {
	case types.DebugLevel:
		a.base.Debug(entry.Message, fields...)
	case types.InfoLevel:
		a.base.Info(entry.Message, fields...)
	case types.WarnLevel:
		a.base.Warn(entry.Message, fields...)
	default:
		a.base.Error(entry.Message, fields...)
	}
	return nil
}

// Close flushes zap's buffers
func (a *ZapAdapter) Close() error {
	// Sync on a terminal returns EINVAL; nothing is lost in that case
	_ = a.base.Sync()
	return nil
}

func (a *ZapAdapter) Health() error { return nil }
func (a *ZapAdapter) Name() string  { return a.name }
