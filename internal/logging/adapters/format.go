package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"pathfinder/internal/logging/types"
)

// formatJSON renders one entry as a single JSON object, fields inlined
func formatJSON(entry *types.LogEntry) (string, error) {
	logData := map[string]interface{}{
		"level":   entry.Level.String(),
		"message": entry.Message,
		"time":    entry.Timestamp.Format(time.RFC3339),
	}

	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		logData[k] = v
	}

	data, err := json.Marshal(logData)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatText renders one entry as "time [LEVEL] message k=v ..." with sorted keys
func formatText(entry *types.LogEntry, colorized bool) string {
	timestamp := entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")
	level := strings.ToUpper(entry.Level.String())
	if colorized {
		level = colorizeLevel(level)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", timestamp, level, entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}

	return b.String()
}

func formatEntry(entry *types.LogEntry, format string, colorized bool) (string, error) {
	if strings.EqualFold(format, "text") {
		return formatText(entry, colorized), nil
	}
	return formatJSON(entry)
}

// colorizeLevel adds ANSI color codes to log levels
func colorizeLevel(level string) string {
	const (
		red    = "\033[31m"
		yellow = "\033[33m"
		blue   = "\033[34m"
		gray   = "\033[90m"
		reset  = "\033[0m"
	)

	switch level {
	case "DEBUG":
		return gray + level + reset
	case "INFO":
		return blue + level + reset
	case "WARN":
		return yellow + level + reset
	case "ERROR", "FATAL":
		return red + level + reset
	default:
		return level
	}
}
