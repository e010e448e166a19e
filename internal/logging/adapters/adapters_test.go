package adapters

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pathfinder/internal/logging/types"
)

func entry(msg string, fields types.Fields) *types.LogEntry {
	return &types.LogEntry{
		Level:     types.InfoLevel,
		Message:   msg,
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Fields:    fields,
	}
}

func TestFormatJSONInlinesFieldsAndErrors(t *testing.T) {
	out, err := formatJSON(entry("stage done", types.Fields{"new": 4, "error": errors.New("boom")}))
	require.NoError(t, err)
	assert.Contains(t, out, `"message":"stage done"`)
	assert.Contains(t, out, `"new":4`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestFormatTextSortsKeys(t *testing.T) {
	out := formatText(entry("m", types.Fields{"b": 2, "a": 1}), false)
	assert.True(t, strings.HasSuffix(out, "[INFO] m a=1 b=2"), out)
}

func TestFileAdapterRotatesAndCompresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	a, err := NewFileAdapter("file", FileConfig{
		FilePath:   path,
		Format:     "text",
		MaxSize:    10,
		MaxBackups: 1,
		Compress:   true,
	})
	require.NoError(t, err)

	require.NoError(t, a.Write(entry("first line is long enough", nil)))
	require.NoError(t, a.Write(entry("second", nil)))
	require.NoError(t, a.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)

	var gz int
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".gz") {
			gz++
		}
	}
	assert.Equal(t, 1, gz)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(current), "second")
	assert.NotContains(t, string(current), "first")
}

func TestZapAdapterForwardsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := newZapAdapter("zap", zap.New(core))

	require.NoError(t, a.Write(entry("hello", types.Fields{"chain": "apec"})))
	fatal := entry("bye", nil)
	fatal.Level = types.FatalLevel
	require.NoError(t, a.Write(fatal))

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "hello", all[0].Message)
	assert.Equal(t, "apec", all[0].ContextMap()["chain"])
	assert.Equal(t, zap.ErrorLevel, all[1].Level)
}
