package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"pathfinder/pkg/utils"
)

// Appender writes one record at a time so everything appended survives an
// interrupted run. The header is written when the file is new or empty.
type Appender[T any] struct {
	mu    sync.Mutex
	f     *os.File
	w     *csv.Writer
	codec Codec[T]
	count int
}

// OpenAppender opens path for appending
func OpenAppender[T any](path string, codec Codec[T]) (*Appender[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, utils.NewStorageError("create directory", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, utils.NewStorageError("open for append", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, utils.NewStorageError("stat", err)
	}

	a := &Appender[T]{f: f, w: csv.NewWriter(f), codec: codec}
	if info.Size() == 0 {
		if err := a.writeLine(codec.Columns); err != nil {
			f.Close()
			return nil, err
		}
	}
	return a, nil
}

// Append writes one record and syncs it to disk
func (a *Appender[T]) Append(rec T) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writeLine(a.codec.Encode(rec)); err != nil {
		return err
	}
	a.count++
	return nil
}

// Count returns how many records were appended through a
func (a *Appender[T]) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Close flushes and closes the file
func (a *Appender[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.w.Flush()
	if err := a.w.Error(); err != nil {
		a.f.Close()
		return utils.NewStorageError("flush", err)
	}
	return a.f.Close()
}

func (a *Appender[T]) writeLine(fields []string) error {
	if err := a.w.Write(fields); err != nil {
		return utils.NewStorageError("append", err)
	}
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		return utils.NewStorageError("append", err)
	}
	if err := a.f.Sync(); err != nil {
		return utils.NewStorageError("sync", err)
	}
	return nil
}
