package adapters

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pathfinder/internal/logging/types"
)

// FileAdapter writes entries to a file with size and/or age based rotation
type FileAdapter struct {
	name         string
	config       FileConfig
	currentFile  *os.File
	currentSize  int64
	mu           sync.Mutex
	lastRotation time.Time
}

// FileConfig represents configuration for the file adapter
type FileConfig struct {
	FilePath       string        `yaml:"file_path"`
	Format         string        `yaml:"format"`          // json or text
	MaxSize        int64         `yaml:"max_size"`        // bytes, 0 = no limit
	MaxAge         time.Duration `yaml:"max_age"`         // 0 = no time rotation
	MaxBackups     int           `yaml:"max_backups"`     // rotated files kept
	Compress       bool          `yaml:"compress"`        // gzip rotated files
	CreateDirs     bool          `yaml:"create_dirs"`     // create parent directories
	FileMode       os.FileMode   `yaml:"file_mode"`       // file permissions
	SyncOnWrite    bool          `yaml:"sync_on_write"`   // fsync after each entry
	RotationPolicy string        `yaml:"rotation_policy"` // size, time, or both
}

// NewFileAdapter creates a new file adapter
func NewFileAdapter(name string, config FileConfig) (*FileAdapter, error) {
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 10
	}
	if config.RotationPolicy == "" {
		config.RotationPolicy = "size"
	}
	if config.Format == "" {
		config.Format = "json"
	}

	adapter := &FileAdapter{
		name:         name,
		config:       config,
		lastRotation: time.Now(),
	}

	if config.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directories: %w", err)
		}
	}

	if err := adapter.openFile(); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return adapter, nil
}

// Write writes a log entry to the file
func (a *FileAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shouldRotate() {
		if err := a.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	output, err := formatEntry(entry, a.config.Format, false)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	n, err := a.currentFile.WriteString(output + "\n")
	if err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}
	a.currentSize += int64(n)

	if a.config.SyncOnWrite {
		if err := a.currentFile.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
	}

	return nil
}

// Close closes the file adapter
func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentFile != nil {
		if err := a.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		a.currentFile = nil
	}
	return nil
}

// Health returns the health status of the adapter
func (a *FileAdapter) Health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentFile == nil {
		return fmt.Errorf("log file is not open")
	}
	if _, err := a.currentFile.Stat(); err != nil {
		return fmt.Errorf("log file is not accessible: %w", err)
	}
	return nil
}

func (a *FileAdapter) Name() string {
	return a.name
}

func (a *FileAdapter) openFile() error {
	file, err := os.OpenFile(a.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, a.config.FileMode)
	if err != nil {
		return err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	a.currentFile = file
	a.currentSize = stat.Size()
	return nil
}

func (a *FileAdapter) shouldRotate() bool {
	bySize := a.config.MaxSize > 0 && a.currentSize >= a.config.MaxSize
	byAge := a.config.MaxAge > 0 && time.Since(a.lastRotation) >= a.config.MaxAge

	switch a.config.RotationPolicy {
	case "time":
		return byAge
	case "both":
		return bySize || byAge
	default:
		return bySize
	}
}

// rotate moves the current file aside and reopens a fresh one
func (a *FileAdapter) rotate() error {
	if a.currentFile != nil {
		if err := a.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
		a.currentFile = nil
	}

	backupPath := fmt.Sprintf("%s.%s", a.config.FilePath, time.Now().Format("20060102-150405.000"))
	if err := os.Rename(a.config.FilePath, backupPath); err != nil {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if a.config.Compress {
		if err := compressFile(backupPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to compress rotated log file %s: %v\n", backupPath, err)
		}
	}

	if err := a.cleanupOldBackups(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to clean up old log backups: %v\n", err)
	}

	if err := a.openFile(); err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	a.lastRotation = time.Now()
	return nil
}

// compressFile gzips path into path.gz and removes the original
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

func (a *FileAdapter) cleanupOldBackups() error {
	dir := filepath.Dir(a.config.FilePath)
	baseName := filepath.Base(a.config.FilePath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, baseName+".") {
			backups = append(backups, name)
		}
	}

	// timestamped names sort chronologically; newest first
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	if len(backups) > a.config.MaxBackups {
		for _, backup := range backups[a.config.MaxBackups:] {
			if err := os.Remove(filepath.Join(dir, backup)); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old backup %s: %v\n", backup, err)
			}
		}
	}

	return nil
}
