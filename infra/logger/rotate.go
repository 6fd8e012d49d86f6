package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating JSON log file.
type FileOptions struct {
	Path string
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	fileMu sync.RWMutex
	file   *lumberjack.Logger
)

// SetFile makes loggers created afterwards also write JSON to a rotating
// file. An empty Path stops file output.
func SetFile(o FileOptions) error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if o.Path == "" {
		return nil
	}
	if dir := filepath.Dir(o.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file = &lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   o.Compress,
	}
	return nil
}

// CloseFile flushes and closes the log file, if any.
func CloseFile() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func currentFile() io.Writer {
	fileMu.RLock()
	defer fileMu.RUnlock()
	if file == nil {
		return nil
	}
	return file
}
