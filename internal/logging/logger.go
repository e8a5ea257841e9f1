package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Level      string // logrus level name; empty means info
	Verbose    bool   // forces debug level
	JSONFormat bool
	OutputFile string // path to log file (empty = stderr only)
	MaxSize    int64  // max size in bytes before rotation (default: 10MB)
	MaxBackups int    // number of old log files to keep (default: 3)
}

// New builds a logger writing to stderr and, when configured, to a log file. Standard
// output is left to command results. The returned closer releases the log file.
func New(config Config) (*logrus.Logger, io.Closer, error) {
	if config.MaxSize == 0 {
		config.MaxSize = 10 * 1024 * 1024 // 10MB
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	if config.Level != "" {
		parsed, err := logrus.ParseLevel(config.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	if config.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if config.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if config.OutputFile == "" {
		return logger, nopCloser{}, nil
	}

	dir := filepath.Dir(config.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	if err := rotateIfNeeded(config); err != nil {
		return nil, nil, fmt.Errorf("failed to rotate logs: %w", err)
	}

	file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, file))
	return logger, file, nil
}

// rotateIfNeeded shifts file -> file.1 -> file.2 ... once file exceeds MaxSize
func rotateIfNeeded(config Config) error {
	info, err := os.Stat(config.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.Size() < config.MaxSize {
		return nil
	}

	for i := config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", config.OutputFile, i)
		newPath := fmt.Sprintf("%s.%d", config.OutputFile, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}

	if err := os.Rename(config.OutputFile, config.OutputFile+".1"); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
