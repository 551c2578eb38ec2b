// Package logging builds the *log.Logger handed to every component.
//
// Output goes to stderr and, when a file is configured, to a size-rotated
// log file as well.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	// File to also write to; empty means stderr only
	File string

	// Rotation limits for File
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Quiet drops the stderr copy (file output is kept)
	Quiet bool

	// Stderr overrides os.Stderr, mainly for tests
	Stderr io.Writer
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Logger wraps a standard logger and the file it rotates, if any.
type Logger struct {
	*log.Logger
	file *lumberjack.Logger
}

// New creates a logger. The returned Logger must be closed to release the
// log file.
func New(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var writers []io.Writer
	if !config.Quiet {
		stderr := config.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writers = append(writers, stderr)
	}

	var file *lumberjack.Logger
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
		}
		writers = append(writers, file)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	return &Logger{
		Logger: log.New(out, "", log.LstdFlags),
		file:   file,
	}, nil
}

// Named returns a logger sharing this one's output with a "[name] " prefix.
func (l *Logger) Named(name string) *log.Logger {
	return log.New(l.Writer(), "["+name+"] ", l.Flags())
}

// Rotate starts a new log file. It is a no-op without one.
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
