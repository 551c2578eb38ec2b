package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_StderrOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Stderr: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer logger.Close()

	logger.Named("sync").Printf("refreshed %d tasks", 3)

	if got := buf.String(); !strings.Contains(got, "[sync] ") || !strings.Contains(got, "refreshed 3 tasks") {
		t.Errorf("output = %q", got)
	}
}

func TestNew_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "tasks.log")

	config := DefaultConfig()
	config.File = path
	config.Stderr = &buf

	logger, err := New(config)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.Println("hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("stderr copy = %q", buf.String())
	}
}

func TestNew_QuietFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "tasks.log")

	logger, err := New(&Config{File: path, Quiet: true, Stderr: &buf, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer logger.Close()

	logger.Println("only in the file")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote to stderr: %q", buf.String())
	}

	if err := logger.Rotate(); err != nil {
		t.Fatalf("Rotate() failed: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "tasks-*.log"))
	if len(matches) != 1 {
		t.Errorf("expected one rotated backup, found %v", matches)
	}
}

func TestNew_QuietNoFile(t *testing.T) {
	logger, err := New(&Config{Quiet: true})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.Println("discarded")
	if err := logger.Rotate(); err != nil {
		t.Errorf("Rotate() without a file = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() without a file = %v", err)
	}
}
