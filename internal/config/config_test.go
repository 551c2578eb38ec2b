package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// withConfig points Initialize at path for the duration of the test.
func withConfig(t *testing.T, path string) {
	t.Helper()
	t.Setenv(explicitConfigEnv, path)
	t.Cleanup(reset)
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
}

func TestDefaultsWithoutInitialize(t *testing.T) {
	reset()
	t.Cleanup(reset)

	if got := GetDuration(KeySyncInterval); got != 30*time.Second {
		t.Errorf("sync interval = %v, want 30s", got)
	}
	if got := GetInt(KeyDashboardPort); got != 8080 {
		t.Errorf("dashboard port = %d, want 8080", got)
	}
	if got := GetString(KeyDBPath); got != filepath.Join(".tasks", "tasks.db") {
		t.Errorf("db path = %q", got)
	}
}

func TestInitialize_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "remote:\n  url: http://localhost:9000/\nsync:\n  interval: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	withConfig(t, path)

	if got := GetString(KeyRemoteURL); got != "http://localhost:9000/" {
		t.Errorf("remote url = %q", got)
	}
	if got := GetDuration(KeySyncInterval); got != 5*time.Second {
		t.Errorf("sync interval = %v, want 5s", got)
	}
	if got := GetInt(KeyLogMaxBackups); got != 3 {
		t.Errorf("unset key should keep its default, got %d", got)
	}
	if got := ConfigFileUsed(); got != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", got, path)
	}
}

func TestInitialize_MissingExplicitFile(t *testing.T) {
	t.Setenv(explicitConfigEnv, filepath.Join(t.TempDir(), "nope.yaml"))
	t.Cleanup(reset)

	if err := Initialize(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  interval: 5s\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("TASKS_SYNC_INTERVAL", "1m")
	t.Setenv("TASKS_LOG_MAX_SIZE_MB", "42")

	withConfig(t, path)

	if got := GetDuration(KeySyncInterval); got != time.Minute {
		t.Errorf("sync interval = %v, want 1m", got)
	}
	if got := GetInt(KeyLogMaxSizeMB); got != 42 {
		t.Errorf("log max size = %d, want 42", got)
	}
}

func TestBindFlags(t *testing.T) {
	withConfig(t, "")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	if err := BindFlags(flags, map[string]string{"db": KeyDBPath}); err != nil {
		t.Fatalf("BindFlags() failed: %v", err)
	}
	if err := flags.Parse([]string{"--db", "/tmp/other.db"}); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if got := GetString(KeyDBPath); got != "/tmp/other.db" {
		t.Errorf("db path = %q, want flag value", got)
	}

	if err := BindFlags(flags, map[string]string{"missing": KeyDBPath}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  interval: 5s\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	withConfig(t, path)

	if err := os.WriteFile(path, []byte("sync:\n  interval: 7s\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if got := GetDuration(KeySyncInterval); got != 7*time.Second {
		t.Errorf("sync interval = %v, want 7s", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# tasks configuration") {
		t.Error("missing header comment")
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("written config is not YAML: %v", err)
	}
	sync, ok := parsed["sync"].(map[string]interface{})
	if !ok || sync["interval"] != "30s" {
		t.Errorf("sync section = %v", parsed["sync"])
	}

	if err := WriteDefault(path, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault(force) failed: %v", err)
	}

	// The written file round-trips through Initialize.
	withConfig(t, path)
	if got := GetInt(KeyDashboardPort); got != 8080 {
		t.Errorf("dashboard port = %d, want 8080", got)
	}
}
