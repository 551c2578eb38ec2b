// Package config loads settings from a YAML file, TASKS_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tasksync/tasks/internal/tasks/remote"
)

// Keys.
const (
	KeyRemoteURL      = "remote.url"
	KeyRemoteTimeout  = "remote.timeout"
	KeyDBPath         = "db.path"
	KeySyncInterval   = "sync.interval"
	KeyLogFile        = "log.file"
	KeyLogMaxSizeMB   = "log.max-size-mb"
	KeyLogMaxBackups  = "log.max-backups"
	KeyLogMaxAgeDays  = "log.max-age-days"
	KeyDashboardPort  = "dashboard.port"
	KeyNoColor        = "no-color"
	KeyVerbose        = "verbose"
	envPrefix         = "TASKS"
	configFileName    = "config.yaml"
	projectConfigDir  = ".tasks"
	explicitConfigEnv = "TASKS_CONFIG"
)

var (
	mu sync.RWMutex
	v  *viper.Viper
)

// Defaults returns the default value of every key.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyRemoteURL:     remote.DefaultBaseURL,
		KeyRemoteTimeout: "15s",
		KeyDBPath:        filepath.Join(projectConfigDir, "tasks.db"),
		KeySyncInterval:  "30s",
		KeyLogFile:       "",
		KeyLogMaxSizeMB:  10,
		KeyLogMaxBackups: 3,
		KeyLogMaxAgeDays: 28,
		KeyDashboardPort: 8080,
		KeyNoColor:       false,
		KeyVerbose:       false,
	}
}

// Initialize sets up configuration. It looks for a config file at
// $TASKS_CONFIG, then ./.tasks/config.yaml, then
// $HOME/.config/tasks/config.yaml. A missing file is not an error.
func Initialize() error {
	mu.Lock()
	defer mu.Unlock()

	nv := viper.New()
	for key, value := range Defaults() {
		nv.SetDefault(key, value)
	}

	nv.SetEnvPrefix(envPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	if path := configPath(); path != "" {
		nv.SetConfigFile(path)
		if err := nv.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v = nv
	return nil
}

// configPath returns the first config file that exists, or "".
func configPath() string {
	if explicit := os.Getenv(explicitConfigEnv); explicit != "" {
		return explicit
	}
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// SearchPaths lists where Initialize looks for a config file, in order.
func SearchPaths() []string {
	paths := []string{filepath.Join(projectConfigDir, configFileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tasks", configFileName))
	}
	return paths
}

// Reload re-reads the config file currently in use.
func Reload() error {
	mu.Lock()
	defer mu.Unlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	return nil
}

// BindFlags makes flags override file and environment values.
// Flag names are used as keys, so --db binds to "db" unless renamed in keys.
func BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	mu.Lock()
	defer mu.Unlock()

	if v == nil {
		return errors.New("config not initialized")
	}
	for flagName, key := range keys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flagName, err)
		}
	}
	return nil
}

func get() *viper.Viper {
	mu.RLock()
	cur := v
	mu.RUnlock()
	if cur != nil {
		return cur
	}

	// Not initialised: answer with defaults only.
	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		v = viper.New()
		for key, value := range Defaults() {
			v.SetDefault(key, value)
		}
	}
	return v
}

// GetString returns the value of key as a string.
func GetString(key string) string {
	return get().GetString(key)
}

// GetBool returns the value of key as a bool.
func GetBool(key string) bool {
	return get().GetBool(key)
}

// GetInt returns the value of key as an int.
func GetInt(key string) int {
	return get().GetInt(key)
}

// GetDuration returns the value of key as a duration.
func GetDuration(key string) time.Duration {
	return get().GetDuration(key)
}

// Set overrides key for the rest of the process.
func Set(key string, value interface{}) {
	get().Set(key, value)
}

// ConfigFileUsed returns the config file in use, or "".
func ConfigFileUsed() string {
	return get().ConfigFileUsed()
}

// AllSettings returns every effective setting.
func AllSettings() map[string]interface{} {
	return get().AllSettings()
}

// WriteDefault writes a config file holding the defaults to path.
// It refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(nest(Defaults()))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# tasks configuration\n# Environment variables TASKS_<SECTION>_<KEY> override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// nest turns dotted keys into nested maps for YAML output.
func nest(flat map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range flat {
		parts := strings.Split(key, ".")
		m := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := m[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				m[part] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = value
	}
	return out
}

// reset clears state between tests.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	v = nil
}
