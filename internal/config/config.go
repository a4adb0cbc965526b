package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for local state.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Remote contains configuration for the remote document store.
type Remote struct {
	BaseURL        string `toml:"base_url"`
	TenantKey      string `toml:"tenant_key"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Sync contains timing and retry configuration for the sync engine.
type Sync struct {
	// CycleInterval is the periodic full-cycle interval in seconds.
	CycleInterval int `toml:"cycle_interval"`
	// RetryBackoff is the base backoff step in seconds applied per retry.
	RetryBackoff int `toml:"retry_backoff"`
	// RetryBackoffCap is the maximum backoff in seconds.
	RetryBackoffCap int `toml:"retry_backoff_cap"`
	// StaleProcessingTimeout is the age in seconds after which a PROCESSING
	// entry is considered abandoned and reset to PENDING at startup.
	StaleProcessingTimeout int `toml:"stale_processing_timeout"`
	// CompletedRetentionDays controls how long completed queue entries are
	// kept before the maintenance sweep purges them.
	CompletedRetentionDays int `toml:"completed_retention_days"`
	// CycleHistoryLimit bounds the number of cycle metric rows retained.
	CycleHistoryLimit int `toml:"cycle_history_limit"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	CycleSummary   bool   `toml:"cycle_summary"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for feltsync.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Remote: document store endpoint and tenant credentials
//   - Sync: cycle interval, retry backoff, and maintenance windows
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Sync          Sync          `toml:"sync"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/feltsync/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("feltsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
