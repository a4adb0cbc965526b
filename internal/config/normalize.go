package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	c.Remote.TenantKey = strings.TrimSpace(c.Remote.TenantKey)
	c.Remote.APIToken = strings.TrimSpace(c.Remote.APIToken)
	if c.Remote.APIToken == "" {
		c.Remote.APIToken = strings.TrimSpace(os.Getenv("FELTSYNC_API_TOKEN"))
	}
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRemoteRequestTimeout
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.CycleInterval <= 0 {
		c.Sync.CycleInterval = defaultCycleInterval
	}
	if c.Sync.RetryBackoff <= 0 {
		c.Sync.RetryBackoff = defaultRetryBackoff
	}
	if c.Sync.RetryBackoffCap < c.Sync.RetryBackoff {
		c.Sync.RetryBackoffCap = defaultRetryBackoffCap
	}
	if c.Sync.StaleProcessingTimeout <= 0 {
		c.Sync.StaleProcessingTimeout = defaultStaleProcessingTimeout
	}
	if c.Sync.CompletedRetentionDays <= 0 {
		c.Sync.CompletedRetentionDays = defaultCompletedRetentionDays
	}
	if c.Sync.CycleHistoryLimit <= 0 {
		c.Sync.CycleHistoryLimit = defaultCycleHistoryLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
