package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/feltsync/config.toml"
		}
		return fmt.Errorf("remote.base_url is required. Edit %s (create with 'feltsync config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Remote.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("remote.base_url %q is not a valid URL", c.Remote.BaseURL)
	}
	if c.Remote.TenantKey == "" {
		return errors.New("remote.tenant_key is required")
	}
	if strings.ContainsAny(c.Remote.TenantKey, "/ ") {
		return fmt.Errorf("remote.tenant_key %q must not contain slashes or spaces", c.Remote.TenantKey)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RetryBackoffCap < c.Sync.RetryBackoff {
		return errors.New("sync.retry_backoff_cap must be >= sync.retry_backoff")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
