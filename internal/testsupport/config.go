package testsupport

import (
	"path/filepath"
	"testing"

	"feltsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Remote.BaseURL = "http://127.0.0.1:0"
	cfg.Remote.TenantKey = "test-tenant"
	cfg.Sync.RetryBackoff = 30
	cfg.Sync.RetryBackoffCap = 900

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithRemote points the test config at a live endpoint (usually httptest).
func WithRemote(baseURL, tenant string) ConfigOption {
	return func(c *config.Config) {
		c.Remote.BaseURL = baseURL
		c.Remote.TenantKey = tenant
	}
}
