package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/typster/internal/config"
)

// CreateTestConfig returns a validated configuration pointing at site with
// pacing and backoff shrunk for tests.
func CreateTestConfig(t *testing.T, site *FakeSite) *config.Config {
	t.Helper()

	v := viper.New()
	v.Set("registry.url", site.RegistryURL())
	v.Set("registry.host", site.Host())
	v.Set("registry.max_empty_pages", 3)
	v.Set("crawl.host_url", site.URL())
	v.Set("http.request_interval", 0)
	v.Set("http.initial_backoff", time.Millisecond)
	v.Set("http.max_backoff", 5*time.Millisecond)
	v.Set("http.timeout", 5*time.Second)

	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

// WriteConfigFile writes content to a .typster.yml in dir and returns its path.
func WriteConfigFile(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, ".typster.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
