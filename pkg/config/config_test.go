package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "does-not-exist.toml"))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, int64(32<<20), cfg.Download.SegmentThreshold)
	assert.Equal(t, 4, cfg.Download.Segments)
	assert.Equal(t, 3, cfg.Download.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.RetryBaseDelay)
	assert.Equal(t, 8*time.Second, cfg.Download.RetryMaxDelay)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
	assert.Equal(t, "lodestone", cfg.Network.UserAgent)
	assert.Equal(t, "https://libraries.minecraft.net", cfg.Repositories.Maven)
	assert.Equal(t, "shared", cfg.Layout.Mode)
}

func TestLoadUserFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[download]
concurrency = 16
retry_base_delay = "50ms"

[layout]
mode = "isolated"
root = "/srv/instances/main"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Download.Concurrency)
	assert.Equal(t, 50*time.Millisecond, cfg.Download.RetryBaseDelay)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4, cfg.Download.Segments)
	assert.Equal(t, "isolated", cfg.Layout.Mode)
	assert.Equal(t, "/srv/instances/main", cfg.Layout.Root)
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "does-not-exist.toml"))
	t.Setenv("LODESTONE_DOWNLOAD_CONCURRENCY", "12")
	t.Setenv("LODESTONE_NETWORK_TIMEOUT", "90s")
	// Keys with underscores in their own names must map correctly too.
	t.Setenv("LODESTONE_DOWNLOAD_MAX_RETRIES", "9")
	t.Setenv("LODESTONE_DOWNLOAD_RETRY_BASE_DELAY", "25ms")
	t.Setenv("LODESTONE_NETWORK_USER_AGENT", "lodestone-ci")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Download.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Network.Timeout)
	assert.Equal(t, 9, cfg.Download.MaxRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.Download.RetryBaseDelay)
	assert.Equal(t, "lodestone-ci", cfg.Network.UserAgent)
}

func TestLoadOverridesWinOverEverything(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "does-not-exist.toml"))
	t.Setenv("LODESTONE_DOWNLOAD_CONCURRENCY", "12")

	cfg, err := Load("", map[string]interface{}{
		"download.concurrency": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Download.Concurrency)
}

func TestDumpRoundTrips(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "does-not-exist.toml"))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(out), "concurrency = 4")
	assert.Contains(t, string(out), "retry_base_delay = '500ms'")

	// Feeding the dump back through Load yields the same configuration.
	path := filepath.Join(t.TempDir(), "dumped.toml")
	require.NoError(t, os.WriteFile(path, out, 0644))
	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestEngineConfigMapping(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "does-not-exist.toml"))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	ec := cfg.EngineConfig()
	assert.Equal(t, cfg.Download.Concurrency, ec.Concurrency)
	assert.Equal(t, cfg.Download.SegmentThreshold, ec.SegmentThreshold)
	assert.Equal(t, cfg.Network.Timeout, ec.RequestTimeout)
	assert.Equal(t, cfg.Network.UserAgent, ec.UserAgent)
}
