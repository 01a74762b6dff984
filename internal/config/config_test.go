package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "idlink.db", cfg.Store.Path)
	assert.Equal(t, 5*time.Second, cfg.Store.TxTimeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoSourcesMatchesDefault(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "idlink.yaml", `
server:
  host: 127.0.0.1
  port: 8080
store:
  path: /var/lib/idlink/contacts.db
ratelimit:
  window: 1m
`)

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "/var/lib/idlink/contacts.db", cfg.Store.Path)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "idlink.yaml", "server:\n  port: 8080\n")
	t.Setenv("IDLINK_SERVER_PORT", "9090")
	t.Setenv("IDLINK_STORE_TX_TIMEOUT", "250ms")
	t.Setenv("IDLINK_RATELIMIT_ENABLED", "false")
	t.Setenv("IDLINK_LOG_LEVEL", "debug")

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.TxTimeout)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "IDLINK_LOG_FORMAT"
	t.Cleanup(func() { os.Unsetenv(key) })
	os.Unsetenv(key)

	path := writeFile(t, ".env", key+"=console\n")

	cfg, err := Load(LoadOptions{DotEnv: path})
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("IDLINK_LOG_FORMAT", "json")
	path := writeFile(t, ".env", "IDLINK_LOG_FORMAT=console\n")

	cfg, err := Load(LoadOptions{DotEnv: path})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	_, err := Load(LoadOptions{DotEnv: filepath.Join(t.TempDir(), ".env")})
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "server: [port\n")

	_, err := Load(LoadOptions{File: path})
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port too large", "server:\n  port: 70000\n"},
		{"port zero", "server:\n  port: 0\n"},
		{"negative timeout", "store:\n  tx_timeout: -1s\n"},
		{"empty store path", "store:\n  path: \"\"\n"},
		{"zero rate limit", "ratelimit:\n  requests: 0\n"},
		{"unknown log level", "log:\n  level: loud\n"},
		{"unknown log format", "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "idlink.yaml", tt.yaml)

			_, err := Load(LoadOptions{File: path})
			assert.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"IDLINK_SERVER_PORT":         "server.port",
		"IDLINK_SERVER_READ_TIMEOUT": "server.read_timeout",
		"IDLINK_RATELIMIT_REQUESTS":  "ratelimit.requests",
		"IDLINK_STORE_TX_TIMEOUT":    "store.tx_timeout",
		"IDLINK_VERBOSE":             "verbose",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
