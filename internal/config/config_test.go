package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test. godotenv never overrides a key
// that is present, even when empty, so t.Setenv(key, "") is not enough.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Data:     DataConfig{BasePath: "/var/lib/contribute"},
		Upstream: UpstreamConfig{BaseURL: "https://opensupplyhub.org", Timeout: 20 * time.Second, BreakerFailures: 5, MatchPageSize: 10},
		Limits:   LimitsConfig{SubmitPerMinute: 6, SubmitBurst: 2},
		Tracker:  TrackerConfig{PollInterval: time.Minute},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logger.Level = "trace" }},
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }},
		{"upstream without scheme", func(c *Config) { c.Upstream.BaseURL = "opensupplyhub.org" }},
		{"zero upstream timeout", func(c *Config) { c.Upstream.Timeout = 0 }},
		{"zero breaker failures", func(c *Config) { c.Upstream.BreakerFailures = 0 }},
		{"zero submit burst", func(c *Config) { c.Limits.SubmitBurst = 0 }},
		{"sub-second poll", func(c *Config) { c.Tracker.PollInterval = 100 * time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	unsetEnv(t, "ENV", "UPSTREAM_URL", "SERVER_PORT", "SESSION_TTL", "TRACKER_POLL_INTERVAL")

	cfg, err := LoadConfig([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "https://opensupplyhub.org", cfg.Upstream.BaseURL)
	assert.Equal(t, time.Minute, cfg.Tracker.PollInterval)
	assert.Equal(t, 72*time.Hour, cfg.Session.TTL)
	assert.Equal(t, filepath.Join(dir, "submissions.db"), cfg.Data.SQLitePath())
	assert.Equal(t, filepath.Join(dir, "sessions"), cfg.Data.BadgerPath())
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# gateway\nSERVER_PORT=7000\nLOG_LEVEL=debug\nUPSTREAM_URL=https://staging.opensupplyhub.org/\nDISABLE_LIST_UPLOADING=true\n",
	), 0o600))

	unsetEnv(t, "SERVER_PORT", "UPSTREAM_URL", "DISABLE_LIST_UPLOADING")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig([]string{"-data-path", dir, "-env-file", envFile, "-port", "9000"})
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port, "flag beats .env")
	assert.Equal(t, "warn", cfg.Logger.Level, "env beats .env")
	assert.Equal(t, "https://staging.opensupplyhub.org", cfg.Upstream.BaseURL, ".env beats default, trailing slash trimmed")
	assert.True(t, cfg.Features.DisableListUploading)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SESSION_TTL", "forever")

	_, err := LoadConfig([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "none")})
	assert.ErrorContains(t, err, "SESSION_TTL")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/osh/data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "osh", "data"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("relative/dir", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "UNSET_TEST_KEY_XYZ", "default"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
