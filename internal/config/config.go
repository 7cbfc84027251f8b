// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Data     DataConfig
	Upstream UpstreamConfig
	Features FeaturesConfig
	Limits   LimitsConfig
	Session  SessionConfig
	Tracker  TrackerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // default: 8080
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 15s, SSE routes disable it per request
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins of the contribution UI
}

// DataConfig holds the on-disk locations of the gateway's stores.
type DataConfig struct {
	BasePath string
}

// SQLitePath is the submission cache database.
func (d DataConfig) SQLitePath() string { return filepath.Join(d.BasePath, "submissions.db") }

// BadgerPath is the session snapshot directory.
func (d DataConfig) BadgerPath() string { return filepath.Join(d.BasePath, "sessions") }

// IndexPath is the directory holding the moderation queue index.
func (d DataConfig) IndexPath() string { return filepath.Join(d.BasePath, "index") }

// KeyPath is the PASETO key file.
func (d DataConfig) KeyPath() string { return filepath.Join(d.BasePath, "token.key") }

// UpstreamConfig configures the Open Supply Hub REST client.
type UpstreamConfig struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	BreakerFailures int           // consecutive failures that open the breaker
	BreakerCooldown time.Duration // time the breaker stays open
	MatchPageSize   int           // size= of potential match searches
}

// FeaturesConfig holds the feature flags and the optional flags file that overrides them at runtime.
type FeaturesConfig struct {
	DisableListUploading      bool
	ShowAdditionalIdentifiers bool
	PrivateInstance           bool
	FlagsFile                 string
}

// LimitsConfig holds request throttling settings.
type LimitsConfig struct {
	SubmitPerMinute  float64
	SubmitBurst      int
	SessionPerMinute float64
}

// SessionConfig holds gateway session settings.
type SessionConfig struct {
	TTL           time.Duration
	StaffTokenTTL time.Duration
}

// TrackerConfig holds background refresh settings.
type TrackerConfig struct {
	PollInterval     time.Duration
	FilterOptionsTTL time.Duration
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("contribute", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the submission cache, session store and index")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins")

	upstreamURL := fs.String("upstream-url", "", "Open Supply Hub base URL")
	upstreamTimeout := fs.String("upstream-timeout", "", "Upstream request timeout (default: 20s)")

	flagsFile := fs.String("flags-file", "", "JSON feature flags file watched for changes")
	pollInterval := fs.String("poll-interval", "", "Pending submission refresh interval (default: 1m)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is not an error; existing env vars are never overridden.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Upstream: UpstreamConfig{
			BaseURL:         strings.TrimRight(getConfigValue(*upstreamURL, "UPSTREAM_URL", "https://opensupplyhub.org"), "/"),
			Token:           getConfigValue("", "UPSTREAM_TOKEN", ""),
			BreakerFailures: getIntConfigValue("", "UPSTREAM_BREAKER_FAILURES", 5),
			MatchPageSize:   getIntConfigValue("", "UPSTREAM_MATCH_PAGE_SIZE", 10),
		},
		Features: FeaturesConfig{
			DisableListUploading:      getBoolConfigValue("", "DISABLE_LIST_UPLOADING", false),
			ShowAdditionalIdentifiers: getBoolConfigValue("", "SHOW_ADDITIONAL_IDENTIFIERS", false),
			PrivateInstance:           getBoolConfigValue("", "PRIVATE_INSTANCE", false),
			FlagsFile:                 getConfigValue(*flagsFile, "FEATURE_FLAGS_FILE", ""),
		},
		Limits: LimitsConfig{
			SubmitPerMinute:  getFloatConfigValue("", "SUBMIT_PER_MINUTE", 6),
			SubmitBurst:      getIntConfigValue("", "SUBMIT_BURST", 2),
			SessionPerMinute: getFloatConfigValue("", "SESSION_PER_MINUTE", 30),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Upstream.Timeout, *upstreamTimeout, "UPSTREAM_TIMEOUT", "20s"},
		{&cfg.Upstream.BreakerCooldown, "", "UPSTREAM_BREAKER_COOLDOWN", "30s"},
		{&cfg.Session.TTL, "", "SESSION_TTL", "72h"},
		{&cfg.Session.StaffTokenTTL, "", "STAFF_TOKEN_TTL", "12h"},
		{&cfg.Tracker.PollInterval, *pollInterval, "TRACKER_POLL_INTERVAL", "1m"},
		{&cfg.Tracker.FilterOptionsTTL, "", "FILTER_OPTIONS_TTL", "1h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if cfg.Features.FlagsFile != "" {
		expanded, err := expandPath(cfg.Features.FlagsFile, "")
		if err != nil {
			return nil, fmt.Errorf("invalid flags file: %w", err)
		}
		cfg.Features.FlagsFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid upstream url: %q", c.Upstream.BaseURL)
	}

	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream timeout must be positive")
	}
	if c.Upstream.BreakerFailures < 1 {
		return errors.New("breaker failures must be at least 1")
	}
	if c.Upstream.MatchPageSize < 1 {
		return errors.New("match page size must be at least 1")
	}
	if c.Limits.SubmitPerMinute <= 0 || c.Limits.SubmitBurst < 1 {
		return errors.New("submit rate limit must allow at least one request")
	}
	if c.Tracker.PollInterval < time.Second {
		return fmt.Errorf("poll interval %s is below 1s", c.Tracker.PollInterval)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the data path to ~/.opensupplyhub/contribute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".opensupplyhub", "contribute")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
