// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Remote store backends.
const (
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Remote RemoteConfig
	Server ServerConfig
	Streak StreakConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// IsProduction reports whether the app runs in production.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk locations.
type DataConfig struct {
	BasePath string // Holds the sqlite database and the local cache
}

// DatabasePath is the sqlite file used by the sqlite backend.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.BasePath, "rewire.db")
}

// CachePath is the badger directory for the local cache.
func (d DataConfig) CachePath() string {
	return filepath.Join(d.BasePath, "cache")
}

// RemoteConfig selects and configures the remote store.
type RemoteConfig struct {
	Backend           string        // sqlite or rest (default: sqlite)
	URL               string        // REST base URL, e.g. https://project.example.co/rest/v1/
	APIKey            string
	Timeout           time.Duration // Per-request timeout (default: 10s)
	RequestsPerSecond float64       // Client-side pacing (default: 10)
	Burst             int           // (default: 20)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port             string        // Server port (default: 8080)
	ReadTimeout      time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout     time.Duration // HTTP write timeout (default: 0, SSE streams are long-lived)
	IdleTimeout      time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins      []string      // Allowed origins (default: *)
	RateLimitPerMin  int           // Mutating requests per client per minute (default: 60)
	RateLimitBurst   int           // (default: 20)
	EnableTestRoutes bool          // unlock-next and reset routes (default: off in production)
}

// StreakConfig holds the poller and achievement timing.
type StreakConfig struct {
	TickInterval       time.Duration // default: 1s
	WriteBackSeconds   int64         // default: 60
	LongestSeconds     int64         // default: 300
	UnlockDisplayDelay time.Duration // default: 1.5s
	RewiringTargetDays int           // default: 90
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit command-line arguments.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("rewired", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the database and local cache")

	// Remote store flags
	backend := fs.String("remote-backend", "", "Remote store backend (sqlite, rest)")
	remoteURL := fs.String("remote-url", "", "REST remote store base URL")
	remoteKey := fs.String("remote-api-key", "", "REST remote store API key")
	remoteTimeout := fs.String("remote-timeout", "", "REST request timeout (default: 10s)")
	remoteRPS := fs.String("remote-rps", "", "REST requests per second (default: 10)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins (default: *)")
	testRoutes := fs.String("enable-test-routes", "", "Expose achievement test routes")

	// Streak flags
	tickInterval := fs.String("tick-interval", "", "Streak poll interval (default: 1s)")
	unlockDelay := fs.String("unlock-delay", "", "Delay before an unlock overlay is shown (default: 1.5s)")
	targetDays := fs.String("rewiring-target-days", "", "Days for 100% brain rewiring (default: 90)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	environment := getConfigValue(*env, "ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Environment: environment,
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Remote: RemoteConfig{
			Backend: strings.ToLower(getConfigValue(*backend, "REMOTE_BACKEND", BackendSQLite)),
			URL:     getConfigValue(*remoteURL, "REMOTE_URL", ""),
			APIKey:  getConfigValue(*remoteKey, "REMOTE_API_KEY", ""),
			Burst:   getIntConfigValue("", "REMOTE_BURST", 20),
		},
		Server: ServerConfig{
			Port:             getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins:      splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			RateLimitPerMin:  getIntConfigValue("", "RATE_LIMIT_PER_MINUTE", 60),
			RateLimitBurst:   getIntConfigValue("", "RATE_LIMIT_BURST", 20),
			EnableTestRoutes: getBoolConfigValue(*testRoutes, "ENABLE_TEST_ROUTES", environment != "production"),
		},
		Streak: StreakConfig{
			WriteBackSeconds:   int64(getIntConfigValue("", "STREAK_WRITE_BACK_SECONDS", 60)),
			LongestSeconds:     int64(getIntConfigValue("", "STREAK_LONGEST_SECONDS", 300)),
			RewiringTargetDays: getIntConfigValue(*targetDays, "REWIRING_TARGET_DAYS", 90),
		},
	}

	var err error
	if cfg.Remote.RequestsPerSecond, err = getFloatConfigValue(*remoteRPS, "REMOTE_RPS", 10); err != nil {
		return nil, err
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Remote.Timeout, *remoteTimeout, "REMOTE_TIMEOUT", "10s"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Streak.TickInterval, *tickInterval, "STREAK_TICK_INTERVAL", "1s"},
		{&cfg.Streak.UnlockDisplayDelay, *unlockDelay, "UNLOCK_DISPLAY_DELAY", "1500ms"},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationConfigValue(d.flag, d.envKey, d.fallback); err != nil {
			return nil, err
		}
	}

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
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
		return errors.New("data base path cannot be empty after expansion")
	}

	switch c.Remote.Backend {
	case BackendSQLite:
	case BackendREST:
		if c.Remote.URL == "" {
			return errors.New("REMOTE_URL is required for the rest backend")
		}
		if c.Remote.RequestsPerSecond <= 0 || c.Remote.Burst <= 0 {
			return errors.New("remote rate limit must be positive")
		}
	default:
		return fmt.Errorf("invalid remote backend: %s (must be sqlite or rest)", c.Remote.Backend)
	}

	if c.Streak.TickInterval <= 0 {
		return errors.New("streak tick interval must be positive")
	}
	if c.Streak.WriteBackSeconds <= 0 || c.Streak.LongestSeconds <= 0 {
		return errors.New("streak write-back intervals must be positive")
	}
	if c.Streak.UnlockDisplayDelay < 0 {
		return errors.New("unlock display delay cannot be negative")
	}
	if c.Streak.RewiringTargetDays <= 0 {
		return errors.New("rewiring target days must be positive")
	}

	if c.App.IsProduction() && c.Server.EnableTestRoutes {
		return errors.New("test routes cannot be enabled in production")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute. Defaults to ~/Rewire/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Rewire", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
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
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return result, nil
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
