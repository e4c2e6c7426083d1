package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/some/path"},
		Remote: RemoteConfig{Backend: BackendSQLite},
		Streak: StreakConfig{
			TickInterval:       time.Second,
			WriteBackSeconds:   60,
			LongestSeconds:     300,
			UnlockDisplayDelay: time.Second,
			RewiringTargetDays: 90,
		},
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

func TestValidate_AllLogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		cfg := validConfig()
		cfg.Logger.Level = level
		assert.NoError(t, cfg.Validate(), level)
	}

	cfg := validConfig()
	cfg.Logger.Level = "trace"
	assert.ErrorContains(t, cfg.Validate(), "invalid log level")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }, "data base path"},
		{"unknown backend", func(c *Config) { c.Remote.Backend = "mongo" }, "invalid remote backend"},
		{"rest without url", func(c *Config) { c.Remote.Backend = BackendREST }, "REMOTE_URL"},
		{"rest without rate", func(c *Config) {
			c.Remote = RemoteConfig{Backend: BackendREST, URL: "http://x", Burst: 1}
		}, "rate limit"},
		{"zero tick", func(c *Config) { c.Streak.TickInterval = 0 }, "tick interval"},
		{"zero write-back", func(c *Config) { c.Streak.WriteBackSeconds = 0 }, "write-back"},
		{"negative delay", func(c *Config) { c.Streak.UnlockDisplayDelay = -time.Second }, "display delay"},
		{"zero target", func(c *Config) { c.Streak.RewiringTargetDays = 0 }, "target days"},
		{"test routes in production", func(c *Config) {
			c.App.Environment = "production"
			c.Server.EnableTestRoutes = true
		}, "production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DATA_PATH", "")
	t.Setenv("REMOTE_BACKEND", "")
	t.Setenv("ENABLE_TEST_ROUTES", "")

	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, BackendSQLite, cfg.Remote.Backend)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, float64(10), cfg.Remote.RequestsPerSecond)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Server.EnableTestRoutes)
	assert.Equal(t, time.Second, cfg.Streak.TickInterval)
	assert.Equal(t, int64(60), cfg.Streak.WriteBackSeconds)
	assert.Equal(t, int64(300), cfg.Streak.LongestSeconds)
	assert.Equal(t, 1500*time.Millisecond, cfg.Streak.UnlockDisplayDelay)
	assert.Equal(t, 90, cfg.Streak.RewiringTargetDays)
	assert.True(t, filepath.IsAbs(cfg.Data.BasePath))
	assert.Equal(t, filepath.Join(cfg.Data.BasePath, "rewire.db"), cfg.Data.DatabasePath())
}

func TestLoad_FlagsBeatEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "staging")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load([]string{
		"-env-file", filepath.Join(dir, "missing.env"),
		"-port", "7000",
		"-data-path", dir,
		"-tick-interval", "250ms",
	})
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, dir, cfg.Data.BasePath)
	assert.Equal(t, 250*time.Millisecond, cfg.Streak.TickInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_ProductionDisablesTestRoutes(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("ENABLE_TEST_ROUTES", "")

	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env"), "-data-path", t.TempDir()})
	require.NoError(t, err)
	assert.False(t, cfg.Server.EnableTestRoutes)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("STREAK_TICK_INTERVAL", "soon")

	_, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	assert.ErrorContains(t, err, "STREAK_TICK_INTERVAL")
}

func TestExpandDataPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := &Config{}
	require.NoError(t, cfg.expandDataPath())
	assert.Equal(t, filepath.Join(home, "Rewire", "data"), cfg.Data.BasePath)

	cfg = &Config{Data: DataConfig{BasePath: "~/streaks"}}
	require.NoError(t, cfg.expandDataPath())
	assert.Equal(t, filepath.Join(home, "streaks"), cfg.Data.BasePath)

	cfg = &Config{Data: DataConfig{BasePath: "relative/dir"}}
	require.NoError(t, cfg.expandDataPath())
	assert.True(t, filepath.IsAbs(cfg.Data.BasePath))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))
	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := `# Rewire
REWIRE_TEST_LEVEL=debug

QUOTED_VALUE="some value"
  SPACED_KEY  =  spaced value  
REWIRE_TEST_KEEP=from-file
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	t.Setenv("REWIRE_TEST_LEVEL", "")
	t.Setenv("QUOTED_VALUE", "")
	t.Setenv("SPACED_KEY", "")
	t.Setenv("REWIRE_TEST_KEEP", "from-env")

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "debug", os.Getenv("REWIRE_TEST_LEVEL"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "spaced value", os.Getenv("SPACED_KEY"))
	// Existing environment wins over the file.
	assert.Equal(t, "from-env", os.Getenv("REWIRE_TEST_KEEP"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VALID=1\nINVALID LINE\n"), 0o600))

	assert.ErrorContains(t, loadEnvFile(envFile), "invalid format")
	assert.Error(t, loadEnvFile("/nonexistent/file/.env"))
}
