package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Janus/server/internal/config"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JANUS_CONFIG", "JANUS_HTTP_ADDR", "JANUS_GRPC_ADDR", "JANUS_ENV",
		"JANUS_DB_DRIVER", "JANUS_DB_PATH", "JANUS_DATABASE_URL",
		"JANUS_SCAN_SOURCE", "JANUS_SCAN_FILE", "JANUS_REDIS_URL", "JANUS_REDIS_KEY",
		"JANUS_ENROLLMENT_FILE", "JANUS_CADENCE", "JANUS_CAPTURE_WINDOW",
		"JANUS_ATTENDANCE_WRITE_TIMEOUT", "JANUS_UNHEALTHY_AFTER", "JANUS_TIME_ZONE",
		"JANUS_LOG_LEVEL", "JANUS_LOG_FORMAT", "JANUS_ATTENDANCE_RETENTION_DAYS",
		"JANUS_PRUNE_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "janus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
	assert.Equal(t, time.Second, cfg.Cadence)
	assert.Equal(t, 10*time.Second, cfg.CaptureWindow)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
http_addr: ":9000"
db_driver: memory
scan_source: redis
redis_url: redis://localhost:6379/0
cadence: 500ms
capture_window: 8s
time_zone: UTC
log_format: json
attendance_retention_days: 90
`)
	t.Setenv("JANUS_HTTP_ADDR", ":9100")
	t.Setenv("JANUS_CAPTURE_WINDOW", "12s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTPAddr, "env wins over yaml")
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, "redis", cfg.ScanSource)
	assert.Equal(t, 500*time.Millisecond, cfg.Cadence)
	assert.Equal(t, 12*time.Second, cfg.CaptureWindow)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 90, cfg.AttendanceRetentionDays)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JANUS_CONFIG", writeConfig(t, "grpc_addr: \"\"\n"))

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.GRPCAddr)
}

func TestLoad_InvalidEnvValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("JANUS_ENV", "staging")
	t.Setenv("JANUS_UNHEALTHY_AFTER", "lots")
	t.Setenv("JANUS_CADENCE", "-1s")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 5, cfg.UnhealthyAfter)
	assert.Equal(t, time.Second, cfg.Cadence)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown driver", func(c *config.Config) { c.DBDriver = "mysql" }, `unknown db_driver "mysql"`},
		{"postgres without url", func(c *config.Config) { c.DBDriver = "postgres" }, "database_url is required"},
		{"redis without url", func(c *config.Config) { c.ScanSource = "redis" }, "redis_url is required"},
		{"window not above cadence", func(c *config.Config) { c.CaptureWindow = c.Cadence }, "must be longer than cadence"},
		{"zero cadence", func(c *config.Config) { c.Cadence = 0 }, "cadence must be positive"},
		{"bad zone", func(c *config.Config) { c.TimeZone = "Mars/Olympus" }, "time_zone"},
		{"bad level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad format", func(c *config.Config) { c.LogFormat = "xml" }, `unknown log_format "xml"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	require.NoError(t, config.Defaults().Validate())
}
