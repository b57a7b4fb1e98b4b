package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // "" disables the health endpoint

	Env string `yaml:"env"` // "dev" | "prod"

	// DB
	DBDriver    string `yaml:"db_driver"` // "sqlite" | "postgres" | "memory"
	DBPath      string `yaml:"db_path"`   // e.g. "./data/janus.db"
	DatabaseURL string `yaml:"database_url"`

	// Scan slot
	ScanSource   string `yaml:"scan_source"` // "file" | "redis" | "memory"
	ScanFilePath string `yaml:"scan_file"`
	RedisURL     string `yaml:"redis_url"`
	RedisKey     string `yaml:"redis_key"`

	EnrollmentFilePath string `yaml:"enrollment_file"`

	// Reconciliation timing
	Cadence              time.Duration `yaml:"cadence"`
	CaptureWindow        time.Duration `yaml:"capture_window"`
	AttendanceWriteLimit time.Duration `yaml:"attendance_write_timeout"`
	UnhealthyAfter       int           `yaml:"unhealthy_after"`

	// TimeZone names the location for date-only inputs and report days.
	TimeZone string `yaml:"time_zone"`

	LogLevel  string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format"` // text | json

	// Attendance retention
	AttendanceRetentionDays int           `yaml:"attendance_retention_days"` // 0 = keep forever
	PruneInterval           time.Duration `yaml:"prune_interval"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:             ":8080",
		GRPCAddr:             ":9090",
		Env:                  "dev",
		DBDriver:             "sqlite",
		DBPath:               "./data/janus.db",
		ScanSource:           "file",
		ScanFilePath:         "./db/latest-scan.txt",
		RedisKey:             "janus:scan:latest",
		EnrollmentFilePath:   "./db/fingerprint-db.txt",
		Cadence:              time.Second,
		CaptureWindow:        10 * time.Second,
		AttendanceWriteLimit: 5 * time.Second,
		UnhealthyAfter:       5,
		TimeZone:             "Local",
		LogLevel:             "info",
		LogFormat:            "text",
		PruneInterval:        6 * time.Hour,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if any), then JANUS_* environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) == "" {
		path = os.Getenv("JANUS_CONFIG")
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without a config file.
func FromEnv() (Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getenvDefault("JANUS_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getenvDefault("JANUS_GRPC_ADDR", c.GRPCAddr)

	c.Env = strings.ToLower(getenvDefault("JANUS_ENV", c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}

	c.DBDriver = strings.ToLower(getenvDefault("JANUS_DB_DRIVER", c.DBDriver))
	c.DBPath = getenvDefault("JANUS_DB_PATH", c.DBPath)
	c.DatabaseURL = getenvDefault("JANUS_DATABASE_URL", c.DatabaseURL)

	c.ScanSource = strings.ToLower(getenvDefault("JANUS_SCAN_SOURCE", c.ScanSource))
	c.ScanFilePath = getenvDefault("JANUS_SCAN_FILE", c.ScanFilePath)
	c.RedisURL = getenvDefault("JANUS_REDIS_URL", c.RedisURL)
	c.RedisKey = getenvDefault("JANUS_REDIS_KEY", c.RedisKey)
	c.EnrollmentFilePath = getenvDefault("JANUS_ENROLLMENT_FILE", c.EnrollmentFilePath)

	c.Cadence = getenvDuration("JANUS_CADENCE", c.Cadence)
	c.CaptureWindow = getenvDuration("JANUS_CAPTURE_WINDOW", c.CaptureWindow)
	c.AttendanceWriteLimit = getenvDuration("JANUS_ATTENDANCE_WRITE_TIMEOUT", c.AttendanceWriteLimit)
	c.UnhealthyAfter = getenvInt("JANUS_UNHEALTHY_AFTER", c.UnhealthyAfter)

	c.TimeZone = getenvDefault("JANUS_TIME_ZONE", c.TimeZone)
	c.LogLevel = strings.ToLower(getenvDefault("JANUS_LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getenvDefault("JANUS_LOG_FORMAT", c.LogFormat))

	c.AttendanceRetentionDays = getenvInt("JANUS_ATTENDANCE_RETENTION_DAYS", c.AttendanceRetentionDays)
	c.PruneInterval = getenvDuration("JANUS_PRUNE_INTERVAL", c.PruneInterval)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite driver"))
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("database_url is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown db_driver %q", c.DBDriver))
	}

	switch c.ScanSource {
	case "file":
		if strings.TrimSpace(c.ScanFilePath) == "" {
			errs = append(errs, errors.New("scan_file is required for the file scan source"))
		}
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("redis_url is required for the redis scan source"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown scan_source %q", c.ScanSource))
	}

	if c.Cadence <= 0 {
		errs = append(errs, errors.New("cadence must be positive"))
	}
	if c.CaptureWindow <= c.Cadence {
		errs = append(errs, fmt.Errorf("capture_window (%s) must be longer than cadence (%s)", c.CaptureWindow, c.Cadence))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func (c Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.TimeZone) {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone: %w", err)
	}
	return loc, nil
}

// Logger builds the process logger from the log settings.
func (c Config) Logger(w *os.File) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(v string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
