// Package config holds the service configuration. Values come from defaults,
// an optional YAML file and environment overrides, in that order; the
// command line applies flags on top before calling Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sqlquest/internal/sqlrun"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	CORSOrigin        string        `yaml:"cors_origin"`
}

// EngineConfig selects the SQL driver for the throwaway stores and bounds
// each run.
type EngineConfig struct {
	Driver       string        `yaml:"driver"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or console
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      1 << 20,
			CORSOrigin:        "*",
		},
		Engine: EngineConfig{
			Driver:       sqlrun.DefaultDriver,
			QueryTimeout: sqlrun.DefaultQueryTimeout,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty) and then with environment overrides. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookupNonEmpty(lookup, "ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookupNonEmpty(lookup, "SQLQUEST_ENGINE_DRIVER"); ok {
		c.Engine.Driver = v
	}
	if v, ok := lookupNonEmpty(lookup, "SQLQUEST_QUERY_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SQLQUEST_QUERY_TIMEOUT: %w", err)
		}
		c.Engine.QueryTimeout = timeout
	}
	if v, ok := lookupNonEmpty(lookup, "SQLQUEST_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookupNonEmpty(lookup, "SQLQUEST_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	return nil
}

func lookupNonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		errs = append(errs, errors.New("server.read_header_timeout must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if !sqlrun.SupportedDriver(c.Engine.Driver) {
		errs = append(errs, fmt.Errorf("engine.driver %q is not one of %q, %q", c.Engine.Driver, sqlrun.DriverCGO, sqlrun.DriverPureGo))
	}
	if c.Engine.QueryTimeout <= 0 {
		errs = append(errs, errors.New("engine.query_timeout must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", c.Log.Format))
	}
	if c.Log.File != "" && (c.Log.MaxSizeMB <= 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0) {
		errs = append(errs, errors.New("log rotation settings must be non-negative with a positive max_size_mb"))
	}

	return errors.Join(errs...)
}
