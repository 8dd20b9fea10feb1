package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DATAAGENT_SANDBOX_BACKEND
const EnvPrefix = "DATAAGENT"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// SandboxConfig holds execution configuration
type SandboxConfig struct {
	// Backend is interpreter, docker or podman
	Backend         string   `mapstructure:"backend"`
	TimeoutSec      int      `mapstructure:"timeout_sec"`
	MaxSteps        uint64   `mapstructure:"max_steps"`
	MaxOutputKB     int      `mapstructure:"max_output_kb"`
	FigureWidth     float64  `mapstructure:"figure_width"`
	FigureHeight    float64  `mapstructure:"figure_height"`
	AllowedBuiltins []string `mapstructure:"allowed_builtins"`
	ExtraDenylist   []string `mapstructure:"extra_denylist"`

	// container backends only
	Image    string `mapstructure:"image"`
	MemoryMB int    `mapstructure:"memory_mb"`
}

// DatasetConfig limits uploaded datasets
type DatasetConfig struct {
	MaxRows     int `mapstructure:"max_rows"`
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

// StorageConfig holds conversation store configuration
type StorageConfig struct {
	Path              string `mapstructure:"path"`
	RetentionDays     int    `mapstructure:"retention_days"`
	RetentionSchedule string `mapstructure:"retention_schedule"`
}

// TelemetryConfig holds metrics and tracing configuration
type TelemetryConfig struct {
	MetricsPort    int    `mapstructure:"metrics_port"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// New loads and validates the application configuration. Values come from
// defaults, then config.yaml in . or ./config, then DATAAGENT_* variables,
// which may also be set in a .env file.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("sandbox.backend", "interpreter")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.max_steps", 50_000_000)
	v.SetDefault("sandbox.max_output_kb", 256)
	v.SetDefault("sandbox.figure_width", 8.0)
	v.SetDefault("sandbox.figure_height", 5.0)
	v.SetDefault("sandbox.allowed_builtins", []string{"print", "len", "sum", "min", "max", "abs", "round", "int", "float"})
	v.SetDefault("sandbox.extra_denylist", []string{})
	v.SetDefault("sandbox.image", "dataagent-python:latest")
	v.SetDefault("sandbox.memory_mb", 512)

	v.SetDefault("dataset.max_rows", 1_000_000)
	v.SetDefault("dataset.max_upload_mb", 50)

	v.SetDefault("storage.path", "chat_history.db")
	v.SetDefault("storage.retention_days", 0)
	v.SetDefault("storage.retention_schedule", "")

	v.SetDefault("telemetry.metrics_port", 0)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "dataagent")
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	supportedBackends := map[string]bool{
		"interpreter": true,
		"docker":      true,
		"podman":      true,
	}
	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MaxOutputKB < 0 {
		return fmt.Errorf("sandbox.max_output_kb must not be negative, got: %d", c.Sandbox.MaxOutputKB)
	}

	if c.Sandbox.FigureWidth <= 0 || c.Sandbox.FigureHeight <= 0 {
		return fmt.Errorf("sandbox figure size must be positive, got: %gx%g", c.Sandbox.FigureWidth, c.Sandbox.FigureHeight)
	}

	if c.Sandbox.Backend != "interpreter" {
		if c.Sandbox.Image == "" {
			return fmt.Errorf("sandbox.image is required for the %s backend", c.Sandbox.Backend)
		}
		if c.Sandbox.MemoryMB <= 0 {
			return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
		}
	}

	if c.Dataset.MaxRows < 0 {
		return fmt.Errorf("dataset.max_rows must not be negative, got: %d", c.Dataset.MaxRows)
	}

	if c.Dataset.MaxUploadMB <= 0 {
		return fmt.Errorf("dataset.max_upload_mb must be positive, got: %d", c.Dataset.MaxUploadMB)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}

	if c.Storage.RetentionSchedule != "" && c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("storage.retention_days must be positive when storage.retention_schedule is set, got: %d", c.Storage.RetentionDays)
	}

	if c.Telemetry.MetricsPort < 0 || c.Telemetry.MetricsPort > 65535 {
		return fmt.Errorf("invalid telemetry.metrics_port: %d", c.Telemetry.MetricsPort)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetRetention returns how long an untouched session is kept, zero for ever
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// MaxOutputBytes returns the captured output cap in bytes
func (c *Config) MaxOutputBytes() int {
	return c.Sandbox.MaxOutputKB * 1024
}

// MaxUploadBytes returns the dataset upload cap in bytes
func (c *Config) MaxUploadBytes() int {
	return c.Dataset.MaxUploadMB * 1024 * 1024
}
