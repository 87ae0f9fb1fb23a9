package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the runtime configuration of the dcenergy tools.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
	Catalog CatalogConfig `yaml:"catalog"`
	History HistoryConfig `yaml:"history"`
	Serve   ServeConfig   `yaml:"serve"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// CatalogConfig points at an optional YAML file replacing the built-in
// equipment reference data.
type CatalogConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// HistoryConfig controls the PUE snapshot series kept per project. The
// series lives in the same backend as the store.
type HistoryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
}

// ServeConfig controls how often `serve` rescans its project directory.
// Zero disables rescanning.
type ServeConfig struct {
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "dcenergy:",
			},
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
		Serve: ServeConfig{ReloadInterval: 30 * time.Second},
	}
}

// Load reads a YAML file over the defaults. An empty path yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values a caller could not recover from later.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
		if c.Store.Redis.DB < 0 {
			return fmt.Errorf("store.redis.db must not be negative")
		}
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("history.retention must not be negative")
	}
	if c.Serve.ReloadInterval < 0 {
		return fmt.Errorf("serve.reload_interval must not be negative")
	}
	return nil
}

// BuildLogger creates the process logger for the configured level.
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
