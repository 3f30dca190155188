// Package config loads holdfast settings from defaults, an optional YAML file,
// an optional .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/aretw0/holdfast/pkg/adapters/redis"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/janitor"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Config holds every runtime setting.
type Config struct {
	Addr   string `yaml:"addr" env:"HOLDFAST_ADDR"`
	APIKey string `yaml:"api_key" env:"HOLDFAST_API_KEY"`

	StoreDriver   string `yaml:"store_driver" env:"HOLDFAST_STORE_DRIVER"`
	StoreDir      string `yaml:"store_dir" env:"HOLDFAST_STORE_DIR"`
	RedisAddr     string `yaml:"redis_addr" env:"HOLDFAST_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"HOLDFAST_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"HOLDFAST_REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" env:"HOLDFAST_REDIS_PREFIX"`

	LockTimeout   time.Duration `yaml:"lock_timeout" env:"HOLDFAST_LOCK_TIMEOUT"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"HOLDFAST_IDLE_TIMEOUT"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"HOLDFAST_SWEEP_INTERVAL"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"HOLDFAST_TOKEN_TTL"`
	SendTimeout   time.Duration `yaml:"send_timeout" env:"HOLDFAST_SEND_TIMEOUT"`
	StoreTimeout  time.Duration `yaml:"store_timeout" env:"HOLDFAST_STORE_TIMEOUT"`

	LogLevel  string `yaml:"log_level" env:"HOLDFAST_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"HOLDFAST_LOG_FORMAT"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:          ":8080",
		StoreDriver:   DriverFile,
		StoreDir:      ".holdfast/sessions",
		RedisAddr:     "localhost:6379",
		RedisPrefix:   redis.DefaultPrefix,
		LockTimeout:   domain.DefaultLockTimeout,
		IdleTimeout:   domain.DefaultIdleTimeout,
		SweepInterval: janitor.DefaultInterval,
		TokenTTL:      domain.DefaultTokenTTL,
		SendTimeout:   domain.DefaultSendTimeout,
		StoreTimeout:  domain.DefaultStoreTimeout,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// path is empty) and the environment. Values from .env files are exported to
// the environment first; a missing .env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadEnvFiles exports the variables of each existing .env file without
// overriding variables that are already set. With no arguments it tries ".env".
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverRedis:
	case DriverFile:
		if c.StoreDir == "" {
			return fmt.Errorf("store_dir is required for the file driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	durations := map[string]time.Duration{
		"lock_timeout":   c.LockTimeout,
		"idle_timeout":   c.IdleTimeout,
		"sweep_interval": c.SweepInterval,
		"token_ttl":      c.TokenTTL,
		"send_timeout":   c.SendTimeout,
		"store_timeout":  c.StoreTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
