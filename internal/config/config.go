// Package config loads gateway settings from an optional YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	ServiceName    string        `yaml:"service_name"`
	HTTPAddr       string        `yaml:"http_addr"`
	BackendURL     string        `yaml:"backend_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	Environment    string        `yaml:"environment"`
	OTLPEndpoint   string        `yaml:"otlp_endpoint"`

	Storage     StorageConfig `yaml:"storage"`
	CheckoutLog string        `yaml:"checkout_log"`
	// PaymentLimit makes the stub provider decline larger charges. Zero approves everything.
	PaymentLimit float64 `yaml:"payment_limit"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	RedisAddr  string `yaml:"redis_addr"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults(serviceName, httpAddr string) Config {
	return Config{
		ServiceName:    serviceName,
		HTTPAddr:       httpAddr,
		BackendURL:     "http://127.0.0.1:8000",
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		Environment:    "local",
		Storage: StorageConfig{
			Driver:     DriverMemory,
			RedisAddr:  "localhost:6379",
			SQLitePath: "campify-storage.db",
		},
	}
}

// Load reads .env when present, then CONFIG_FILE when set, then the
// environment variables, and validates the result.
func Load(serviceName, httpAddr string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults(serviceName, httpAddr)
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromFile overlays the YAML document at path. Keys it omits keep
// their current value.
func (c *Config) LoadFromFile(path string) error {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
	}
	return nil
}

// LoadFromEnv applies the environment variables that are set.
func (c *Config) LoadFromEnv() error {
	c.ServiceName = getEnv("OTEL_SERVICE_NAME", c.ServiceName)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.BackendURL = getEnv("BACKEND_API_URL", c.BackendURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.CheckoutLog = getEnv("CHECKOUT_LOG_PATH", c.CheckoutLog)

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT %q: %v: %w", v, err, ErrInvalidConfiguration)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("PAYMENT_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PAYMENT_LIMIT %q: %v: %w", v, err, ErrInvalidConfiguration)
		}
		c.PaymentLimit = f
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis storage needs an address: %w", ErrInvalidConfiguration)
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite storage needs a path: %w", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("unknown storage driver %q: %w", c.Storage.Driver, ErrInvalidConfiguration)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http address is required: %w", ErrInvalidConfiguration)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative: %w", ErrInvalidConfiguration)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
