// Package config loads and manages the lotto CLI configuration file stored at
// ~/.lotto/config.yaml, with overrides from .env files and LOTTO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".lotto"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. LOTTO_API_URL.
const EnvPrefix = "LOTTO"

// Storage drivers.
const (
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Defaults.
const (
	DefaultAPIURL       = "http://localhost:4000"
	DefaultTimeout      = 30 * time.Second
	DefaultCookieMaxAge = 7 * 24 * time.Hour
	DefaultRedisPrefix  = "lotto"
)

// RedisConfig locates the Redis server for the redis storage driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password,omitempty" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
	Prefix   string `yaml:"prefix" envconfig:"PREFIX"`
}

// StorageConfig selects and configures the durable storage backing.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER"`
	// Dir holds cookies.json and local.json for the file driver. Empty means
	// the config directory.
	Dir          string        `yaml:"dir,omitempty" envconfig:"DIR"`
	CookieMaxAge time.Duration `yaml:"cookie_max_age" envconfig:"COOKIE_MAX_AGE"`
	Redis        RedisConfig   `yaml:"redis" envconfig:"REDIS"`
}

// Config represents the contents of ~/.lotto/config.yaml.
type Config struct {
	APIURL    string        `yaml:"api_url" envconfig:"API_URL"`
	OTPURL    string        `yaml:"otp_url,omitempty" envconfig:"OTP_URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	LogLevel  string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string        `yaml:"log_format" envconfig:"LOG_FORMAT"`
	Storage   StorageConfig `yaml:"storage" envconfig:"STORAGE"`
}

// Dir returns the path to the config directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// Path returns the full path to the default config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// Load reads the config from ~/.lotto/config.yaml. See LoadFrom.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path, applies .env files and LOTTO_*
// environment overrides, and fills defaults. A missing file yields the
// defaults. JSON files are accepted too.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := loadDotenv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.fillDefaults(filepath.Dir(path))
	return cfg, nil
}

// loadDotenv loads each existing file. Variables already set win.
func loadDotenv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the config to ~/.lotto/config.yaml.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the URLs, the storage driver and the log settings.
func (c *Config) Validate() error {
	if err := checkURL("api_url", c.APIURL); err != nil {
		return err
	}
	if c.OTPURL != "" {
		if err := checkURL("otp_url", c.OTPURL); err != nil {
			return err
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	switch c.Storage.Driver {
	case DriverFile, DriverMemory:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want file, redis or memory)", c.Storage.Driver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q is not an absolute URL", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https, got %q", name, u.Scheme)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:    DefaultAPIURL,
		Timeout:   DefaultTimeout,
		LogLevel:  "warn",
		LogFormat: "text",
		Storage: StorageConfig{
			Driver:       DriverFile,
			CookieMaxAge: DefaultCookieMaxAge,
			Redis:        RedisConfig{Addr: "localhost:6379", Prefix: DefaultRedisPrefix},
		},
	}
}

func (c *Config) fillDefaults(configDir string) {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = configDir
	}
	if c.Storage.CookieMaxAge == 0 {
		c.Storage.CookieMaxAge = DefaultCookieMaxAge
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = DefaultRedisPrefix
	}
}
