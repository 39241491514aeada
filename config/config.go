package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nested keys: NOTEBOOK_BACKEND__BASE_URL -> backend.base_url.
const EnvPrefix = "NOTEBOOK_"

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Backend struct {
		BaseURL        string        `yaml:"base_url" koanf:"base_url"`
		Timeout        time.Duration `yaml:"timeout" koanf:"timeout"`
		ProgressPerSec float64       `yaml:"progress_per_sec" koanf:"progress_per_sec"`
	} `yaml:"backend" koanf:"backend"`
	Storage struct {
		Driver           string `yaml:"driver" koanf:"driver"`
		Path             string `yaml:"path" koanf:"path"`
		RedisAddr        string `yaml:"redis_addr" koanf:"redis_addr"`
		RedisDB          int    `yaml:"redis_db" koanf:"redis_db"`
		ConnectionString string `yaml:"connection_string" koanf:"connection_string"`
	} `yaml:"storage" koanf:"storage"`
	Session struct {
		ProcessingGrace time.Duration `yaml:"processing_grace" koanf:"processing_grace"`
	} `yaml:"session" koanf:"session"`
	Speech struct {
		Locale         string   `yaml:"locale" koanf:"locale"`
		SynthesizerCmd string   `yaml:"synthesizer_cmd" koanf:"synthesizer_cmd"`
		RecognizerCmd  string   `yaml:"recognizer_cmd" koanf:"recognizer_cmd"`
		RecognizerArgs []string `yaml:"recognizer_args" koanf:"recognizer_args"`
	} `yaml:"speech" koanf:"speech"`
	Logging struct {
		File  string `yaml:"file" koanf:"file"`
		Level string `yaml:"level" koanf:"level"`
	} `yaml:"logging" koanf:"logging"`
}

// Dir returns the directory holding config, logs and the default store
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".notebook-ai")
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load loads configuration from path (or the default location when empty),
// then overlays NOTEBOOK_* environment variables
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to access config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("failed to load env overrides: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to path (or the default location when empty)
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the values Load cannot check by type alone
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must be non-negative")
	}
	if c.Backend.ProgressPerSec < 0 {
		return fmt.Errorf("backend.progress_per_sec must be non-negative")
	}
	if c.Session.ProcessingGrace < 0 {
		return fmt.Errorf("session.processing_grace must be non-negative")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage.connection_string is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q: must be one of sqlite, redis, postgres, memory", c.Storage.Driver)
	}

	return nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Backend.BaseURL = "http://localhost:8000/api/v1"
	cfg.Backend.Timeout = 0
	cfg.Backend.ProgressPerSec = 20

	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.Path = filepath.Join(Dir(), "state.db")
	cfg.Storage.RedisAddr = "localhost:6379"
	cfg.Storage.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"

	cfg.Session.ProcessingGrace = 5 * time.Second

	cfg.Speech.Locale = "vi-VN"
	cfg.Speech.SynthesizerCmd = "espeak-ng"
	cfg.Speech.RecognizerCmd = ""

	cfg.Logging.File = filepath.Join(Dir(), "logs", "notebook-ai.log")
	cfg.Logging.Level = "info"

	return cfg
}
