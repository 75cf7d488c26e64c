// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration: a YAML file with
// environment overrides for the values that differ between deployments.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Relays  RelayConfig   `yaml:"relays"`
	Feed    FeedConfig    `yaml:"feed"`
	Cache   CacheConfig   `yaml:"cache"`
	Regions RegionsConfig `yaml:"regions"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// RelayConfig holds the relay pool settings.
type RelayConfig struct {
	URLs            []string `yaml:"urls" validate:"required,min=1,dive,required"`
	QueryTimeoutSec int      `yaml:"query_timeout_sec" validate:"min=1,max=120"`
}

// QueryTimeout returns the fixed per-query deadline.
func (c RelayConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSec) * time.Second
}

// FeedConfig holds the feed assembly settings.
type FeedConfig struct {
	// Authors is the allow-list of publishing identities; empty means the
	// feeds are open to any author the relays return.
	Authors     []string `yaml:"authors"`
	PageSize    int      `yaml:"page_size" validate:"min=1,max=200"`
	CacheTTLSec int      `yaml:"cache_ttl_sec" validate:"min=1"`
}

// CacheTTL returns how long assembled feed results stay cached.
func (c FeedConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// CacheConfig selects and sizes the result cache backend.
type CacheConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=memory sqlite"`
	Path       string `yaml:"path" validate:"required_if=Backend sqlite"`
	MaxEntries int    `yaml:"max_entries" validate:"min=0"`
}

// RegionsConfig points at the region descriptor file.
type RegionsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig holds the log settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// ParseLevel returns the logrus level for the configured name.
func (c LoggingConfig) ParseLevel() logrus.Level {
	switch c.Level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// defaults returns the baseline configuration before file and environment
// values are applied.
func defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Relays: RelayConfig{QueryTimeoutSec: 8},
		Feed: FeedConfig{
			PageSize:    50,
			CacheTTLSec: 60,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxEntries: 1024,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration file (if path is non-empty), applies
// environment overrides and validates the result. Local .env files are
// loaded best-effort first.
func Load(path string) (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Overload(f)
		}
	}

	cfg := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides file values from the environment. List values are
// comma-separated.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FERNWEH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FERNWEH_RELAY_URLS"); v != "" {
		cfg.Relays.URLs = splitList(v)
	}
	if v := os.Getenv("FERNWEH_AUTHORS"); v != "" {
		cfg.Feed.Authors = splitList(v)
	}
	if v := os.Getenv("FERNWEH_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("FERNWEH_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("FERNWEH_REGIONS_PATH"); v != "" {
		cfg.Regions.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FERNWEH_QUERY_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Relays.QueryTimeoutSec = n
		}
	}
	if v := os.Getenv("FERNWEH_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Feed.PageSize = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
