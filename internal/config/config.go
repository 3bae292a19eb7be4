// Package config loads storefront settings from defaults, an optional
// config file and EMART_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "EMART"

const (
	CatalogBundled  = "bundled"
	CatalogDir      = "dir"
	CatalogPostgres = "postgres"
	CatalogHTTP     = "http"

	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port        string         `mapstructure:"port"`
	LogLevel    string         `mapstructure:"log_level"`
	DatabaseURL string         `mapstructure:"database_url"`
	Catalog     CatalogConfig  `mapstructure:"catalog"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Orders      OrdersConfig   `mapstructure:"orders"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Checkout    CheckoutConfig `mapstructure:"checkout"`
}

type CatalogConfig struct {
	Source  string        `mapstructure:"source"`
	Dir     string        `mapstructure:"dir"`
	URL     string        `mapstructure:"url"`
	Latency time.Duration `mapstructure:"latency"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	RedisURL    string `mapstructure:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	QuotaBytes  int    `mapstructure:"quota_bytes"`
}

type OrdersConfig struct {
	Backend string `mapstructure:"backend"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type CheckoutConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

var defaults = map[string]any{
	"port":                 "8080",
	"log_level":            "info",
	"database_url":         "",
	"catalog.source":       CatalogBundled,
	"catalog.dir":          "",
	"catalog.url":          "",
	"catalog.latency":      "0s",
	"storage.backend":      BackendFile,
	"storage.dir":          "./var/state",
	"storage.redis_url":    "",
	"storage.redis_prefix": "emart:",
	"storage.quota_bytes":  5 << 20,
	"orders.backend":       BackendMemory,
	"kafka.brokers":        []string{},
	"kafka.topic":          "orders",
	"metrics.enabled":      true,
	"metrics.token":        "",
	"checkout.rate_limit":  10,
	"checkout.rate_window": "1m",
}

// Source owns the viper instance so the file can be re-read on change.
type Source struct {
	v    *viper.Viper
	path string

	mu      sync.Mutex
	current *Config
}

// NewSource reads path (if non-empty) and returns a validated source.
func NewSource(path string) (*Source, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	s := &Source{v: v, path: path}
	cfg, err := s.decode()
	if err != nil {
		return nil, err
	}
	s.current = cfg
	return s, nil
}

// Load is NewSource(path).Config() for callers that never reload.
func Load(path string) (*Config, error) {
	s, err := NewSource(path)
	if err != nil {
		return nil, err
	}
	return s.Config(), nil
}

func (s *Source) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.current
	return &c
}

func (s *Source) decode() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and hands each valid result to
// onChange. Invalid edits are reported to onError and ignored. No-op when
// no file was given.
func (s *Source) Watch(onChange func(*Config), onError func(error)) {
	if s.path == "" {
		return
	}

	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := s.decode()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}

		s.mu.Lock()
		s.current = cfg
		s.mu.Unlock()

		onChange(cfg)
	})
	s.v.WatchConfig()
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}

	switch c.Catalog.Source {
	case CatalogBundled:
	case CatalogDir:
		if c.Catalog.Dir == "" {
			errs = append(errs, errors.New("catalog.dir is required for the dir source"))
		}
	case CatalogPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres catalog"))
		}
	case CatalogHTTP:
		if c.Catalog.URL == "" {
			errs = append(errs, errors.New("catalog.url is required for the http source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog.source %q", c.Catalog.Source))
	}
	if c.Catalog.Latency < 0 {
		errs = append(errs, errors.New("catalog.latency must not be negative"))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file backend"))
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Storage.QuotaBytes < 0 {
		errs = append(errs, errors.New("storage.quota_bytes must not be negative"))
	}

	switch c.Orders.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres order store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown orders.backend %q", c.Orders.Backend))
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}

	if c.Checkout.RateLimit < 0 || c.Checkout.RateWindow < 0 {
		errs = append(errs, errors.New("checkout rate limit must not be negative"))
	}

	return errors.Join(errs...)
}

// NeedsDatabase reports whether any component reads from Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Catalog.Source == CatalogPostgres ||
		c.Storage.Backend == BackendPostgres ||
		c.Orders.Backend == BackendPostgres
}
