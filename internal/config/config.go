// Package config loads the server configuration from an optional YAML file
// overlaid with CALLDISPATCH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jonwraymond/calldispatch/cache"
	"github.com/jonwraymond/calldispatch/observe"
	"github.com/jonwraymond/calldispatch/route"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: CALLDISPATCH_CACHE__REDIS__ADDR sets cache.redis.addr.
const EnvPrefix = "CALLDISPATCH_"

// DefaultPath is read when no file is given and it exists.
const DefaultPath = "calldispatch.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Cache backends.
const (
	BackendMemory  = "memory"
	BackendSturdyc = "sturdyc"
	BackendRedis   = "redis"
	BackendSQLite  = "sqlite"
	BackendNone    = "none"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Cache   CacheConfig   `koanf:"cache"`
	Observe ObserveConfig `koanf:"observe"`
}

type ServerConfig struct {
	Port   int    `koanf:"port"`
	Routes string `koanf:"routes"`

	// RateLimit is a server-wide request rate per second; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	// ClientRateLimit applies per client IP; 0 disables it.
	ClientRateLimit float64 `koanf:"client_rate_limit"`
	ClientBurst     int     `koanf:"client_burst"`

	// MaxConcurrent caps requests in flight; 0 disables it.
	MaxConcurrent int `koanf:"max_concurrent"`

	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Health  bool `koanf:"health"`
	Metrics bool `koanf:"metrics"`
}

type CacheConfig struct {
	Backend    string        `koanf:"backend"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxTTL     time.Duration `koanf:"max_ttl"`

	// Capacity bounds in-process backends; 0 is unbounded for memory.
	Capacity           int `koanf:"capacity"`
	Shards             int `koanf:"shards"`
	EvictionPercentage int `koanf:"eviction_percentage"`

	// Timeout and the breaker settings guard remote backends.
	Timeout         time.Duration `koanf:"timeout"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerReset    time.Duration `koanf:"breaker_reset"`

	Redis  RedisConfig  `koanf:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type SQLiteConfig struct {
	Path          string        `koanf:"path"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

type ObserveConfig struct {
	ServiceName string        `koanf:"service_name"`
	LogLevel    string        `koanf:"log_level"`
	Tracing     TracingConfig `koanf:"tracing"`
	Metrics     MetricsConfig `koanf:"metrics"`
}

type TracingConfig struct {
	Exporter  string  `koanf:"exporter"`
	SamplePct float64 `koanf:"sample_pct"`
}

type MetricsConfig struct {
	Exporter string `koanf:"exporter"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.burst":            50,
	"server.client_burst":     10,
	"server.max_body_bytes":   int64(10 << 20),
	"server.read_timeout":     "30s",
	"server.write_timeout":    "60s",
	"server.shutdown_timeout": "15s",
	"server.health":           true,
	"server.metrics":          true,

	"cache.backend":               BackendMemory,
	"cache.default_ttl":           "5m",
	"cache.max_ttl":               "1h",
	"cache.capacity":              10000,
	"cache.shards":                64,
	"cache.eviction_percentage":   10,
	"cache.timeout":               "250ms",
	"cache.breaker_failures":      5,
	"cache.breaker_reset":         "30s",
	"cache.redis.addr":            "127.0.0.1:6379",
	"cache.sqlite.path":           "calldispatch-cache.db",
	"cache.sqlite.purge_interval": "10m",

	"observe.service_name":       "calldispatch",
	"observe.log_level":          "info",
	"observe.tracing.exporter":   "none",
	"observe.tracing.sample_pct": 1.0,
	"observe.metrics.exporter":   "prometheus",
}

// Load reads path (or DefaultPath when path is empty and the file exists),
// applies environment overrides, then fills defaults for unset keys.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("config: default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	return &cfg, nil
}

// Validate reports the first unusable setting. The route document path is
// checked by the commands that need it.
func (c *Config) Validate() error {
	s := c.Server
	switch {
	case s.Port < 1 || s.Port > 65535:
		return fmt.Errorf("%w: server.port %d", ErrInvalid, s.Port)
	case s.RateLimit < 0 || s.ClientRateLimit < 0:
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalid)
	case s.MaxConcurrent < 0:
		return fmt.Errorf("%w: server.max_concurrent must not be negative", ErrInvalid)
	}

	cc := c.Cache
	switch cc.Backend {
	case BackendMemory, BackendNone:
	case BackendSturdyc:
		if err := c.SturdycConfig().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	case BackendRedis:
		if cc.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr is required", ErrInvalid)
		}
	case BackendSQLite:
		if cc.SQLite.Path == "" {
			return fmt.Errorf("%w: cache.sqlite.path is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: cache.backend %q", ErrInvalid, cc.Backend)
	}
	if cc.DefaultTTL < 0 || cc.MaxTTL < 0 {
		return fmt.Errorf("%w: cache ttls must not be negative", ErrInvalid)
	}

	obs := c.ObserverConfig("")
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Policy returns the cache TTL policy. The none backend stores nothing.
func (c *Config) Policy() cache.Policy {
	if c.Cache.Backend == BackendNone {
		return cache.NoCachePolicy()
	}
	return cache.Policy{DefaultTTL: c.Cache.DefaultTTL, MaxTTL: c.Cache.MaxTTL}
}

// SturdycConfig maps the cache section onto the sturdyc backend. sturdyc has
// one client-wide TTL, so the default TTL is used.
func (c *Config) SturdycConfig() cache.SturdycConfig {
	return cache.SturdycConfig{
		Capacity:           c.Cache.Capacity,
		NumShards:          c.Cache.Shards,
		TTL:                c.Cache.DefaultTTL,
		EvictionPercentage: c.Cache.EvictionPercentage,
	}
}

// CheckRoutes rejects caching a backend cannot honor. sturdyc expires every
// entry after its client TTL, so a call asking for a shorter TTL would keep
// results longer than it declared.
func (c *Config) CheckRoutes(calls []route.Call) error {
	if c.Cache.Backend != BackendSturdyc {
		return nil
	}
	policy := c.Policy()
	for _, call := range calls {
		if !call.Caching.Enabled || call.Caching.TTL <= 0 {
			continue
		}
		if ttl := policy.EffectiveTTL(call.Caching.TTL); ttl < c.Cache.DefaultTTL {
			return fmt.Errorf("%w: %s %s: caching.ttl %s is shorter than the sturdyc ttl %s (cache.default_ttl)",
				ErrInvalid, call.Method, call.Path, ttl, c.Cache.DefaultTTL)
		}
	}
	return nil
}

// ObserverConfig maps the observe section onto observe.Config.
func (c *Config) ObserverConfig(version string) observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName:    o.ServiceName,
		Version:        version,
		TraceExporter:  o.Tracing.Exporter,
		SampleRatio:    o.Tracing.SamplePct,
		MetricExporter: o.Metrics.Exporter,
		LogLevel:       o.LogLevel,
	}
}
