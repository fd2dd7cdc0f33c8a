package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	offlinecache "github.com/always-cache/offline-cache"
	"github.com/always-cache/offline-cache/cache"
	offlinepages "github.com/always-cache/offline-cache/pkg/offline-pages"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment variable name.
const envPrefix = "OFFLINE_CACHE_"

var errNoOrigin = errors.New("please specify origin")

const (
	driverMemory = "memory"
	driverSQLite = "sqlite"
	driverRedis  = "redis"
)

type Config struct {
	Listen            string        `yaml:"listen" env:"LISTEN"`
	Origin            string        `yaml:"origin" env:"ORIGIN"`
	Host              string        `yaml:"host" env:"HOST"`
	Version           string        `yaml:"version" env:"VERSION"`
	Manifest          []string      `yaml:"manifest" env:"MANIFEST" envSeparator:","`
	APIPrefixes       []string      `yaml:"apiPrefixes" env:"API_PREFIXES" envSeparator:","`
	GuidePath         string        `yaml:"guidePath" env:"GUIDE_PATH"`
	ChatPath          string        `yaml:"chatPath" env:"CHAT_PATH"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout" env:"NAVIGATION_TIMEOUT"`
	EmergencyNumber   string        `yaml:"emergencyNumber" env:"EMERGENCY_NUMBER"`
	ServeErrorPages   bool          `yaml:"serveErrorPages" env:"SERVE_ERROR_PAGES"`
	OTLPEndpoint      string        `yaml:"otlpEndpoint" env:"OTLP_ENDPOINT"`
	Store             StoreConfig   `yaml:"store" envPrefix:"STORE_"`
}

type StoreConfig struct {
	// One of memory, sqlite or redis.
	Driver string      `yaml:"driver" env:"DRIVER"`
	SQLite SQLiteStore `yaml:"sqlite" envPrefix:"SQLITE_"`
	Redis  RedisStore  `yaml:"redis" envPrefix:"REDIS_"`
}

type SQLiteStore struct {
	// Database file name. Empty for a shared in-memory database.
	Filename string `yaml:"filename" env:"FILENAME"`
}

type RedisStore struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	DB       int    `yaml:"db" env:"DB"`
	Password string `yaml:"password" env:"PASSWORD"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
}

func defaultConfig() Config {
	return Config{
		Listen: ":8080",
		Store: StoreConfig{
			Driver: driverSQLite,
			SQLite: SQLiteStore{Filename: "offline-cache.db"},
			Redis:  RedisStore{Addr: "localhost:6379", Prefix: "offline-cache:"},
		},
	}
}

// getConfig reads the defaults, then the config file (if any), then the environment.
func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return config, fmt.Errorf("parse env: %w", err)
	}
	return config, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case driverMemory, driverSQLite, driverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.NavigationTimeout < 0 {
		return fmt.Errorf("negative navigation timeout %s", c.NavigationTimeout)
	}
	// empty means the default number
	if c.EmergencyNumber != "" && !offlinepages.Dialable(c.EmergencyNumber) {
		return fmt.Errorf("emergency number %q has no digits to dial", c.EmergencyNumber)
	}
	return nil
}

// originURL parses the origin. A bare address is taken to be an HTTPS host.
func (c Config) originURL() (url.URL, error) {
	if c.Origin == "" {
		return url.URL{}, errNoOrigin
	}
	originUrl, err := url.Parse(c.Origin)
	if err != nil {
		return url.URL{}, fmt.Errorf("could not parse origin: %w", err)
	}
	if originUrl.Scheme == "" || originUrl.Host == "" {
		if originUrl, err = url.Parse("https://" + c.Origin); err != nil {
			return url.URL{}, fmt.Errorf("could not parse origin: %w", err)
		}
	}
	return *originUrl, nil
}

// cacheConfig is the offline cache configuration, without registry, network and logger.
func (c Config) cacheConfig() offlinecache.Config {
	return offlinecache.Config{
		OriginHost:        c.Host,
		Version:           c.Version,
		Manifest:          c.Manifest,
		APIPrefixes:       c.APIPrefixes,
		GuidePath:         c.GuidePath,
		ChatPath:          c.ChatPath,
		NavigationTimeout: c.NavigationTimeout,
		EmergencyNumber:   c.EmergencyNumber,
		ServeErrorPages:   c.ServeErrorPages,
	}
}

// openRegistry opens the configured storage. The returned function releases it.
func (s StoreConfig) openRegistry() (cache.Registry, func() error, error) {
	noop := func() error { return nil }
	switch s.Driver {
	case driverMemory:
		return cache.NewMemRegistry(), noop, nil
	case driverSQLite:
		registry, err := cache.NewSQLiteRegistry(s.SQLite.Filename)
		if err != nil {
			return nil, noop, err
		}
		return registry, registry.Close, nil
	case driverRedis:
		registry := cache.NewRedisRegistry(cache.RedisConfig{
			Addr:     s.Redis.Addr,
			DB:       s.Redis.DB,
			Password: s.Redis.Password,
			Prefix:   s.Redis.Prefix,
		})
		return registry, registry.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown store driver %q", s.Driver)
}
