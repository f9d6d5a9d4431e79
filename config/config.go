// Package config provides YAML configuration parsing for HostMap.
//
// This package enables running HostMap as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Internet Census
//	port: 8080
//	concurrency: 64
//
//	range:
//	  first: 1.0.0.0
//	  last: 223.255.255.255
//	  exclude_reserved: true
//
//	geolocation:
//	  url: ${GEO_URL:-http://ip-api.com}
//	  rate_per_minute: 45
//
//	storage:
//	  driver: postgres
//	  dsn: ${DATABASE_URL}
package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Parse] when a key is absent.
const (
	DefaultPort                 = 8080
	DefaultLogLevel             = "info"
	DefaultRangeFirst           = "0.0.0.0"
	DefaultRangeLast            = "255.255.255.255"
	DefaultPingBinary           = "ping"
	DefaultPingCount            = 3
	DefaultPingTimeout          = 15 * time.Second
	DefaultGeolocationURL       = "http://ip-api.com"
	DefaultGeolocationTimeout   = 5 * time.Second
	DefaultGeolocationRate      = 45
	DefaultGeolocationCacheSize = 4096
	DefaultGeolocationCacheTTL  = time.Hour
	DefaultStorageDriver        = "memory"
)

// Config is the root configuration structure for HostMap.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "HostMap" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Concurrency is the number of addresses probed at once.
	// 0 means one per CPU.
	Concurrency int `yaml:"concurrency"`

	// MaxConsecutiveFailures stops scanning after this many probe tasks
	// fail in a row. 0 never stops.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	Range       RangeConfig       `yaml:"range"`
	Ping        PingConfig        `yaml:"ping"`
	Geolocation GeolocationConfig `yaml:"geolocation"`
	Storage     StorageConfig     `yaml:"storage"`
}

// RangeConfig is the inclusive IPv4 range addresses are sampled from.
type RangeConfig struct {
	First string `yaml:"first"`
	Last  string `yaml:"last"`

	// ExcludeReserved skips private, loopback, multicast and other
	// special-purpose blocks.
	ExcludeReserved bool `yaml:"exclude_reserved"`
}

// Bounds parses First and Last.
func (r RangeConfig) Bounds() (first, last netip.Addr, err error) {
	first, err = parseIPv4(r.First)
	if err != nil {
		return first, last, fmt.Errorf("range.first: %w", err)
	}
	last, err = parseIPv4(r.Last)
	if err != nil {
		return first, last, fmt.Errorf("range.last: %w", err)
	}
	if last.Less(first) {
		return first, last, fmt.Errorf("range.first %s is after range.last %s", first, last)
	}
	return first, last, nil
}

// PingConfig configures the system reachability check.
type PingConfig struct {
	// Binary is the ping executable. Defaults to "ping".
	Binary string `yaml:"binary"`

	// Count is the number of echo requests per address. Defaults to 3.
	Count int `yaml:"count"`

	// Timeout bounds one reachability check. Defaults to 15s.
	Timeout Duration `yaml:"timeout"`
}

// GeolocationConfig configures the ip-api compatible lookup service.
type GeolocationConfig struct {
	// URL is the service base URL. Defaults to http://ip-api.com.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Timeout bounds one lookup. Defaults to 5s.
	Timeout Duration `yaml:"timeout"`

	// RatePerMinute caps outgoing lookups. Defaults to 45; 0 disables
	// limiting.
	RatePerMinute *int `yaml:"rate_per_minute"`

	// CacheSize is the number of lookups kept in memory. Defaults to 4096;
	// 0 disables the cache.
	CacheSize *int `yaml:"cache_size"`

	// CacheTTL is how long a cached lookup stays valid. Defaults to 1h.
	CacheTTL Duration `yaml:"cache_ttl"`
}

// StorageConfig selects the record backend.
type StorageConfig struct {
	// Driver is memory, badger or postgres. Defaults to memory.
	Driver string `yaml:"driver"`

	// Path is the BadgerDB data directory. Supports environment variables.
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string. Supports environment variables.
	DSN string `yaml:"dsn"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the geolocation URL and the storage
// path and DSN. Defaults are applied for every absent key.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills every zero-valued key with its default.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Range.First == "" {
		c.Range.First = DefaultRangeFirst
	}
	if c.Range.Last == "" {
		c.Range.Last = DefaultRangeLast
	}
	if c.Ping.Binary == "" {
		c.Ping.Binary = DefaultPingBinary
	}
	if c.Ping.Count == 0 {
		c.Ping.Count = DefaultPingCount
	}
	if c.Ping.Timeout == 0 {
		c.Ping.Timeout = Duration(DefaultPingTimeout)
	}
	if c.Geolocation.URL == "" {
		c.Geolocation.URL = DefaultGeolocationURL
	}
	if c.Geolocation.Timeout == 0 {
		c.Geolocation.Timeout = Duration(DefaultGeolocationTimeout)
	}
	if c.Geolocation.RatePerMinute == nil {
		n := DefaultGeolocationRate
		c.Geolocation.RatePerMinute = &n
	}
	if c.Geolocation.CacheSize == nil {
		n := DefaultGeolocationCacheSize
		c.Geolocation.CacheSize = &n
	}
	if c.Geolocation.CacheTTL == 0 {
		c.Geolocation.CacheTTL = Duration(DefaultGeolocationCacheTTL)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", c.Concurrency)
	}
	if c.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("max_consecutive_failures cannot be negative, got %d", c.MaxConsecutiveFailures)
	}

	if _, _, err := c.Range.Bounds(); err != nil {
		return err
	}

	if c.Ping.Count < 0 {
		return fmt.Errorf("ping.count cannot be negative, got %d", c.Ping.Count)
	}
	if c.Ping.Timeout.Duration() < time.Second {
		return fmt.Errorf("ping.timeout must be at least 1s, got %s", c.Ping.Timeout.Duration())
	}

	expanded, err := expandEnvVars(c.Geolocation.URL)
	if err != nil {
		return fmt.Errorf("geolocation.url: %w", err)
	}
	c.Geolocation.URL = expanded

	parsedURL, err := url.Parse(c.Geolocation.URL)
	if err != nil {
		return fmt.Errorf("geolocation.url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("geolocation.url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if c.Geolocation.Timeout.Duration() < 0 {
		return fmt.Errorf("geolocation.timeout cannot be negative, got %s", c.Geolocation.Timeout.Duration())
	}
	if *c.Geolocation.RatePerMinute < 0 {
		return fmt.Errorf("geolocation.rate_per_minute cannot be negative, got %d", *c.Geolocation.RatePerMinute)
	}
	if *c.Geolocation.CacheSize < 0 {
		return fmt.Errorf("geolocation.cache_size cannot be negative, got %d", *c.Geolocation.CacheSize)
	}
	if c.Geolocation.CacheTTL.Duration() < 0 {
		return fmt.Errorf("geolocation.cache_ttl cannot be negative, got %s", c.Geolocation.CacheTTL.Duration())
	}

	if c.Storage.Path, err = expandEnvVars(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	if c.Storage.DSN, err = expandEnvVars(c.Storage.DSN); err != nil {
		return fmt.Errorf("storage.dsn: %w", err)
	}

	switch c.Storage.Driver {
	case "memory":
	case "badger":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the badger driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be memory, badger, or postgres, got %q", c.Storage.Driver)
	}

	return nil
}

// parseIPv4 parses s as a dotted-quad IPv4 address.
func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("address %q is not IPv4", s)
	}
	return addr, nil
}
