package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParse_EmptyConfig(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Concurrency != 0 {
		t.Errorf("Concurrency = %d, want 0", cfg.Concurrency)
	}
	if cfg.Range.First != "0.0.0.0" || cfg.Range.Last != "255.255.255.255" {
		t.Errorf("Range = %s-%s, want whole IPv4 space", cfg.Range.First, cfg.Range.Last)
	}
	if cfg.Range.ExcludeReserved {
		t.Error("ExcludeReserved should default to false")
	}
	if cfg.Ping.Binary != "ping" || cfg.Ping.Count != 3 || cfg.Ping.Timeout.Duration() != 15*time.Second {
		t.Errorf("Ping = %+v, want ping/3/15s", cfg.Ping)
	}
	if cfg.Geolocation.URL != "http://ip-api.com" {
		t.Errorf("Geolocation.URL = %q", cfg.Geolocation.URL)
	}
	if cfg.Geolocation.Timeout.Duration() != 5*time.Second {
		t.Errorf("Geolocation.Timeout = %v, want 5s", cfg.Geolocation.Timeout.Duration())
	}
	if *cfg.Geolocation.RatePerMinute != 45 {
		t.Errorf("Geolocation.RatePerMinute = %d, want 45", *cfg.Geolocation.RatePerMinute)
	}
	if *cfg.Geolocation.CacheSize != 4096 {
		t.Errorf("Geolocation.CacheSize = %d, want 4096", *cfg.Geolocation.CacheSize)
	}
	if cfg.Geolocation.CacheTTL.Duration() != time.Hour {
		t.Errorf("Geolocation.CacheTTL = %v, want 1h", cfg.Geolocation.CacheTTL.Duration())
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver = %q, want memory", cfg.Storage.Driver)
	}
}

func TestDefault_MatchesEmptyParse(t *testing.T) {
	parsed, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	def := Default()

	if def.Port != parsed.Port || def.Range != parsed.Range || def.Ping != parsed.Ping ||
		def.Storage != parsed.Storage || def.Geolocation.URL != parsed.Geolocation.URL {
		t.Errorf("Default() = %+v, Parse(nil) = %+v", def, parsed)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Census
port: 9090
log_level: debug
concurrency: 64
max_consecutive_failures: 100

range:
  first: 1.0.0.0
  last: 1.0.0.255
  exclude_reserved: true

ping:
  binary: /bin/ping
  count: 1
  timeout: 3s

geolocation:
  url: https://pro.ip-api.com
  timeout: 2s
  rate_per_minute: 0
  cache_size: 0
  cache_ttl: 10m

storage:
  driver: badger
  path: /var/lib/hostmap
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Census" {
		t.Errorf("Title = %q, want Census", cfg.Title)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if cfg.Concurrency != 64 {
		t.Errorf("Concurrency = %d, want 64", cfg.Concurrency)
	}
	if cfg.MaxConsecutiveFailures != 100 {
		t.Errorf("MaxConsecutiveFailures = %d, want 100", cfg.MaxConsecutiveFailures)
	}
	if !cfg.Range.ExcludeReserved {
		t.Error("ExcludeReserved = false, want true")
	}
	if cfg.Ping.Binary != "/bin/ping" || cfg.Ping.Count != 1 || cfg.Ping.Timeout.Duration() != 3*time.Second {
		t.Errorf("Ping = %+v", cfg.Ping)
	}
	// explicit zero must survive defaulting
	if *cfg.Geolocation.RatePerMinute != 0 {
		t.Errorf("RatePerMinute = %d, want 0", *cfg.Geolocation.RatePerMinute)
	}
	if *cfg.Geolocation.CacheSize != 0 {
		t.Errorf("CacheSize = %d, want 0", *cfg.Geolocation.CacheSize)
	}
	if cfg.Geolocation.CacheTTL.Duration() != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.Geolocation.CacheTTL.Duration())
	}
	if cfg.Storage.Driver != "badger" || cfg.Storage.Path != "/var/lib/hostmap" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}

	first, last, err := cfg.Range.Bounds()
	if err != nil {
		t.Fatalf("Bounds() error = %v", err)
	}
	if first.String() != "1.0.0.0" || last.String() != "1.0.0.255" {
		t.Errorf("Bounds() = %s-%s", first, last)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("HOSTMAP_TEST_DSN", "postgres://scan:secret@db/hosts")
	t.Setenv("HOSTMAP_TEST_GEO", "https://geo.internal")

	yaml := `
geolocation:
  url: ${HOSTMAP_TEST_GEO}
storage:
  driver: postgres
  dsn: ${HOSTMAP_TEST_DSN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Storage.DSN != "postgres://scan:secret@db/hosts" {
		t.Errorf("DSN = %q", cfg.Storage.DSN)
	}
	if cfg.Geolocation.URL != "https://geo.internal" {
		t.Errorf("URL = %q", cfg.Geolocation.URL)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
storage:
  driver: badger
  path: ${HOSTMAP_TEST_UNSET_DIR:-/tmp/hostmap}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Storage.Path != "/tmp/hostmap" {
		t.Errorf("Path = %q, want /tmp/hostmap", cfg.Storage.Path)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
storage:
  driver: postgres
  dsn: ${HOSTMAP_TEST_MISSING_DSN}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "HOSTMAP_TEST_MISSING_DSN") {
		t.Errorf("error = %v, want mention of variable name", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"port too large", "port: 70000", "port must be between"},
		{"negative port", "port: -1", "port must be between"},
		{"bad log level", "log_level: verbose", "log_level"},
		{"negative concurrency", "concurrency: -2", "concurrency cannot be negative"},
		{"negative failure limit", "max_consecutive_failures: -1", "max_consecutive_failures"},
		{"bad first", "range:\n  first: 300.0.0.1", "range.first"},
		{"ipv6 last", "range:\n  last: \"::1\"", "not IPv4"},
		{"inverted range", "range:\n  first: 10.0.0.2\n  last: 10.0.0.1", "is after"},
		{"negative ping count", "ping:\n  count: -1", "ping.count"},
		{"short ping timeout", "ping:\n  timeout: 500ms", "ping.timeout"},
		{"geo scheme", "geolocation:\n  url: ftp://geo", "scheme must be http or https"},
		{"negative rate", "geolocation:\n  rate_per_minute: -5", "rate_per_minute"},
		{"negative cache", "geolocation:\n  cache_size: -1", "cache_size"},
		{"unknown driver", "storage:\n  driver: sqlite", "storage.driver"},
		{"badger without path", "storage:\n  driver: badger", "storage.path is required"},
		{"postgres without dsn", "storage:\n  driver: postgres", "storage.dsn is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("port: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "10s", 10 * time.Second, false},
		{"milliseconds", "1500ms", 1500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ping timeout must be >= 1s, all valid inputs satisfy that
			yaml := "ping:\n  timeout: " + tt.input

			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Ping.Timeout.Duration() != tt.want {
				t.Errorf("Timeout = %v, want %v", cfg.Ping.Timeout.Duration(), tt.want)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/hostmap.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %v", err)
	}
}
