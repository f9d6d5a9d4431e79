package config

import (
	"runtime"
	"testing"

	"github.com/jpalmerr/hostmap"
)

func TestBuildOptions_Defaults(t *testing.T) {
	opts, err := BuildOptions(Default())
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	hm, err := hostmap.New(opts...)
	if err != nil {
		t.Fatalf("hostmap.New() error = %v", err)
	}

	if hm.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", hm.Port())
	}
	if hm.Concurrency() != runtime.NumCPU() {
		t.Errorf("Concurrency() = %d, want %d", hm.Concurrency(), runtime.NumCPU())
	}
	if hm.AddressCount() != 1<<32 {
		t.Errorf("AddressCount() = %d, want 2^32", hm.AddressCount())
	}
}

func TestBuildOptions_FromYAML(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 9191
concurrency: 12
range:
  first: 9.255.255.0
  last: 10.0.0.255
  exclude_reserved: true
storage:
  driver: badger
  path: /tmp/hostmap-test
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	hm, err := hostmap.New(opts...)
	if err != nil {
		t.Fatalf("hostmap.New() error = %v", err)
	}

	if hm.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", hm.Port())
	}
	if hm.Concurrency() != 12 {
		t.Errorf("Concurrency() = %d, want 12", hm.Concurrency())
	}
	first, last := hm.AddressRange()
	if first.String() != "9.255.255.0" || last.String() != "10.0.0.255" {
		t.Errorf("AddressRange() = %s-%s", first, last)
	}
	// 10.0.0.0/8 is excluded
	if hm.AddressCount() != 256 {
		t.Errorf("AddressCount() = %d, want 256", hm.AddressCount())
	}
}

func TestBuildOptions_InvalidRange(t *testing.T) {
	cfg := Default()
	cfg.Range.First = "not-an-address"

	if _, err := BuildOptions(cfg); err == nil {
		t.Fatal("BuildOptions() expected error for invalid range, got nil")
	}
}

func TestBuildOptions_ZeroRateAndCacheKept(t *testing.T) {
	cfg, err := Parse([]byte(`
geolocation:
  rate_per_minute: 0
  cache_size: 0
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := hostmap.New(opts...); err != nil {
		t.Fatalf("hostmap.New() error = %v", err)
	}
}
