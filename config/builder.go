package config

import (
	"github.com/jpalmerr/hostmap"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is not included; callers add [hostmap.WithLogger] themselves.
func BuildOptions(cfg *Config) ([]hostmap.Option, error) {
	first, last, err := cfg.Range.Bounds()
	if err != nil {
		return nil, err
	}

	opts := []hostmap.Option{
		hostmap.WithTitle(cfg.Title),
		hostmap.WithPort(cfg.Port),
		hostmap.WithConcurrency(cfg.Concurrency),
		hostmap.WithAddressRange(first, last),
		hostmap.WithExcludeReserved(cfg.Range.ExcludeReserved),
		hostmap.WithPing(cfg.Ping.Binary, cfg.Ping.Count, cfg.Ping.Timeout.Duration()),
		hostmap.WithStorage(cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.DSN),
		hostmap.WithMaxConsecutiveFailures(cfg.MaxConsecutiveFailures),
	}

	rate := DefaultGeolocationRate
	if cfg.Geolocation.RatePerMinute != nil {
		rate = *cfg.Geolocation.RatePerMinute
	}
	opts = append(opts, hostmap.WithGeolocation(cfg.Geolocation.URL, cfg.Geolocation.Timeout.Duration(), rate))

	cacheSize := DefaultGeolocationCacheSize
	if cfg.Geolocation.CacheSize != nil {
		cacheSize = *cfg.Geolocation.CacheSize
	}
	opts = append(opts, hostmap.WithLookupCache(cacheSize, cfg.Geolocation.CacheTTL.Duration()))

	return opts, nil
}
