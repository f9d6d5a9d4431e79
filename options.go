package hostmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jpalmerr/hostmap/internal/store"
)

// Pinger checks whether a host is reachable.
//
// Ping returns the exit status of the check: 0 means reachable, any other
// value means unreachable. A non-nil error means the check itself could not
// run and the address is dropped.
type Pinger interface {
	Ping(ctx context.Context, addr string) (int, error)
}

// Locator resolves an address to a location. Errors are tolerated: the
// host is stored without location data.
type Locator interface {
	Locate(ctx context.Context, addr string) (*Location, error)
}

// Storage drivers accepted by [WithStorage].
const (
	StorageMemory   = store.DriverMemory
	StorageBadger   = store.DriverBadger
	StoragePostgres = store.DriverPostgres
)

// hmConfig holds mutable state during HostMap construction.
type hmConfig struct {
	title           string
	port            int
	concurrency     int
	first, last     netip.Addr
	excludeReserved bool

	pingBinary  string
	pingCount   int
	pingTimeout time.Duration

	lookupURL     string
	lookupTimeout time.Duration
	lookupRate    int
	cacheSize     int
	cacheTTL      time.Duration

	storage     store.Options
	maxFailures int

	logger          *slog.Logger
	recordCallbacks []func(Record)
	pinger          Pinger
	locator         Locator
	clock           clock.Clock
}

// Option is a function that configures a [HostMap] instance during construction.
//
// Options return an error if validation fails.
type Option func(*hmConfig) error

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 8080. Returns an error if the port is outside 1-65535.
func WithPort(port int) Option {
	return func(cfg *hmConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "HostMap".
func WithTitle(title string) Option {
	return func(cfg *hmConfig) error {
		cfg.title = title
		return nil
	}
}

// WithConcurrency sets the number of addresses probed at once.
//
// Zero means one per CPU. Returns an error if n is negative.
func WithConcurrency(n int) Option {
	return func(cfg *hmConfig) error {
		if n < 0 {
			return errors.New("concurrency cannot be negative")
		}
		cfg.concurrency = n
		return nil
	}
}

// WithAddressRange restricts sampling to the inclusive IPv4 range
// [first, last].
//
// Defaults to the whole IPv4 space.
//
// Example:
//
//	hm, err := hostmap.New(
//	    hostmap.WithAddressRange(
//	        netip.MustParseAddr("10.0.0.0"),
//	        netip.MustParseAddr("10.0.255.255"),
//	    ),
//	)
func WithAddressRange(first, last netip.Addr) Option {
	return func(cfg *hmConfig) error {
		if !first.Is4() || !last.Is4() {
			return fmt.Errorf("address range must be IPv4, got %s-%s", first, last)
		}
		if last.Less(first) {
			return fmt.Errorf("address range is inverted: %s > %s", first, last)
		}
		cfg.first, cfg.last = first, last
		return nil
	}
}

// WithExcludeReserved skips special-purpose IPv4 blocks (private, loopback,
// multicast and similar) when sampling.
func WithExcludeReserved(exclude bool) Option {
	return func(cfg *hmConfig) error {
		cfg.excludeReserved = exclude
		return nil
	}
}

// WithPing configures the system ping command used by the default [Pinger].
//
// Empty binary, zero count and zero timeout keep the defaults
// ("ping", 3 echo requests, 15s).
func WithPing(binary string, count int, timeout time.Duration) Option {
	return func(cfg *hmConfig) error {
		if count < 0 {
			return errors.New("ping count cannot be negative")
		}
		if timeout < 0 {
			return errors.New("ping timeout cannot be negative")
		}
		if binary != "" {
			cfg.pingBinary = binary
		}
		if count > 0 {
			cfg.pingCount = count
		}
		if timeout > 0 {
			cfg.pingTimeout = timeout
		}
		return nil
	}
}

// WithGeolocation configures the ip-api compatible lookup service used by
// the default [Locator].
//
// ratePerMinute caps outgoing lookups; 0 disables limiting.
func WithGeolocation(url string, timeout time.Duration, ratePerMinute int) Option {
	return func(cfg *hmConfig) error {
		if timeout < 0 {
			return errors.New("geolocation timeout cannot be negative")
		}
		if ratePerMinute < 0 {
			return errors.New("geolocation rate cannot be negative")
		}
		if url != "" {
			cfg.lookupURL = url
		}
		if timeout > 0 {
			cfg.lookupTimeout = timeout
		}
		cfg.lookupRate = ratePerMinute
		return nil
	}
}

// WithLookupCache caches successful lookups. A size of 0 disables the cache.
func WithLookupCache(size int, ttl time.Duration) Option {
	return func(cfg *hmConfig) error {
		if size < 0 {
			return errors.New("cache size cannot be negative")
		}
		if ttl < 0 {
			return errors.New("cache ttl cannot be negative")
		}
		cfg.cacheSize = size
		cfg.cacheTTL = ttl
		return nil
	}
}

// WithStorage selects the record backend.
//
// driver is [StorageMemory] (default), [StorageBadger] (path is the data
// directory) or [StoragePostgres] (dsn is the connection string).
func WithStorage(driver, path, dsn string) Option {
	return func(cfg *hmConfig) error {
		switch driver {
		case "", StorageMemory:
		case StorageBadger:
			if path == "" {
				return errors.New("badger storage requires a path")
			}
		case StoragePostgres:
			if dsn == "" {
				return errors.New("postgres storage requires a dsn")
			}
		default:
			return fmt.Errorf("unknown storage driver %q", driver)
		}
		cfg.storage = store.Options{Driver: driver, Path: path, DSN: dsn}
		return nil
	}
}

// WithMaxConsecutiveFailures stops scanning after n probe tasks fail in a
// row. The dashboard keeps serving. 0 (default) never stops.
func WithMaxConsecutiveFailures(n int) Option {
	return func(cfg *hmConfig) error {
		if n < 0 {
			return errors.New("max consecutive failures cannot be negative")
		}
		cfg.maxFailures = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the HostMap instance.
//
// If not specified, [slog.Default] is used. Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *hmConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithRecordCallback registers a function to be called after every stored
// host update, with the record as committed.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the write path and
// delay the next update until they return. Panics within callbacks are
// recovered and logged.
//
// Nil callbacks are silently ignored.
func WithRecordCallback(cb func(Record)) Option {
	return func(cfg *hmConfig) error {
		if cb == nil {
			return nil
		}
		cfg.recordCallbacks = append(cfg.recordCallbacks, cb)
		return nil
	}
}

// WithPinger replaces the system ping command.
func WithPinger(p Pinger) Option {
	return func(cfg *hmConfig) error {
		if p == nil {
			return errors.New("pinger cannot be nil")
		}
		cfg.pinger = p
		return nil
	}
}

// WithLocator replaces the geolocation service client. The lookup cache
// still applies unless disabled with [WithLookupCache].
func WithLocator(l Locator) Option {
	return func(cfg *hmConfig) error {
		if l == nil {
			return errors.New("locator cannot be nil")
		}
		cfg.locator = l
		return nil
	}
}

// WithClock sets the clock used to timestamp probe results.
func WithClock(c clock.Clock) Option {
	return func(cfg *hmConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}
