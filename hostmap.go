package hostmap

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/jpalmerr/hostmap/dashboard"
	"github.com/jpalmerr/hostmap/internal/aggregate"
	"github.com/jpalmerr/hostmap/internal/hub"
	"github.com/jpalmerr/hostmap/internal/metrics"
	"github.com/jpalmerr/hostmap/internal/probe"
	"github.com/jpalmerr/hostmap/internal/scanner"
	"github.com/jpalmerr/hostmap/internal/server"
	"github.com/jpalmerr/hostmap/internal/store"
)

const (
	defaultPort          = 8080
	defaultPingBinary    = "ping"
	defaultPingCount     = 3
	defaultPingTimeout   = 15 * time.Second
	defaultLookupURL     = "http://ip-api.com"
	defaultLookupTimeout = 5 * time.Second
	defaultLookupRate    = 45
	defaultCacheSize     = 4096
	defaultCacheTTL      = time.Hour
)

var (
	defaultFirst = netip.AddrFrom4([4]byte{0, 0, 0, 0})
	defaultLast  = netip.AddrFrom4([4]byte{255, 255, 255, 255})
)

// HostMap is the main orchestrator for scanning and dashboard serving.
//
// HostMap samples random IPv4 addresses, probes each one for reachability
// and location, keeps the latest result per address and pushes every update
// to connected dashboards. It is created using [New] with functional
// options and started with [HostMap.Start].
//
// The typical lifecycle is:
//
//	hm, err := hostmap.New(hostmap.WithPort(8080))
//	if err != nil {
//	    slog.Error("failed to create hostmap", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	hm.Start(ctx) // blocks until context cancelled
type HostMap struct {
	cfg     hmConfig
	sampler *scanner.Sampler
	logger  *slog.Logger
}

// New creates a new [HostMap] instance with the given options.
//
// Defaults:
//   - Port: 8080
//   - Concurrency: one worker per CPU
//   - Range: the whole IPv4 space
//   - Storage: in-memory
//   - Ping: "ping -c 3" with a 15s deadline
//   - Geolocation: http://ip-api.com, 5s timeout, 45 lookups per minute,
//     4096 cached results for 1 hour
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*HostMap, error) {
	cfg := hmConfig{
		port:          defaultPort,
		first:         defaultFirst,
		last:          defaultLast,
		pingBinary:    defaultPingBinary,
		pingCount:     defaultPingCount,
		pingTimeout:   defaultPingTimeout,
		lookupURL:     defaultLookupURL,
		lookupTimeout: defaultLookupTimeout,
		lookupRate:    defaultLookupRate,
		cacheSize:     defaultCacheSize,
		cacheTTL:      defaultCacheTTL,
		storage:       store.Options{Driver: store.DriverMemory},
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.concurrency == 0 {
		cfg.concurrency = runtime.NumCPU()
	}

	// default to slog.Default() if no logger provided
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}

	sampler, err := scanner.NewSampler(cfg.first, cfg.last, scanner.WithExcludeReserved(cfg.excludeReserved))
	if err != nil {
		return nil, fmt.Errorf("invalid address range: %w", err)
	}

	return &HostMap{
		cfg:     cfg,
		sampler: sampler,
		logger:  cfg.logger,
	}, nil
}

// Start begins scanning and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The HTTP server starts on the configured port
//   - Workers probe random addresses and store the latest result per host
//   - Every stored update is pushed to connected WebSocket clients
//
// If scanning halts (see [WithMaxConsecutiveFailures]) the dashboard keeps
// serving until the context is cancelled.
//
// Returns nil on graceful shutdown. Returns an error if storage cannot be
// opened, the HTTP server fails to start, or closing resources fails.
func (hm *HostMap) Start(ctx context.Context) error {
	hm.logger.Info("hostmap starting",
		"range", fmt.Sprintf("%s-%s", hm.cfg.first, hm.cfg.last),
		"addresses", humanize.Comma(int64(hm.sampler.Size())),
		"concurrency", hm.cfg.concurrency,
		"storage", hm.cfg.storage.Driver,
	)
	hm.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", hm.cfg.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	m := metrics.New()

	backend, err := store.Open(ctx, hm.cfg.storage, hm.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	broadcaster := hub.New(hm.logger, m)
	notifiers := []store.Notifier{broadcaster}
	if len(hm.cfg.recordCallbacks) > 0 {
		notifiers = append(notifiers, store.NotifierFunc(hm.invokeCallbacks))
	}
	hosts := store.New(backend, hm.logger, notifiers...)

	prober, closeLocator := hm.newProber(m)

	httpServer := server.NewServer(hosts, broadcaster, hm.cfg.port, dashboard.Assets, hm.cfg.title, hm.logger,
		server.WithMetrics(m.Registry()),
	)
	if err := httpServer.Start(ctx); err != nil {
		closeLocator()
		return multierr.Append(
			fmt.Errorf("failed to start HTTP server: %w", err),
			hosts.Close(),
		)
	}

	pool := scanner.NewPool(hm.sampler, prober, hm.cfg.concurrency, hm.logger, m,
		scanner.WithMaxConsecutiveFailures(hm.cfg.maxFailures),
	)
	pool.Start(ctx)

	// single consumer of pool results; in-flight results are still stored
	// after cancellation, so it runs detached from ctx
	agg := aggregate.New(hosts, hm.logger, m)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		agg.Run(context.WithoutCancel(ctx), pool.Results())
	}()

	select {
	case <-ctx.Done():
	case <-pool.Done():
		if err := pool.Err(); err != nil {
			hm.logger.Warn("scanning stopped, dashboard still serving", "error", err)
		}
		<-ctx.Done()
	}

	// cleanup: stop workers, drain results, then release resources
	pool.Stop()
	wg.Wait()
	broadcaster.Close()
	closeLocator()

	if err := hosts.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	hm.logger.Info("hostmap stopped")
	return nil
}

// newProber assembles the prober from the configured or default pinger and
// locator. The returned func releases the default lookup client.
func (hm *HostMap) newProber(m *metrics.Metrics) (*probe.Prober, func()) {
	var pinger probe.Pinger = hm.cfg.pinger
	if pinger == nil {
		pinger = probe.NewExecPinger(hm.cfg.pingBinary, hm.cfg.pingCount, hm.cfg.pingTimeout, probe.ExecRunner{})
	}

	closeLocator := func() {}
	var locator probe.Locator = hm.cfg.locator
	if locator == nil {
		client := probe.NewClient(hm.cfg.lookupURL, hm.cfg.lookupTimeout, hm.cfg.lookupRate)
		locator = client
		closeLocator = client.Close
	}
	if hm.cfg.cacheSize > 0 {
		locator = probe.NewCachedLocator(locator, hm.cfg.cacheSize, hm.cfg.cacheTTL, m)
	}

	return probe.NewProber(pinger, locator, hm.cfg.clock, hm.logger, m), closeLocator
}

// invokeCallbacks runs every record callback in registration order.
func (hm *HostMap) invokeCallbacks(rec Record) {
	for _, cb := range hm.cfg.recordCallbacks {
		invokeCallbackSafe(cb, rec, hm.logger)
	}
}

// Port returns the configured HTTP port for the dashboard server.
func (hm *HostMap) Port() int {
	return hm.cfg.port
}

// Concurrency returns the number of addresses probed at once.
func (hm *HostMap) Concurrency() int {
	return hm.cfg.concurrency
}

// AddressRange returns the configured inclusive sampling range.
func (hm *HostMap) AddressRange() (first, last netip.Addr) {
	return hm.cfg.first, hm.cfg.last
}

// AddressCount returns how many addresses can be sampled, after reserved
// blocks are excluded when configured.
func (hm *HostMap) AddressCount() uint64 {
	return hm.sampler.Size()
}

// invokeCallbackSafe calls a record callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Record), rec Record, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("record callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"host", rec.Host,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(rec)
}
