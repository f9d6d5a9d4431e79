package probe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/jpalmerr/hostmap/internal/metrics"
)

// Pinger performs a reachability check and returns its status code.
type Pinger interface {
	Ping(ctx context.Context, addr string) (int, error)
}

// Locator resolves an address to a location.
type Locator interface {
	Locate(ctx context.Context, addr string) (*Location, error)
}

// Prober combines one reachability check and one geolocation lookup.
//
// Prober is safe for concurrent use when its Pinger and Locator are.
type Prober struct {
	pinger  Pinger
	locator Locator
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProber creates a [Prober]. A nil clock uses the wall clock and a nil
// logger uses slog.Default().
func NewProber(pinger Pinger, locator Locator, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Prober {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		pinger:  pinger,
		locator: locator,
		clock:   clk,
		logger:  logger,
		metrics: m,
	}
}

// Probe checks addr and looks up its location.
//
// A lookup failure yields a Result with a nil Location. An error is only
// returned when the reachability check could not be executed; the caller
// should drop that address.
func (p *Prober) Probe(ctx context.Context, addr string) (Result, error) {
	code, err := p.pinger.Ping(ctx, addr)
	if err != nil {
		return Result{}, fmt.Errorf("reachability check for %s: %w", addr, err)
	}

	loc, err := p.locator.Locate(ctx, addr)
	if err != nil {
		p.logger.Debug("geolocation lookup failed", "address", addr, "error", err)
		p.metrics.LookupFailed()
		loc = nil
	}

	return Result{
		Address:          addr,
		ReachabilityCode: code,
		Location:         loc,
		ObservedAt:       p.clock.Now(),
	}, nil
}
