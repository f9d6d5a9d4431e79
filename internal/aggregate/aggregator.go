// Package aggregate applies probe results to the store.
//
// The [Aggregator] is the only writer of the store: it consumes the pool's
// result stream from a single goroutine, so writes for the same address
// are applied in the order their results were received.
package aggregate

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jpalmerr/hostmap/internal/metrics"
	"github.com/jpalmerr/hostmap/internal/probe"
	"github.com/jpalmerr/hostmap/internal/store"
)

// Writer is the store operation the aggregator needs.
type Writer interface {
	Upsert(ctx context.Context, rec store.Record) (store.Record, error)
}

// Aggregator normalizes results into records and writes them.
type Aggregator struct {
	writer  Writer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an [Aggregator] writing to w.
func New(w Writer, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		writer:  w,
		logger:  logger,
		metrics: m,
	}
}

// Run applies every result from results until the channel is closed.
//
// Write errors are logged and the loop continues. Run must be the only
// caller of Apply.
func (a *Aggregator) Run(ctx context.Context, results <-chan probe.Result) {
	for result := range results {
		a.Apply(ctx, result)
	}
}

// Apply writes one result. It reports whether the write was committed.
func (a *Aggregator) Apply(ctx context.Context, result probe.Result) bool {
	rec := ToRecord(result)

	committed, err := a.writer.Upsert(ctx, rec)
	if err != nil {
		a.metrics.UpsertFailed()
		a.logger.Warn("failed to store probe result", "address", result.Address, "error", err)
		return false
	}

	a.metrics.Upserted()
	a.logger.Debug("probe result stored",
		"address", committed.Host,
		"status", committed.Status,
		"country", committed.CountryCode,
	)
	return true
}

// ToRecord converts a probe result into its column-ready form.
//
// A missing location leaves every location field empty (zero lat/lon).
// Flags are rendered as "True"/"False".
func ToRecord(r probe.Result) store.Record {
	rec := store.Record{
		Host:       r.Address,
		Status:     strconv.Itoa(r.ReachabilityCode),
		TimePinged: epochSeconds(r.ObservedAt),
	}

	loc := r.Location
	if loc == nil {
		return rec
	}

	rec.Country = loc.Country
	rec.CountryCode = loc.CountryCode
	rec.Region = loc.Region
	rec.RegionName = loc.RegionName
	rec.City = loc.City
	rec.Zip = loc.Zip
	rec.Lat = loc.Lat
	rec.Lon = loc.Lon
	rec.Timezone = loc.Timezone
	rec.ISP = loc.ISP
	rec.ASys = loc.AS
	rec.Mobile = formatFlag(loc.Mobile)
	rec.Org = loc.Org
	rec.Proxy = formatFlag(loc.Proxy)
	rec.Reverse = loc.Reverse
	return rec
}

func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatFlag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
