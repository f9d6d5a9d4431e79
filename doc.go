// Package hostmap scans random IPv4 addresses and shows where the live
// ones are on a real-time web map.
//
// Each sampled address is checked for reachability with the system ping
// command and looked up in an ip-api compatible geolocation service. The
// latest result per address is stored, and every stored update is pushed
// to connected browsers over WebSocket.
//
// # Quick Start
//
//	hm, _ := hostmap.New(hostmap.WithPort(8080))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	hm.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// HostMap uses the functional options pattern for configuration:
//
//	hm, err := hostmap.New(
//	    hostmap.WithAddressRange(first, last),
//	    hostmap.WithExcludeReserved(true),
//	    hostmap.WithConcurrency(32),
//	    hostmap.WithStorage(hostmap.StorageBadger, "/var/lib/hostmap", ""),
//	)
//
// Records can be observed as they are stored with [WithRecordCallback].
// The reachability check and the lookup service can be replaced with
// [WithPinger] and [WithLocator].
//
// # Architecture
//
// HostMap consists of several internal packages (under internal/):
//
//   - internal/scanner: address sampling and the bounded worker pool
//   - internal/probe: ping, geolocation lookup and the lookup cache
//   - internal/aggregate: turns probe results into stored records
//   - internal/store: keyed record storage (memory, BadgerDB, PostgreSQL) with change notification
//   - internal/hub: fans stored records out to WebSocket subscribers
//   - internal/server: HTTP server with dashboard, REST API, WebSocket and metrics
//   - internal/metrics: Prometheus collectors
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package hostmap
