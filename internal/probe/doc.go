// Package probe performs the per-address unit of work of the scan pipeline.
//
// A [Prober] runs a reachability check through a [Pinger] and a geolocation
// lookup through a [Locator], and combines both into a [Result]. Lookup
// failures are absorbed (the result simply has no location); a pinger that
// cannot even run is reported as an error for that one address.
//
// The main components are:
//
//   - [Prober]: Combines one echo check and one lookup
//   - [ExecPinger]: Runs the system ping utility through a [Runner]
//   - [Client]: Rate-limited HTTP client for the ip-api style lookup service
//   - [CachedLocator]: TTL LRU in front of any [Locator]
package probe
