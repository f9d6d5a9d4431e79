// Package server provides the HTTP server for the HostMap dashboard and API.
//
// This package is internal to HostMap and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON endpoint at "/api/hosts" for the current host snapshot
//   - WebSocket: live host updates at "/ws"
//   - Metrics: Prometheus exposition at "/metrics"
//
// Accepted WebSocket connections are handed to a registry (the broadcast
// hub) for the lifetime of the connection. The server supports graceful
// shutdown via context cancellation, with a 5-second timeout for in-flight
// requests.
package server
