// Package store provides the keyed latest-state table of probed hosts.
//
// This package is internal to hostmap and owns every [Record]. A [Store]
// wraps one [Backend] and turns "update, else insert" into a single
// operation: [Store.Upsert] writes through the backend and, once the write
// is committed, hands the post-write record to each registered [Notifier]
// exactly once.
//
// The main components are:
//
//   - [Record]: Persisted state of one address, keyed by Host
//   - [Store]: Notifying upsert front-end used by the aggregator
//   - [Backend]: Persistence contract implemented by the backends below
//   - [MemoryBackend]: Map guarded by a RWMutex
//   - [BadgerBackend]: Embedded BadgerDB table
//   - [PostgresBackend]: PostgreSQL "hosts" table via pgxpool
//
// Reads ([Store.Get], [Store.List]) may run concurrently with writes and
// only observe fully committed records.
package store
