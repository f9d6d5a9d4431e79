package store

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory implementation of [Backend].
//
// Records are keyed by host in a map guarded by a RWMutex; the latest write
// replaces the previous value. Nothing survives a restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
}

// NewMemoryBackend creates an empty [MemoryBackend].
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]Record),
	}
}

// Upsert stores rec under rec.Host.
func (m *MemoryBackend) Upsert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Record{}, ErrClosed
	}
	m.records[rec.Host] = rec
	return rec, nil
}

// Get returns the record for host.
func (m *MemoryBackend) Get(_ context.Context, host string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Record{}, ErrClosed
	}
	rec, ok := m.records[host]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns a copy of all stored records.
//
// The returned slice is a copy; modifications do not affect the backend.
// Order is not guaranteed.
func (m *MemoryBackend) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	results := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		results = append(results, rec)
	}
	return results, nil
}

// Count returns the number of stored records.
func (m *MemoryBackend) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return len(m.records), nil
}

// Close marks the backend closed. Safe to call multiple times.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
