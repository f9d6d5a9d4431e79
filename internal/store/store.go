package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

var (
	// ErrNotFound is returned when no record exists for a host.
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned by backends after Close.
	ErrClosed = errors.New("store closed")

	// ErrInvalidRecord is returned when a record has no host key.
	ErrInvalidRecord = errors.New("record host is required")
)

// Record is the latest known state of one probed address.
//
// JSON keys match the column names of the persisted "hosts" table, so a
// marshalled Record is also the broadcast payload pushed to subscribers.
type Record struct {
	// Host is the dotted-quad address and the primary key.
	Host string `json:"host"`

	// Status is the reachability exit code rendered as decimal text ("0" = reachable).
	Status string `json:"status"`

	// TimePinged is the observation time in seconds since the epoch.
	TimePinged float64 `json:"time_pinged"`

	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	ASys        string  `json:"asys"`
	Mobile      string  `json:"mobile"`
	Org         string  `json:"org"`
	Proxy       string  `json:"proxy"`
	Reverse     string  `json:"reverse"`
}

// Backend persists records keyed by host.
//
// Implementations must be safe for concurrent use. Upsert must either
// overwrite every field of the existing record or create it, atomically,
// and return the committed state.
type Backend interface {
	// Upsert writes rec and returns the record as committed.
	Upsert(ctx context.Context, rec Record) (Record, error)

	// Get returns the record for host, or ErrNotFound.
	Get(ctx context.Context, host string) (Record, error)

	// List returns every stored record. Order is not guaranteed.
	List(ctx context.Context) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases the backend's resources.
	Close() error
}

// Notifier receives a copy of every committed record.
type Notifier interface {
	Notify(rec Record)
}

// NotifierFunc adapts a plain function to [Notifier].
type NotifierFunc func(rec Record)

// Notify calls f(rec).
func (f NotifierFunc) Notify(rec Record) { f(rec) }

// Store is the single write path into a [Backend].
//
// Upsert serializes writers, so the commit order seen by notifiers is the
// order in which writes were applied.
type Store struct {
	backend   Backend
	notifiers []Notifier
	logger    *slog.Logger

	writeMu sync.Mutex
}

// New creates a [Store] over backend. Every notifier is called once per
// successful [Store.Upsert], after the write has been committed.
func New(backend Backend, logger *slog.Logger, notifiers ...Notifier) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	nn := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			nn = append(nn, n)
		}
	}
	return &Store{
		backend:   backend,
		notifiers: nn,
		logger:    logger,
	}
}

// Upsert creates or overwrites the record for rec.Host and then notifies.
//
// Notifiers are not called when the write fails.
func (s *Store) Upsert(ctx context.Context, rec Record) (Record, error) {
	if rec.Host == "" {
		return Record{}, ErrInvalidRecord
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	committed, err := s.backend.Upsert(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("upsert %s: %w", rec.Host, err)
	}

	for _, n := range s.notifiers {
		s.notify(n, committed)
	}
	return committed, nil
}

// notify invokes one notifier with panic recovery so that a broken
// listener cannot abort the write path.
func (s *Store) notify(n Notifier, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("store notifier panicked",
				"panic", r,
				"host", rec.Host,
				"stack", string(debug.Stack()),
			)
		}
	}()
	n.Notify(rec)
}

// Get returns the committed record for host.
func (s *Store) Get(ctx context.Context, host string) (Record, error) {
	return s.backend.Get(ctx, host)
}

// List returns a snapshot of all committed records.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.backend.List(ctx)
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.backend.Count(ctx)
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
