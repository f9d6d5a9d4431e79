package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/multierr"
)

const (
	badgerKeyPrefix     = "host/"
	badgerGCInterval    = 5 * time.Minute
	badgerGCDiscardRate = 0.5
)

// BadgerBackend stores records in an embedded BadgerDB.
//
// Each record is a JSON value under the key "host/<address>". Writes run
// inside a single read-write transaction, so readers never see a partial
// record. An empty path opens an in-memory database.
type BadgerBackend struct {
	db       *badger.DB
	inMemory bool
	logger   *slog.Logger
	closed   atomic.Bool

	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
}

// OpenBadger opens (or creates) a BadgerDB at path and starts value log GC.
func OpenBadger(path string, logger *slog.Logger) (*BadgerBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{logger: logger}).
		WithSyncWrites(true)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}

	b := &BadgerBackend{
		db:       db,
		inMemory: path == "",
		logger:   logger,
	}
	if !b.inMemory {
		b.startGC()
	}
	return b, nil
}

func badgerKey(host string) []byte {
	return []byte(badgerKeyPrefix + host)
}

// Upsert writes rec in one transaction, replacing any existing value.
func (b *BadgerBackend) Upsert(_ context.Context, rec Record) (Record, error) {
	if b.closed.Load() {
		return Record{}, ErrClosed
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode record: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(rec.Host), data)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns the record for host.
func (b *BadgerBackend) Get(_ context.Context, host string) (Record, error) {
	if b.closed.Load() {
		return Record{}, ErrClosed
	}

	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(host))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns every record under the host prefix.
func (b *BadgerBackend) List(_ context.Context) ([]Record, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var results []Record
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerKeyPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			results = append(results, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of keys under the host prefix.
func (b *BadgerBackend) Count(_ context.Context) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}

	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close stops GC and closes the database. Safe to call multiple times.
func (b *BadgerBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	var err error
	if !b.inMemory {
		err = multierr.Append(err, b.db.Sync())
	}
	return multierr.Append(err, b.db.Close())
}

// startGC runs value log garbage collection in the background until Close.
func (b *BadgerBackend) startGC() {
	ctx, cancel := context.WithCancel(context.Background())
	b.gcCancel = cancel

	b.gcWg.Add(1)
	go func() {
		defer b.gcWg.Done()

		ticker := time.NewTicker(badgerGCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.runGC()
			}
		}
	}()
}

// runGC rewrites value log files until badger reports nothing left to reclaim.
func (b *BadgerBackend) runGC() {
	for {
		if b.closed.Load() {
			return
		}
		err := b.db.RunValueLogGC(badgerGCDiscardRate)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			b.logger.Warn("badger value log gc failed", "error", err)
		}
		return
	}
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
