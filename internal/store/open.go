package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Supported backend drivers.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend for [Open].
type Options struct {
	// Driver is one of "memory", "badger" or "postgres". Empty means memory.
	Driver string

	// Path is the BadgerDB directory.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open creates the backend named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Backend, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryBackend(), nil
	case DriverBadger:
		if opts.Path == "" {
			return nil, fmt.Errorf("badger driver requires a path")
		}
		return OpenBadger(opts.Path, logger)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		return OpenPostgres(ctx, opts.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
