package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// hostsSchema defines one row per host with the Record column set. The
// camelCase columns are quoted so their names survive Postgres folding.
const hostsSchema = `CREATE TABLE IF NOT EXISTS hosts (
	host          TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	time_pinged   DOUBLE PRECISION NOT NULL,
	country       TEXT NOT NULL DEFAULT '',
	"countryCode" TEXT NOT NULL DEFAULT '',
	region        TEXT NOT NULL DEFAULT '',
	"regionName"  TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	zip           TEXT NOT NULL DEFAULT '',
	lat           DOUBLE PRECISION NOT NULL DEFAULT 0,
	lon           DOUBLE PRECISION NOT NULL DEFAULT 0,
	timezone      TEXT NOT NULL DEFAULT '',
	isp           TEXT NOT NULL DEFAULT '',
	asys          TEXT NOT NULL DEFAULT '',
	mobile        TEXT NOT NULL DEFAULT '',
	org           TEXT NOT NULL DEFAULT '',
	proxy         TEXT NOT NULL DEFAULT '',
	reverse       TEXT NOT NULL DEFAULT ''
)`

// hostsColumns is ordered exactly like the fields of Record.
const hostsColumns = `host, status, time_pinged, country, "countryCode", region, "regionName",
	city, zip, lat, lon, timezone, isp, asys, mobile, org, proxy, reverse`

const upsertSQL = `INSERT INTO hosts (` + hostsColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (host) DO UPDATE SET
	status = EXCLUDED.status,
	time_pinged = EXCLUDED.time_pinged,
	country = EXCLUDED.country,
	"countryCode" = EXCLUDED."countryCode",
	region = EXCLUDED.region,
	"regionName" = EXCLUDED."regionName",
	city = EXCLUDED.city,
	zip = EXCLUDED.zip,
	lat = EXCLUDED.lat,
	lon = EXCLUDED.lon,
	timezone = EXCLUDED.timezone,
	isp = EXCLUDED.isp,
	asys = EXCLUDED.asys,
	mobile = EXCLUDED.mobile,
	org = EXCLUDED.org,
	proxy = EXCLUDED.proxy,
	reverse = EXCLUDED.reverse
RETURNING ` + hostsColumns

// PostgresBackend stores records in a PostgreSQL "hosts" table.
//
// Upsert is a single INSERT ... ON CONFLICT statement, and the returned
// record is read back from RETURNING, i.e. the committed row.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	closed atomic.Bool
}

// OpenPostgres connects to dsn, verifies the connection and ensures the
// hosts table exists.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, hostsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create hosts table: %w", err)
	}

	logger.Info("postgres store ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &PostgresBackend{pool: pool, logger: logger}, nil
}

// Upsert inserts rec or overwrites every column of the existing row.
func (p *PostgresBackend) Upsert(ctx context.Context, rec Record) (Record, error) {
	if p.closed.Load() {
		return Record{}, ErrClosed
	}

	rows, err := p.pool.Query(ctx, upsertSQL,
		rec.Host, rec.Status, rec.TimePinged, rec.Country, rec.CountryCode,
		rec.Region, rec.RegionName, rec.City, rec.Zip, rec.Lat, rec.Lon,
		rec.Timezone, rec.ISP, rec.ASys, rec.Mobile, rec.Org, rec.Proxy,
		rec.Reverse,
	)
	if err != nil {
		return Record{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByPos[Record])
}

// Get returns the row for host.
func (p *PostgresBackend) Get(ctx context.Context, host string) (Record, error) {
	if p.closed.Load() {
		return Record{}, ErrClosed
	}

	rows, err := p.pool.Query(ctx, `SELECT `+hostsColumns+` FROM hosts WHERE host = $1`, host)
	if err != nil {
		return Record{}, err
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns every row of the hosts table.
func (p *PostgresBackend) List(ctx context.Context) ([]Record, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := p.pool.Query(ctx, `SELECT `+hostsColumns+` FROM hosts`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Record])
}

// Count returns the number of rows in the hosts table.
func (p *PostgresBackend) Count(ctx context.Context) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}

	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM hosts`).Scan(&n)
	return n, err
}

// Close closes the connection pool. Safe to call multiple times.
func (p *PostgresBackend) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.pool.Close()
	return nil
}
