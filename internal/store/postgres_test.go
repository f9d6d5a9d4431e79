package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// postgresBackend connects to HOSTMAP_TEST_POSTGRES_DSN or skips the test.
func postgresBackend(t *testing.T) *PostgresBackend {
	t.Helper()

	dsn := os.Getenv("HOSTMAP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOSTMAP_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := OpenPostgres(ctx, dsn, testLogger())
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	t.Cleanup(func() {
		_, _ = b.pool.Exec(context.Background(), `DELETE FROM hosts WHERE host LIKE '203.0.113.%'`)
		_ = b.Close()
	})
	return b
}

func TestPostgresBackend_Upsert(t *testing.T) {
	b := postgresBackend(t)
	ctx := context.Background()

	first, err := b.Upsert(ctx, Record{Host: "203.0.113.5", Status: "0", TimePinged: 1})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if first.Country != "" {
		t.Errorf("first Upsert().Country = %q, want empty", first.Country)
	}

	second, err := b.Upsert(ctx, Record{
		Host: "203.0.113.5", Status: "0", TimePinged: 2,
		Country: "United States", CountryCode: "US", RegionName: "Kansas",
		Lat: 37.75, Lon: -97.82, Mobile: "False", Proxy: "False",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if second.CountryCode != "US" || second.RegionName != "Kansas" || second.TimePinged != 2 {
		t.Errorf("second Upsert() = %+v, want populated record", second)
	}

	got, err := b.Get(ctx, "203.0.113.5")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != second {
		t.Errorf("Get() = %+v, want %+v", got, second)
	}

	all, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	matches := 0
	for _, rec := range all {
		if rec.Host == "203.0.113.5" {
			matches++
		}
	}
	if matches != 1 {
		t.Errorf("rows for 203.0.113.5 = %v, want 1", matches)
	}
}

func TestPostgresBackend_GetNotFound(t *testing.T) {
	b := postgresBackend(t)

	_, err := b.Get(context.Background(), "203.0.113.254")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
