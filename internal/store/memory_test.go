package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNewMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	if b == nil {
		t.Fatal("NewMemoryBackend() = nil")
	}

	// should start empty
	all, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("List() = %v items, want 0", len(all))
	}
}

func TestMemoryBackend_Upsert(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	got, err := b.Upsert(ctx, Record{Host: "198.51.100.7", Status: "0", Country: "Canada"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got.Country != "Canada" {
		t.Errorf("Upsert().Country = %v, want %v", got.Country, "Canada")
	}

	all, _ := b.List(ctx)
	if len(all) != 1 {
		t.Fatalf("List() = %v items, want 1", len(all))
	}
	if all[0].Host != "198.51.100.7" {
		t.Errorf("List()[0].Host = %v, want %v", all[0].Host, "198.51.100.7")
	}
}

func TestMemoryBackend_UpsertOverwrites(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	_, _ = b.Upsert(ctx, Record{Host: "198.51.100.7", Status: "0", City: "Toronto"})
	// second write with the same host replaces every field
	_, _ = b.Upsert(ctx, Record{Host: "198.51.100.7", Status: "1"})

	all, _ := b.List(ctx)
	if len(all) != 1 {
		t.Fatalf("List() = %v items, want 1", len(all))
	}
	if all[0].Status != "1" {
		t.Errorf("List()[0].Status = %v, want %v", all[0].Status, "1")
	}
	if all[0].City != "" {
		t.Errorf("List()[0].City = %q, want empty", all[0].City)
	}
}

func TestMemoryBackend_MultipleHosts(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	_, _ = b.Upsert(ctx, Record{Host: "192.0.2.1", Status: "0"})
	_, _ = b.Upsert(ctx, Record{Host: "192.0.2.2", Status: "1"})
	_, _ = b.Upsert(ctx, Record{Host: "192.0.2.3", Status: "2"})

	n, err := b.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %v, want 3", n)
	}
}

func TestMemoryBackend_GetNotFound(t *testing.T) {
	b := NewMemoryBackend()

	_, err := b.Get(context.Background(), "192.0.2.1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	b := NewMemoryBackend()
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// second close is a no-op
	if err := b.Close(); err != nil {
		t.Fatalf("Close() second call error = %v", err)
	}

	if _, err := b.Upsert(context.Background(), Record{Host: "192.0.2.1"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Upsert() after Close error = %v, want ErrClosed", err)
	}
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	// concurrent writes to the same key
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_, _ = b.Upsert(ctx, Record{Host: "192.0.2.1", Status: "0"})
			}
		}()
	}

	// concurrent reads
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_, _ = b.List(ctx)
			}
		}()
	}

	wg.Wait()

	n, _ := b.Count(ctx)
	if n != 1 {
		t.Errorf("Count() = %v, want 1", n)
	}
}
