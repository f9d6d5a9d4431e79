package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/hostmap"
)

// simulatedPinger answers without sending packets, so the demo runs
// without raw socket privileges. Roughly a third of hosts reply.
type simulatedPinger struct{}

func (simulatedPinger) Ping(ctx context.Context, _ string) (int, error) {
	select {
	case <-time.After(time.Duration(100+rand.IntN(400)) * time.Millisecond):
	case <-ctx.Done():
		return -1, ctx.Err()
	}
	if rand.IntN(3) == 0 {
		return 0, nil
	}
	return 1, nil
}

func main() {
	// start mock geolocation server (see mock_server.go)
	go StartMockLocationServer(":9999")
	time.Sleep(100 * time.Millisecond)

	hm, err := hostmap.New(
		hostmap.WithTitle("HostMap Demo"),
		hostmap.WithPort(8080),
		hostmap.WithConcurrency(8),
		hostmap.WithAddressRange(netip.MustParseAddr("1.0.0.0"), netip.MustParseAddr("223.255.255.255")),
		hostmap.WithExcludeReserved(true),
		hostmap.WithPinger(simulatedPinger{}),
		hostmap.WithGeolocation("http://localhost:9999", 2*time.Second, 0),
		hostmap.WithRecordCallback(func(r hostmap.Record) {
			if r.Status == "0" && r.Country != "" {
				slog.Info("host up", "host", r.Host, "country", r.Country, "city", r.City)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create hostmap", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  HostMap Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Pings are simulated; locations come from a mock service on :9999")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := hm.Start(ctx); err != nil {
		slog.Error("hostmap error", "error", err)
		os.Exit(1)
	}
}
