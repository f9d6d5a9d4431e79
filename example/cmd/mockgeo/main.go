// Standalone mock geolocation service for trying the CLI without hitting
// the public lookup API.
//
// Usage:
//
//	go run ./example/cmd/mockgeo
//
// Then in another terminal:
//
//	go run ./cmd/hostmap serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

func main() {
	fmt.Println("Mock geolocation server starting on :9999")
	fmt.Println("Every address resolves to Null Island")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	http.HandleFunc("/json/", func(w http.ResponseWriter, r *http.Request) {
		addr := strings.TrimPrefix(r.URL.Path, "/json/")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "success",
			"country":     "Null Island",
			"countryCode": "NI",
			"city":        "Null Island",
			"lat":         0.0,
			"lon":         0.0,
			"timezone":    "UTC",
			"mobile":      false,
			"proxy":       false,
			"query":       addr,
		})
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
