package main

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// mockCity is a canned geolocation answer.
type mockCity struct {
	Country, CountryCode, Region, RegionName, City, Zip, Timezone string
	Lat, Lon                                                     float64
}

var mockCities = []mockCity{
	{"United States", "US", "CA", "California", "San Jose", "95113", "America/Los_Angeles", 37.3382, -121.8863},
	{"Germany", "DE", "HE", "Hesse", "Frankfurt am Main", "60313", "Europe/Berlin", 50.1109, 8.6821},
	{"Japan", "JP", "13", "Tokyo", "Tokyo", "100-0001", "Asia/Tokyo", 35.6762, 139.6503},
	{"Brazil", "BR", "SP", "Sao Paulo", "São Paulo", "01000-000", "America/Sao_Paulo", -23.5505, -46.6333},
	{"Australia", "AU", "NSW", "New South Wales", "Sydney", "2000", "Australia/Sydney", -33.8688, 151.2093},
	{"South Africa", "ZA", "GP", "Gauteng", "Johannesburg", "2001", "Africa/Johannesburg", -26.2041, 28.0473},
}

// mockLocationHandler answers ip-api style /json/{addr} lookups. The same
// address always maps to the same city; about one lookup in ten fails.
func mockLocationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := strings.TrimPrefix(r.URL.Path, "/json/")

		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.IntN(80)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		if rand.IntN(10) == 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":  "fail",
				"message": "private range",
				"query":   addr,
			})
			return
		}

		h := fnv.New32a()
		_, _ = h.Write([]byte(addr))
		c := mockCities[int(h.Sum32())%len(mockCities)]

		resp := map[string]any{
			"status":      "success",
			"country":     c.Country,
			"countryCode": c.CountryCode,
			"region":      c.Region,
			"regionName":  c.RegionName,
			"city":        c.City,
			"zip":         c.Zip,
			"lat":         c.Lat,
			"lon":         c.Lon,
			"timezone":    c.Timezone,
			"isp":         "Example Transit",
			"org":         "Example Org",
			"as":          "AS64500 Example Transit",
			"mobile":      h.Sum32()%7 == 0,
			"proxy":       h.Sum32()%11 == 0,
			"reverse":     "",
			"query":       addr,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})
}

// StartMockLocationServer serves mock lookups on addr.
// Call this in a goroutine before starting HostMap.
func StartMockLocationServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/json/", mockLocationHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
