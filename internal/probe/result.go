package probe

import "time"

// Location is the geolocation payload returned by the lookup service.
//
// Field names follow the service's JSON response (GET /json/{addr}).
type Location struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
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
	AS          string  `json:"as"`
	Mobile      bool    `json:"mobile"`
	Org         string  `json:"org"`
	Proxy       bool    `json:"proxy"`
	Reverse     string  `json:"reverse"`
}

// Result is the outcome of probing one address. It is consumed exactly once
// by the aggregator.
type Result struct {
	// Address is the probed IPv4 address in dotted-quad form.
	Address string

	// ReachabilityCode is the echo check exit status: 0 = reachable.
	ReachabilityCode int

	// Location is nil when the lookup did not succeed.
	Location *Location

	// ObservedAt is when the echo check and lookup both completed.
	ObservedAt time.Time
}

// Reachable reports whether the echo check succeeded.
func (r Result) Reachable() bool {
	return r.ReachabilityCode == 0
}
