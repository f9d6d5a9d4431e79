package hostmap

import (
	"github.com/jpalmerr/hostmap/internal/probe"
	"github.com/jpalmerr/hostmap/internal/store"
)

// Record is the stored state of one scanned host.
//
// Every field is a column of the hosts table and a key of the JSON
// message pushed to dashboard subscribers. Status is the decimal exit code
// of the reachability check ("0" means the host answered). TimePinged is
// seconds since the Unix epoch. Location fields are empty when the
// geolocation lookup failed; Mobile and Proxy are "True" or "False".
type Record = store.Record

// Location is a geolocation lookup result, as returned by a [Locator].
type Location = probe.Location
