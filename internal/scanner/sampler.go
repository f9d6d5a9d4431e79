package scanner

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"net/netip"
	"sort"
	"sync"
)

// reservedPrefixes are the IPv4 special-purpose blocks skipped when
// reserved-range exclusion is enabled.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.88.99.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

// span is an inclusive range of IPv4 addresses as integers.
type span struct {
	lo, hi uint32
}

func (s span) size() uint64 {
	return uint64(s.hi) - uint64(s.lo) + 1
}

// Sampler produces batches of uniformly random IPv4 addresses.
//
// Sampling is with replacement: duplicates may occur within and across
// batches. Sampler is safe for concurrent use.
type Sampler struct {
	first, last netip.Addr
	spans       []span
	total       uint64

	mu  sync.Mutex
	rng *rand.Rand
}

// SamplerOption configures a [Sampler].
type SamplerOption func(*samplerConfig)

type samplerConfig struct {
	excludeReserved bool
	rng             *rand.Rand
}

// WithExcludeReserved removes private, loopback, documentation, multicast
// and other special-purpose blocks from the sampled range.
func WithExcludeReserved(exclude bool) SamplerOption {
	return func(c *samplerConfig) {
		c.excludeReserved = exclude
	}
}

// WithRand sets the random source. Useful for deterministic tests.
func WithRand(rng *rand.Rand) SamplerOption {
	return func(c *samplerConfig) {
		c.rng = rng
	}
}

// NewSampler creates a [Sampler] over the inclusive range [first, last].
//
// Both bounds must be IPv4 and first must not be greater than last. When
// reserved blocks are excluded and nothing remains, an error is returned.
func NewSampler(first, last netip.Addr, opts ...SamplerOption) (*Sampler, error) {
	if !first.Is4() || !last.Is4() {
		return nil, fmt.Errorf("address range must be IPv4, got %s - %s", first, last)
	}
	if last.Less(first) {
		return nil, fmt.Errorf("range start %s is after range end %s", first, last)
	}

	cfg := samplerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	whole := span{lo: addrToUint(first), hi: addrToUint(last)}
	spans := []span{whole}
	if cfg.excludeReserved {
		spans = subtractSpans(whole, reservedSpans())
		if len(spans) == 0 {
			return nil, errors.New("address range contains only reserved addresses")
		}
	}

	var total uint64
	for _, sp := range spans {
		total += sp.size()
	}

	return &Sampler{
		first: first,
		last:  last,
		spans: spans,
		total: total,
		rng:   cfg.rng,
	}, nil
}

// Size returns the number of addresses that can be sampled.
func (s *Sampler) Size() uint64 {
	return s.total
}

// Range returns the configured bounds.
func (s *Sampler) Range() (first, last netip.Addr) {
	return s.first, s.last
}

// NextBatch returns exactly n addresses from the range. n <= 0 yields an
// empty batch.
func (s *Sampler) NextBatch(n int) []netip.Addr {
	if n <= 0 {
		return []netip.Addr{}
	}

	batch := make([]netip.Addr, n)
	s.mu.Lock()
	for i := range batch {
		batch[i] = uintToAddr(s.pick(s.rng.Uint64N(s.total)))
	}
	s.mu.Unlock()
	return batch
}

// Batches returns an unbounded sequence of batches of size n. The sequence
// never ends on its own; stop ranging over it to stop sampling. Each range
// over the returned sequence starts afresh.
func (s *Sampler) Batches(n int) iter.Seq[[]netip.Addr] {
	return func(yield func([]netip.Addr) bool) {
		for {
			if !yield(s.NextBatch(n)) {
				return
			}
		}
	}
}

// pick maps an offset in [0, total) onto the allowed spans.
func (s *Sampler) pick(offset uint64) uint32 {
	for _, sp := range s.spans {
		if offset < sp.size() {
			return uint32(uint64(sp.lo) + offset)
		}
		offset -= sp.size()
	}
	// unreachable while offset < total
	return s.spans[len(s.spans)-1].hi
}

// reservedSpans converts reservedPrefixes to spans sorted by start.
func reservedSpans() []span {
	out := make([]span, 0, len(reservedPrefixes))
	for _, p := range reservedPrefixes {
		p = p.Masked()
		lo := addrToUint(p.Addr())
		hostBits := 32 - p.Bits()
		hi := lo | uint32((uint64(1)<<hostBits)-1)
		out = append(out, span{lo: lo, hi: hi})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].lo < out[j].lo })
	return out
}

// subtractSpans removes the sorted, non-overlapping holes from whole.
func subtractSpans(whole span, holes []span) []span {
	var out []span
	cur := uint64(whole.lo)
	end := uint64(whole.hi)

	for _, h := range holes {
		if uint64(h.hi) < cur {
			continue
		}
		if uint64(h.lo) > end {
			break
		}
		if uint64(h.lo) > cur {
			out = append(out, span{lo: uint32(cur), hi: h.lo - 1})
		}
		cur = uint64(h.hi) + 1
	}
	if cur <= end {
		out = append(out, span{lo: uint32(cur), hi: uint32(end)})
	}
	return out
}

func addrToUint(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uintToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
