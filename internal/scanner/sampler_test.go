package scanner

import (
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestNewSampler_Validation(t *testing.T) {
	tests := []struct {
		name        string
		first, last string
		exclude     bool
		wantErr     bool
	}{
		{name: "full range", first: "0.0.0.0", last: "255.255.255.255"},
		{name: "single address", first: "192.0.2.1", last: "192.0.2.1"},
		{name: "inverted", first: "192.0.2.9", last: "192.0.2.1", wantErr: true},
		{name: "ipv6", first: "2001:db8::1", last: "2001:db8::ff", wantErr: true},
		{name: "only reserved", first: "10.0.0.0", last: "10.255.255.255", exclude: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSampler(
				netip.MustParseAddr(tt.first),
				netip.MustParseAddr(tt.last),
				WithExcludeReserved(tt.exclude),
			)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSampler_NextBatch_SizeAndBounds(t *testing.T) {
	first := netip.MustParseAddr("198.51.100.10")
	last := netip.MustParseAddr("198.51.100.20")
	s, err := NewSampler(first, last, WithRand(seeded()))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), s.Size())

	for _, n := range []int{1, 4, 16, 100} {
		batch := s.NextBatch(n)
		require.Len(t, batch, n)
		for _, a := range batch {
			assert.True(t, a.Is4())
			assert.False(t, a.Less(first), "%s below range", a)
			assert.False(t, last.Less(a), "%s above range", a)
		}
	}

	assert.Empty(t, s.NextBatch(0))
	assert.Empty(t, s.NextBatch(-3))
}

func TestSampler_SingleAddress(t *testing.T) {
	a := netip.MustParseAddr("203.0.113.5")
	s, err := NewSampler(a, a)
	require.NoError(t, err)

	for _, got := range s.NextBatch(8) {
		assert.Equal(t, a, got)
	}
}

func TestSampler_FullRangeEdges(t *testing.T) {
	s, err := NewSampler(netip.MustParseAddr("0.0.0.0"), netip.MustParseAddr("255.255.255.255"), WithRand(seeded()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<32, s.Size())

	// offsets at both ends map onto the bounds
	assert.Equal(t, uint32(0), s.pick(0))
	assert.Equal(t, uint32(0xFFFFFFFF), s.pick(s.Size()-1))
}

func TestSampler_ExcludeReserved(t *testing.T) {
	// 9.255.255.0 - 11.0.0.255 straddles 10.0.0.0/8
	s, err := NewSampler(
		netip.MustParseAddr("9.255.255.0"),
		netip.MustParseAddr("11.0.0.255"),
		WithExcludeReserved(true),
		WithRand(seeded()),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(512), s.Size())

	private := netip.MustParsePrefix("10.0.0.0/8")
	for _, a := range s.NextBatch(1000) {
		assert.False(t, private.Contains(a), "%s is reserved", a)
	}
}

func TestSampler_ExcludeReservedFullRange(t *testing.T) {
	s, err := NewSampler(
		netip.MustParseAddr("0.0.0.0"),
		netip.MustParseAddr("255.255.255.255"),
		WithExcludeReserved(true),
		WithRand(seeded()),
	)
	require.NoError(t, err)
	assert.Less(t, s.Size(), uint64(1)<<32)

	for _, a := range s.NextBatch(2000) {
		for _, p := range reservedPrefixes {
			assert.False(t, p.Contains(a), "%s is inside %s", a, p)
		}
	}
}

func TestSampler_Batches(t *testing.T) {
	s, err := NewSampler(netip.MustParseAddr("192.0.2.0"), netip.MustParseAddr("192.0.2.255"))
	require.NoError(t, err)

	count := 0
	for batch := range s.Batches(4) {
		assert.Len(t, batch, 4)
		count++
		if count == 5 {
			break
		}
	}
	assert.Equal(t, 5, count)

	// the sequence is restartable
	for batch := range s.Batches(2) {
		assert.Len(t, batch, 2)
		break
	}
}

func TestSubtractSpans(t *testing.T) {
	whole := span{lo: 0, hi: 100}
	holes := []span{{lo: 0, hi: 9}, {lo: 20, hi: 29}, {lo: 95, hi: 200}}

	got := subtractSpans(whole, holes)
	assert.Equal(t, []span{{lo: 10, hi: 19}, {lo: 30, hi: 94}}, got)
}
