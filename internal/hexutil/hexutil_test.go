package hexutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hex/int round trip: hex_to_int(hex(n)) == n for nonnegative n.
func TestHexIntRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 255, 4096, 1_000_000_000} {
		h := FromUint64(n)
		got, err := ToUint64(h)
		require.NoError(t, err)
		assert.Equal(t, n, got, "round trip %d -> %q -> %d", n, h, got)
	}
}

func TestToUint64_StripsPrefix(t *testing.T) {
	got, err := ToUint64("0x64")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got)
}

func TestToBigInt(t *testing.T) {
	v, err := ToBigInt("0x3e8")
	require.NoError(t, err)
	assert.Equal(t, "1000", v.String())
}

// Address normalization: lowercase, 0x-prefixed, idempotent.
func TestNormalizeAddress(t *testing.T) {
	cases := []string{"0xABCDEF", "ABCDEF", "0xabcdef"}
	for _, c := range cases {
		got := NormalizeAddress(c)
		assert.Equal(t, "0xabcdef", got)
		assert.Equal(t, got, NormalizeAddress(got), "not idempotent for %q", c)
	}
}

func TestPadTopicAndAddressFromTopic(t *testing.T) {
	addr := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	topic := PadTopic(addr)
	assert.Len(t, topic, 66)
	assert.Equal(t, addr, AddressFromTopic(topic))
}
