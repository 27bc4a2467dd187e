// Package hexutil converts between the hex-encoded strings that EVM JSON-RPC
// endpoints speak and the Go integer/byte types the rest of the indexer uses.
package hexutil

import (
	"fmt"
	"math/big"
	"strings"
)

// ToUint64 parses a "0x"-prefixed (or bare) hex string into a uint64.
func ToUint64(h string) (uint64, error) {
	s := trim0x(h)
	if s == "" {
		return 0, nil
	}
	var v uint64
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, fmt.Errorf("hexutil: invalid hex integer %q: %w", h, err)
	}
	return v, nil
}

// FromUint64 renders n as a "0x"-prefixed hex string with no leading zeros,
// matching the canonical form go-ethereum and most RPC nodes emit.
func FromUint64(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// ToBigInt parses a "0x"-prefixed hex string into a *big.Int, used for the
// u256 fields (value, gas_price) that do not fit in a machine word.
func ToBigInt(h string) (*big.Int, error) {
	s := trim0x(h)
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("hexutil: invalid hex integer %q", h)
	}
	return v, nil
}

// FromBigInt renders n as a "0x"-prefixed hex string.
func FromBigInt(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

// NormalizeAddress lowercases an address and ensures a leading "0x". It is
// idempotent: NormalizeAddress(NormalizeAddress(a)) == NormalizeAddress(a).
func NormalizeAddress(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	return a
}

// PadTopic left-pads a 20-byte address (40 hex chars) into a 32-byte topic
// (66-char hex string), the form addresses take when used as indexed event
// parameters.
func PadTopic(address string) string {
	a := strings.TrimPrefix(NormalizeAddress(address), "0x")
	if len(a) < 64 {
		a = strings.Repeat("0", 64-len(a)) + a
	}
	return "0x" + a
}

// AddressFromTopic extracts the low 20 bytes of a 32-byte topic as a
// "0x"-prefixed, lowercased address.
func AddressFromTopic(topic string) string {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) < 40 {
		return "0x" + t
	}
	return "0x" + t[len(t)-40:]
}

func trim0x(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "0x")
	h = strings.TrimPrefix(h, "0X")
	// strip leading zeros; an all-zero input such as "0x0" becomes "",
	// which ToUint64/ToBigInt map to 0
	h = strings.TrimLeft(h, "0")
	return h
}
