package abi

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// CanonicalSignature renders e as "Name(type1,type2,...)" with no spaces
// and tuple components expanded as "(t1,t2,...)". This generalizes a
// fixed event-signature string table to arbitrary ABI entries.
func CanonicalSignature(e Entry) string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	for i, in := range e.Inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(canonicalType(in))
	}
	b.WriteByte(')')
	return b.String()
}

func canonicalType(in Input) string {
	if len(in.Components) == 0 {
		return in.Type
	}
	// tuple, possibly tuple[] or tuple[N]; Type carries the array suffix.
	suffix := ""
	if idx := strings.IndexByte(in.Type, '['); idx >= 0 {
		suffix = in.Type[idx:]
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range in.Components {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(canonicalType(c))
	}
	b.WriteByte(')')
	b.WriteString(suffix)
	return b.String()
}

// Topic0 computes "0x" + lower_hex(keccak256(signature)), the entry's
// topic0.
func Topic0(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum)
}

// SignatureMap builds a topic0 → Entry lookup over every event entry in a,
// used by the decoder to select the entry matching a log's topic0.
func SignatureMap(a ABI) map[string]Entry {
	m := make(map[string]Entry)
	for _, e := range a.Events() {
		topic0 := Topic0(CanonicalSignature(e))
		m[topic0] = e
	}
	return m
}
