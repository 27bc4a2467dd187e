// Package abi defines a small tagged model over contract ABI JSON, used by
// the decoder instead of go-ethereum's accounts/abi package. Dynamic-type
// handling here is deliberately approximate — every 32-byte slot is
// treated as a scalar, and indexed dynamic types fall back to the raw
// topic — which diverges from full ABI head/tail decoding, so a
// purpose-built model is a better fit than a general-purpose ABI decoder.
package abi

import "encoding/json"

// Input is one parameter of an event entry.
type Input struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Indexed    bool    `json:"indexed"`
	Components []Input `json:"components,omitempty"`
}

// Entry is one top-level ABI JSON object. Only "event" entries matter to
// the decoder; others are parsed but ignored.
type Entry struct {
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Anonymous bool    `json:"anonymous"`
	Inputs    []Input `json:"inputs"`
}

// ABI is a parsed contract ABI: the ordered list of entries as declared.
type ABI []Entry

// Parse decodes raw ABI JSON into an ABI. Some verification services wrap
// the entry array under an "abi" key in addition to serving it bare; Parse
// handles both shapes.
func Parse(raw []byte) (ABI, error) {
	var entries ABI
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		ABI ABI `json:"abi"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.ABI, nil
}

// Events returns only the event-type entries, in declaration order.
func (a ABI) Events() []Entry {
	var out []Entry
	for _, e := range a {
		if e.Type == "event" {
			out = append(out, e)
		}
	}
	return out
}

// IndexedInputs returns e's inputs with Indexed == true, in declaration
// order.
func (e Entry) IndexedInputs() []Input {
	var out []Input
	for _, in := range e.Inputs {
		if in.Indexed {
			out = append(out, in)
		}
	}
	return out
}

// DataInputs returns e's non-indexed inputs, in declaration order.
func (e Entry) DataInputs() []Input {
	var out []Input
	for _, in := range e.Inputs {
		if !in.Indexed {
			out = append(out, in)
		}
	}
	return out
}

// isDynamic reports whether t is a dynamic ABI type (string, bytes, or any
// array) — these fall back to the raw topic when indexed, and are only
// approximately decoded when not indexed.
func isDynamic(t string) bool {
	if t == "string" || t == "bytes" {
		return true
	}
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] == ']' {
			return true
		}
		if t[i] != ']' && t[i] != '[' && !(t[i] >= '0' && t[i] <= '9') {
			break
		}
	}
	return false
}

// IsDynamic exposes isDynamic for callers outside the package.
func IsDynamic(t string) bool { return isDynamic(t) }
