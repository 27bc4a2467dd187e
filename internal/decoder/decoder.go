// Package decoder decodes logs against a contract ABI: given the ABI and
// a log's topics and data, it selects the matching event entry by topic0
// and decodes indexed and non-indexed parameters into a named,
// JSON-serializable map.
package decoder

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chainlens/evm-indexer/internal/abi"
)

// Result is the decoder's output: both fields are zero-valued when the ABI
// fails to parse or no event entry matches topic0. When an entry matches
// but the data cannot be split into its inputs, EventName is set and the
// data inputs are absent from Params.
type Result struct {
	EventName string
	Params    map[string]any
}

// Log is the minimal view of an event log the decoder needs.
type Log struct {
	Topics []string // topics[0..3], may be shorter than 4; topics[0] is topic0
	Data   string   // hex string, may be "0x"
}

// Decode parses rawABI, matches log's topic0 against its event entries,
// and decodes the matched entry's parameters. Parse failures, missing
// topic0, or no matching entry all yield a zero Result (EventName == ""
// signals failure to callers, which is not a legal ABI event name).
func Decode(rawABI []byte, log Log) Result {
	parsed, err := abi.Parse(rawABI)
	if err != nil {
		return Result{}
	}
	if len(log.Topics) == 0 {
		return Result{}
	}
	sigMap := abi.SignatureMap(parsed)
	entry, ok := sigMap[strings.ToLower(log.Topics[0])]
	if !ok {
		return Result{}
	}

	indexedInputs := entry.IndexedInputs()
	dataInputs := entry.DataInputs()

	indexedParams := decodeIndexed(indexedInputs, log.Topics[1:])
	dataParams := decodeData(dataInputs, log.Data)

	params := make(map[string]any, len(indexedParams)+len(dataParams))
	for k, v := range indexedParams {
		params[k] = v
	}
	for k, v := range dataParams {
		params[k] = v
	}

	return Result{EventName: entry.Name, Params: params}
}

// decodeIndexed decodes the indexed inputs from topics[1:] in declaration
// order.
func decodeIndexed(inputs []abi.Input, topics []string) map[string]any {
	out := make(map[string]any, len(inputs))
	for i, in := range inputs {
		if i >= len(topics) {
			break
		}
		out[in.Name] = decodeScalar(in.Type, topics[i])
	}
	return out
}

// decodeData decodes the non-indexed inputs from data, splitting it into
// 64-hex-char (32-byte) chunks in declaration order.
func decodeData(inputs []abi.Input, data string) map[string]any {
	if len(inputs) == 0 {
		return map[string]any{}
	}
	hexData := strings.TrimPrefix(data, "0x")
	if hexData == "" {
		// Empty data with >0 non-indexed inputs yields {} on failure.
		return map[string]any{}
	}

	out := make(map[string]any, len(inputs))
	for i, in := range inputs {
		start := i * 64
		end := start + 64
		if end > len(hexData) {
			return map[string]any{}
		}
		chunk := hexData[start:end]
		out[in.Name] = decodeScalar(in.Type, "0x"+chunk)
	}
	return out
}

// decodeScalar decodes a single 32-byte topic or data chunk given its
// declared ABI type.
func decodeScalar(typ, topic string) any {
	hexDigits := strings.TrimPrefix(strings.ToLower(topic), "0x")
	for len(hexDigits) < 64 {
		hexDigits = "0" + hexDigits
	}

	switch {
	case typ == "address":
		if len(hexDigits) < 40 {
			return "0x" + hexDigits
		}
		return "0x" + hexDigits[len(hexDigits)-40:]

	case strings.HasPrefix(typ, "uint"):
		v := new(big.Int)
		v.SetString(hexDigits, 16)
		return v.String()

	case strings.HasPrefix(typ, "int"):
		v := new(big.Int)
		v.SetString(hexDigits, 16)
		bits := bitsOf(typ, 256)
		threshold := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
		if v.Cmp(threshold) >= 0 {
			modulus := new(big.Int).Lsh(big.NewInt(1), uint(bits))
			v.Sub(v, modulus)
		}
		return v.String()

	case typ == "bool":
		for _, c := range hexDigits {
			if c != '0' {
				return true
			}
		}
		return false

	case typ == "bytes32":
		return "0x" + hexDigits

	default:
		// Dynamic types (string, bytes, arrays, tuples): the topic is the
		// keccak hash of the value when indexed, or an approximated scalar
		// read when found in data — this is a deliberate divergence from
		// full ABI head/tail decoding. Either way, return the raw slot.
		return "0x" + hexDigits
	}
}

func bitsOf(typ string, def int) int {
	digits := strings.TrimLeft(typ, "uint")
	digits = strings.TrimLeft(digits, "int")
	n, err := strconv.Atoi(digits)
	if err != nil || n == 0 {
		return def
	}
	return n
}

// SerializeBytes renders b as a UTF-8 string when valid, or
// "0x"+lower_hex(b) otherwise, for callers that decode raw byte slices
// outside the scalar rules above.
func SerializeBytes(b []byte) any {
	if utf8.Valid(b) {
		return string(b)
	}
	return "0x" + hex.EncodeToString(b)
}
