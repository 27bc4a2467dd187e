package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/abi"
)

const erc20ABI = `[{"type":"event","name":"Transfer","anonymous":false,"inputs":[
  {"name":"from","type":"address","indexed":true},
  {"name":"to","type":"address","indexed":true},
  {"name":"value","type":"uint256","indexed":false}
]}]`

// ERC20 Transfer decode.
func TestDecode_ERC20Transfer(t *testing.T) {
	log := Log{
		Topics: []string{
			"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
			"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		},
		Data: "0x00000000000000000000000000000000000000000000000000000000000003e8",
	}

	got := Decode([]byte(erc20ABI), log)

	require.Equal(t, "Transfer", got.EventName)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", got.Params["from"])
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", got.Params["to"])
	assert.Equal(t, "1000", got.Params["value"])
}

// Unknown event: no matching ABI entry yields a zero Result.
func TestDecode_UnknownTopic0(t *testing.T) {
	log := Log{
		Topics: []string{"0xfeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface"},
		Data:   "0x",
	}
	got := Decode([]byte(erc20ABI), log)
	assert.Empty(t, got.EventName)
	assert.Nil(t, got.Params)
}

func TestDecode_InvalidABI(t *testing.T) {
	got := Decode([]byte("not json"), Log{Topics: []string{"0x00"}})
	assert.Empty(t, got.EventName)
}

// keccak256(canonical(e)) must equal the entry's expected topic0 for the
// well-known ERC20 Transfer signature.
func TestSignature_Transfer(t *testing.T) {
	parsed, err := abi.Parse([]byte(erc20ABI))
	require.NoError(t, err)

	events := parsed.Events()
	require.Len(t, events, 1)

	sig := abi.CanonicalSignature(events[0])
	assert.Equal(t, "Transfer(address,address,uint256)", sig)

	got := abi.Topic0(sig)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", got)
}

func TestDecode_BoolAndInt(t *testing.T) {
	const flagABI = `[{"type":"event","name":"Flag","anonymous":false,"inputs":[
	  {"name":"ok","type":"bool","indexed":false},
	  {"name":"delta","type":"int8","indexed":false}
	]}]`
	// delta = -1 as int8 → 0xff in the low byte.
	data := "0x0000000000000000000000000000000000000000000000000000000000000001" +
		"00000000000000000000000000000000000000000000000000000000000000ff"
	log := Log{
		Topics: []string{abi.Topic0("Flag(bool,int8)")},
		Data:   data,
	}
	got := Decode([]byte(flagABI), log)
	assert.Equal(t, true, got.Params["ok"])
	assert.Equal(t, "-1", got.Params["delta"])
}
