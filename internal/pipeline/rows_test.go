package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/rpc"
)

// Contract creation transaction: to = null, value = "0x0", gas = "0x5208".
// Row stored with to_address = "", value = 0, gas = 21000.
func TestBuildTransactionRows_ContractCreation(t *testing.T) {
	msg := BlockMessage{
		ChainID: 1,
		Block: &rpc.Block{
			Number:    "0x1",
			Timestamp: "0x5f5e100",
			Transactions: []rpc.Transaction{
				{Hash: "0xdeadbeef", From: "0xAAAA", To: "", Value: "0x0", GasPrice: "0x1", Gas: "0x5208"},
			},
		},
	}

	rows := BuildTransactionRows([]BlockMessage{msg})
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "", r.ToAddress)
	assert.Equal(t, "0", r.Value)
	assert.EqualValues(t, 21000, r.Gas)
}

func TestBuildTransactionRows_SkipsFailedMessages(t *testing.T) {
	rows := BuildTransactionRows([]BlockMessage{{Failed: true}})
	assert.Len(t, rows, 0)
}

func TestUniqueAddresses_Dedup(t *testing.T) {
	msgs := []BlockMessage{
		{Logs: []rpc.Log{{Address: "0xAAAA"}, {Address: "0xaaaa"}, {Address: "0xBBBB"}}},
	}
	got := UniqueAddresses(msgs)
	assert.Len(t, got, 2)
}

func TestBuildEventRows_UndecodedWithoutABI(t *testing.T) {
	msgs := []BlockMessage{
		{Logs: []rpc.Log{{
			Address:     "0xdead000000000000000000000000000000dead",
			Topics:      []string{"0xfeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface"},
			Data:        "0x",
			BlockNumber: "0x1",
		}}},
	}
	rows := BuildEventRows(msgs, map[string]string{})
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].EventName)
	assert.Nil(t, rows[0].Params)
	require.NotNil(t, rows[0].Topic0)
	assert.Equal(t, msgs[0].Logs[0].Topics[0], *rows[0].Topic0)
}
