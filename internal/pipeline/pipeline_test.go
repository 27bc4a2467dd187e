package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/logging"
	"github.com/chainlens/evm-indexer/internal/rpc"
	"github.com/chainlens/evm-indexer/internal/storage"
)

func sampleBatch() []BlockMessage {
	return []BlockMessage{{
		ChainID:     1,
		BlockNumber: 10,
		Block: &rpc.Block{
			Number:    "0xa",
			Timestamp: "0x1",
			Transactions: []rpc.Transaction{
				{Hash: "0x1", From: "0xaaaa", To: "0xbbbb", Value: "0x1", GasPrice: "0x1", Gas: "0x5208"},
			},
		},
		Logs: []rpc.Log{{Address: "0xbbbb", Topics: []string{"0xtopic"}, Data: "0x", BlockNumber: "0xa"}},
	}}
}

// Batch atomicity: a storage failure on either insert fails the whole
// commit; the pipeline surfaces the error instead of silently dropping it.
func TestCommitBatch_FailsWholeBatchOnStorageError(t *testing.T) {
	gw := storage.NewMemoryGateway()
	gw.FailEvents = true

	p := &Pipeline{ChainID: 1, Gateway: gw, Log: logging.New(logging.DefaultConfig())}

	err := p.commitBatch(context.Background(), sampleBatch())
	assert.Error(t, err, "expected error when event insert fails")
}

func TestCommitBatch_Success(t *testing.T) {
	gw := storage.NewMemoryGateway()
	p := &Pipeline{ChainID: 1, Gateway: gw, Log: logging.New(logging.DefaultConfig())}

	require.NoError(t, p.commitBatch(context.Background(), sampleBatch()))
	assert.Len(t, gw.Transactions, 1)
	assert.Len(t, gw.Events, 1)
}
