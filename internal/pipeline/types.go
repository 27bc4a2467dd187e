// Package pipeline implements the three-stage per-chain pipeline: fan-out
// block fetch, ABI batch resolve, row assembly, batched write, and
// ack/fail, wired per chain by the supervisor.
package pipeline

import "github.com/chainlens/evm-indexer/internal/rpc"

// BlockMessage is the in-flight block message produced for one height,
// enriched by a processor with the fetched block and logs. Failed is set
// when the processor could not fetch the block or logs; failed messages
// are excluded from batches rather than poisoning them.
type BlockMessage struct {
	ChainID     uint32
	BlockNumber uint64
	Block       *rpc.Block
	Logs        []rpc.Log
	Failed      bool
	Err         error
}
