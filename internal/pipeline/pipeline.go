package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chainlens/evm-indexer/internal/checkpoint"
	"github.com/chainlens/evm-indexer/internal/errs"
	"github.com/chainlens/evm-indexer/internal/logging"
	"github.com/chainlens/evm-indexer/internal/metrics"
	"github.com/chainlens/evm-indexer/internal/monitoring"
	"github.com/chainlens/evm-indexer/internal/producer"
	"github.com/chainlens/evm-indexer/internal/rpc"
	"github.com/chainlens/evm-indexer/internal/sourcify"
	"github.com/chainlens/evm-indexer/internal/storage"
)

// Concurrency limits for the per-chain fan-out/fan-in pipeline.
const (
	ProcessorConcurrency = 10
	BatcherConcurrency   = 5
	ABIResolveFanout      = 1 // bounded fan-out against Sourcify, default 1
)

// Pipeline wires the three stages (produce, process, batch-commit) for a
// single chain.
type Pipeline struct {
	ChainID     uint32
	RPC         *rpc.Client
	Gateway     storage.Gateway
	Sourcify    *sourcify.Client
	Producer    *producer.Producer
	Reorg       producer.ReorgDetector
	Checkpoints *checkpoint.Repository // optional; nil disables persistence
	Metrics     *metrics.Metrics       // optional; nil disables instrumentation

	Log *logging.Logger
}

func (p *Pipeline) chainLabel() string {
	return fmt.Sprintf("%d", p.ChainID)
}

// Run drives the full pipeline until ctx is canceled or an unrecoverable
// error (storage failure) occurs, in which case it returns the error for
// the chain supervisor to act on.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.Reorg == nil {
		p.Reorg = producer.NoopReorgDetector{}
	}
	if p.Log == nil {
		p.Log = logging.New(logging.DefaultConfig())
	}

	heights := make(chan uint64, ProcessorConcurrency*2)
	demand := make(chan uint64, 1)
	processed := make(chan BlockMessage, ProcessorConcurrency*2)

	g, gctx := errgroup.WithContext(ctx)

	// guard runs a worker body under panic recovery, turning a panic into
	// an error so the chain supervisor restarts the pipeline.
	guard := func(fn func() error) func() error {
		return func() (err error) {
			defer monitoring.RecoverWithSentry(p.Log, func(perr error) { err = perr })
			return fn()
		}
	}

	g.Go(guard(func() error { return p.Producer.Run(gctx, demand, heights) }))

	for i := 0; i < ProcessorConcurrency; i++ {
		g.Go(guard(func() error { return p.runProcessor(gctx, heights, demand, processed) }))
	}

	batcher := NewBatcher(p.commitBatch)
	for i := 0; i < BatcherConcurrency; i++ {
		g.Go(guard(func() error { return batcher.Run(gctx, processed) }))
	}

	// Seed initial demand so the producer has something to do; after that
	// each processor signals one unit of demand per height it takes, so the
	// heights channel's capacity is the steady-state demand.
	select {
	case demand <- uint64(cap(heights)):
	case <-gctx.Done():
	}

	return g.Wait()
}

// runProcessor implements one processor worker: take a height, fetch block
// and logs, and forward the result (or a Failed message on error) to the
// batcher stage. Per-message failures never poison the batch.
func (p *Pipeline) runProcessor(ctx context.Context, heights <-chan uint64, demand chan<- uint64, out chan<- BlockMessage) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case height, ok := <-heights:
			if !ok {
				return nil
			}
			select {
			case demand <- 1:
			case <-ctx.Done():
				return nil
			}
			msg := p.fetch(ctx, height)
			if p.Metrics != nil {
				if msg.Failed {
					p.Metrics.BlocksFailed.WithLabelValues(p.chainLabel()).Inc()
				} else {
					p.Metrics.BlocksProcessed.WithLabelValues(p.chainLabel()).Inc()
				}
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Pipeline) fetch(ctx context.Context, height uint64) BlockMessage {
	block, err := p.RPC.GetBlock(ctx, height)
	if err != nil {
		p.Log.Warn().Uint32("chain_id", p.ChainID).Uint64("block", height).Err(err).Msg("block fetch failed")
		return BlockMessage{ChainID: p.ChainID, BlockNumber: height, Failed: true, Err: err}
	}
	logs, err := p.RPC.GetLogs(ctx, height, height)
	if err != nil {
		p.Log.Warn().Uint32("chain_id", p.ChainID).Uint64("block", height).Err(err).Msg("log fetch failed")
		return BlockMessage{ChainID: p.ChainID, BlockNumber: height, Failed: true, Err: err}
	}
	return BlockMessage{ChainID: p.ChainID, BlockNumber: height, Block: block, Logs: logs}
}

// commitBatch resolves ABIs for the batch, writes transaction and event
// rows, advances the checkpoint, and reports insert latency. Each
// invocation gets its own batch ID, attached to every log line it emits, so
// operators can correlate the ABI persist, decode, checkpoint and commit
// log lines for the same commit, the way a generated correlation ID ties
// together the stages of one published message elsewhere in this codebase.
func (p *Pipeline) commitBatch(ctx context.Context, batch []BlockMessage) error {
	batchID := uuid.NewString()
	addresses := UniqueAddresses(batch)

	abis, err := p.resolveABIs(ctx, batchID, addresses)
	if err != nil {
		return errs.New(errs.KindStorage, "pipeline.commitBatch", err)
	}

	txRows := BuildTransactionRows(batch)
	eventRows := BuildEventRows(batch, abis)
	for _, row := range eventRows {
		if _, ok := abis[row.Address]; ok && row.EventName == nil {
			p.Log.Warn().Str("batch_id", batchID).Str("address", row.Address).Str("tx_hash", row.TransactionHash).Uint32("log_index", row.LogIndex).Msg("event decode failed")
		}
	}

	if len(txRows) > 0 {
		start := time.Now()
		err := p.Gateway.InsertTransactions(ctx, txRows)
		if p.Metrics != nil {
			p.Metrics.InsertLatency.WithLabelValues(p.chainLabel(), "transactions").Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return errs.New(errs.KindStorage, "pipeline.commitBatch", fmt.Errorf("%w: %v", errs.ErrInsertFailed, err))
		}
	}
	if len(eventRows) > 0 {
		start := time.Now()
		err := p.Gateway.InsertEvents(ctx, eventRows)
		if p.Metrics != nil {
			p.Metrics.InsertLatency.WithLabelValues(p.chainLabel(), "events").Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return errs.New(errs.KindStorage, "pipeline.commitBatch", fmt.Errorf("%w: %v", errs.ErrInsertFailed, err))
		}
	}

	if p.Metrics != nil {
		p.Metrics.BatchSize.WithLabelValues(p.chainLabel()).Observe(float64(len(batch)))
	}

	if p.Checkpoints != nil {
		if max, ok := maxBlockNumber(batch); ok {
			if err := p.Checkpoints.SetNextBlock(ctx, p.ChainID, max+1); err != nil {
				p.Log.Warn().Str("batch_id", batchID).Uint32("chain_id", p.ChainID).Err(err).Msg("checkpoint persist failed")
			}
		}
	}

	p.Log.Debug().Str("batch_id", batchID).Int("transactions", len(txRows)).Int("events", len(eventRows)).Msg("batch committed")
	return nil
}

// resolveABIs loads known ABIs from storage, then resolves the remainder
// via Sourcify with bounded fan-out, persisting and merging any newly
// found ABIs.
func (p *Pipeline) resolveABIs(ctx context.Context, batchID string, addresses []string) (map[string]string, error) {
	found, err := p.Gateway.LoadABIs(ctx, p.ChainID, addresses)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = make(map[string]string)
	}

	var missing []string
	for _, a := range addresses {
		if _, ok := found[a]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 || p.Sourcify == nil {
		return found, nil
	}

	type result struct {
		address string
		abiJSON []byte
	}
	sem := make(chan struct{}, ABIResolveFanout)
	results := make(chan result, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range missing {
		addr := addr
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return nil
			}
			abiJSON, err := p.Sourcify.GetABI(gctx, p.ChainID, addr)
			if err != nil {
				if p.Metrics != nil {
					p.Metrics.ABICacheMisses.WithLabelValues(p.chainLabel()).Inc()
				}
				// not-found / no-ABI / decode failures: leave the log
				// undecoded, do not fail the batch.
				return nil
			}
			if p.Metrics != nil {
				p.Metrics.ABICacheHits.WithLabelValues(p.chainLabel()).Inc()
			}
			results <- result{address: addr, abiJSON: abiJSON}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return found, nil
	}
	close(results)

	var newRows []storage.ABIRow
	for r := range results {
		found[r.address] = string(r.abiJSON)
		newRows = append(newRows, storage.ABIRow{
			ChainID:   p.ChainID,
			Address:   r.address,
			ABIJSON:   string(r.abiJSON),
			CreatedAt: time.Now(),
		})
	}
	if len(newRows) > 0 {
		if err := p.Gateway.InsertABIs(ctx, newRows); err != nil {
			p.Log.Warn().Str("batch_id", batchID).Uint32("chain_id", p.ChainID).Err(err).Msg("abi persist failed")
		}
	}

	return found, nil
}

func maxBlockNumber(batch []BlockMessage) (uint64, bool) {
	var max uint64
	found := false
	for _, m := range batch {
		if m.Failed {
			continue
		}
		if !found || m.BlockNumber > max {
			max = m.BlockNumber
			found = true
		}
	}
	return max, found
}
