// Package producer implements a demand-driven block producer: a per-chain
// source of block heights that never outruns the chain head, unlike a
// naive producer that emits unconditionally regardless of what the chain
// has actually mined. Modeled as a GenStage-style producer: a bounded
// channel between producer and processor pool, where channel capacity
// acts as demand.
package producer

import (
	"context"
	"sync"
	"time"
)

// HeadSource reports the chain's current head height. rpc.Client satisfies
// this via BlockNumber.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// DefaultPollInterval is the default poll interval for parked demand: 1s.
const DefaultPollInterval = time.Second

// Producer is a per-chain demand-driven source built around a
// {chain_id, next_block, pending_demand} state machine.
type Producer struct {
	ChainID uint32

	head         HeadSource
	pollInterval time.Duration
	headCacheTTL time.Duration

	mu            sync.Mutex
	nextBlock     uint64
	pendingDemand uint64
	cachedHead    uint64
	cachedHeadAt  time.Time
}

// New builds a Producer for chainID starting at startBlock.
func New(chainID uint32, startBlock uint64, head HeadSource, pollInterval time.Duration) *Producer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Producer{
		ChainID:      chainID,
		head:         head,
		pollInterval: pollInterval,
		headCacheTTL: pollInterval,
		nextBlock:    startBlock,
	}
}

// NextBlock returns the next height the producer will emit.
func (p *Producer) NextBlock() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextBlock
}

// PendingDemand returns demand parked because it exceeded the available
// range at the head known at the time of the last RequestDemand call.
func (p *Producer) PendingDemand() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingDemand
}

// RequestDemand implements the demand-increment algorithm: given
// additional demand d, determine the chain head, emit min(d, available)
// consecutive heights starting at next_block, advance next_block, and
// park any unmet demand. Heights are always returned in strictly
// increasing order.
func (p *Producer) RequestDemand(ctx context.Context, d uint64) ([]uint64, error) {
	headHeight, err := p.getHead(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	totalDemand := p.pendingDemand + d
	var available uint64
	if headHeight+1 > p.nextBlock {
		available = headHeight - p.nextBlock + 1
	}

	n := totalDemand
	if available < n {
		n = available
	}

	heights := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		heights = append(heights, p.nextBlock+i)
	}
	p.nextBlock += n
	p.pendingDemand = totalDemand - n

	return heights, nil
}

// getHead returns the cached head if still fresh (cached briefly, TTL no
// longer than the poll interval — roughly one block time), otherwise
// refreshes it via the RPC client.
func (p *Producer) getHead(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	if time.Since(p.cachedHeadAt) < p.headCacheTTL {
		h := p.cachedHead
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	h, err := p.head.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.cachedHead = h
	p.cachedHeadAt = time.Now()
	p.mu.Unlock()
	return h, nil
}

// Run drives the producer loop: it reads demand requests from demandCh,
// emits heights onto heightsCh, and when demand is parked (available = 0)
// retries on pollInterval ticks until the chain head advances. Run exits
// when ctx is canceled.
func (p *Producer) Run(ctx context.Context, demandCh <-chan uint64, heightsCh chan<- uint64) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-demandCh:
			if err := p.drain(ctx, d, heightsCh); err != nil {
				return err
			}
		case <-ticker.C:
			if p.PendingDemand() > 0 {
				if err := p.drain(ctx, 0, heightsCh); err != nil {
					return err
				}
			}
		}
	}
}

func (p *Producer) drain(ctx context.Context, d uint64, heightsCh chan<- uint64) error {
	heights, err := p.RequestDemand(ctx, d)
	if err != nil {
		return err
	}
	for _, h := range heights {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case heightsCh <- h:
		}
	}
	return nil
}
