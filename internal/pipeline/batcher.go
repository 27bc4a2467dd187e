package pipeline

import (
	"context"
	"time"
)

// DefaultBatchSize and DefaultBatchTimeout are the batch flush policy
// defaults: flush at 100 messages or 1000ms since the first message in the
// batch, whichever fires first.
const (
	DefaultBatchSize    = 100
	DefaultBatchTimeout = time.Second
)

// Batcher collects BlockMessages from the channel passed to Run and invokes
// Commit once a batch is ready. The pipeline runs BatcherConcurrency
// (default 5) Run goroutines over one chain's channel; each goroutine
// assembles its own batch independently, so FIFO ordering holds only within
// a single goroutine's stream, and batches of one chain may commit out of
// block order.
type Batcher struct {
	BatchSize    int
	BatchTimeout time.Duration
	Commit       func(ctx context.Context, batch []BlockMessage) error
}

// NewBatcher builds a Batcher with the default batch size and timeout.
func NewBatcher(commit func(ctx context.Context, batch []BlockMessage) error) *Batcher {
	return &Batcher{BatchSize: DefaultBatchSize, BatchTimeout: DefaultBatchTimeout, Commit: commit}
}

// Run reads messages from in until ctx is canceled or in is closed,
// flushing a batch whenever BatchSize messages have accumulated or
// BatchTimeout has elapsed since the first message of the in-progress
// batch, whichever fires first.
func (b *Batcher) Run(ctx context.Context, in <-chan BlockMessage) error {
	batch := make([]BlockMessage, 0, b.BatchSize)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := b.Commit(ctx, batch)
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = flush()
			return ctx.Err()

		case msg, ok := <-in:
			if !ok {
				return flush()
			}
			if len(batch) == 0 {
				timer = time.NewTimer(b.BatchTimeout)
				timerC = timer.C
			}
			batch = append(batch, msg)
			if len(batch) >= b.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}

		case <-timerC:
			timerC = nil
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
