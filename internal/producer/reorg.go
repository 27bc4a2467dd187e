package producer

import "context"

// ReorgDetector is an interface-only reorg hook: a full
// rollback/compensating-delete implementation is out of scope here. The
// pipeline holds a ReorgDetector in its Reorg field but never calls
// Detect, so a detector set there has no effect on ingestion.
type ReorgDetector interface {
	// Detect reports whether block at height, identified by its locally
	// recorded hash, has been orphaned by a competing fork.
	Detect(ctx context.Context, chainID uint32, height uint64, blockHash string) (bool, error)
}

// NoopReorgDetector never reports a reorg. It is the default wired into
// the pipeline; events from orphaned blocks remain in storage.
type NoopReorgDetector struct{}

func (NoopReorgDetector) Detect(ctx context.Context, chainID uint32, height uint64, blockHash string) (bool, error) {
	return false, nil
}
