package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Batch assembly: 100 consecutive messages inside 1s flush as a single
// batch; 30 messages flush on timeout with exactly 30 rows.
func TestBatcher_FlushOnSize(t *testing.T) {
	var mu sync.Mutex
	var commits [][]BlockMessage

	b := &Batcher{BatchSize: 100, BatchTimeout: time.Hour, Commit: func(ctx context.Context, batch []BlockMessage) error {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]BlockMessage, len(batch))
		copy(cp, batch)
		commits = append(commits, cp)
		return nil
	}}

	in := make(chan BlockMessage)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, in) }()

	for i := 0; i < 100; i++ {
		in <- BlockMessage{BlockNumber: uint64(i)}
	}

	// give the goroutine a moment to process the size-triggered flush
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, commits, 1, "commits = %v, want exactly one batch of 100", lens(commits))
	require.Len(t, commits[0], 100)
}

func TestBatcher_FlushOnTimeout(t *testing.T) {
	var mu sync.Mutex
	var commits [][]BlockMessage

	b := &Batcher{BatchSize: 100, BatchTimeout: 30 * time.Millisecond, Commit: func(ctx context.Context, batch []BlockMessage) error {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]BlockMessage, len(batch))
		copy(cp, batch)
		commits = append(commits, cp)
		return nil
	}}

	in := make(chan BlockMessage)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, in) }()

	for i := 0; i < 30; i++ {
		in <- BlockMessage{BlockNumber: uint64(i)}
	}

	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, commits, 1, "commits = %v, want exactly one batch of 30", lens(commits))
	require.Len(t, commits[0], 30)
}

func lens(batches [][]BlockMessage) []int {
	out := make([]int, len(batches))
	for i, b := range batches {
		out[i] = len(b)
	}
	return out
}
