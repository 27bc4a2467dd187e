// Package supervisor implements a chain supervisor: one pipeline per
// configured chain, restarted one-for-one with exponential backoff on
// failure, with chains isolated from one another. Modeled as a
// per-chain goroutine-plus-waitgroup supervision loop, generalized from a
// fixed ticker loop to Run-until-error pipelines restarted under backoff.
package supervisor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/chainlens/evm-indexer/internal/logging"
)

// Runnable is anything the supervisor can own and restart: in production,
// *pipeline.Pipeline.
type Runnable interface {
	Run(ctx context.Context) error
}

// Child is one supervised chain: its identity and how to (re)build its
// Runnable. NewRunnable is invoked once per start/restart, so a fresh
// pipeline gets fresh internal state after each backoff.
type Child struct {
	ChainID     uint32
	NewRunnable func() Runnable
}

// BackoffBase and BackoffCap bound the supervisor's restart delay.
const (
	BackoffBase = time.Second
	BackoffCap  = time.Minute
)

// Supervisor owns one goroutine per configured chain and restarts it on
// failure, isolating each chain's failures from the others.
type Supervisor struct {
	Log *logging.Logger

	mu       sync.Mutex
	restarts map[uint32]int
}

// New builds a Supervisor. A nil logger is replaced with a default one.
func New(log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.New(logging.DefaultConfig())
	}
	return &Supervisor{Log: log, restarts: make(map[uint32]int)}
}

// Run starts one supervised goroutine per child and blocks until ctx is
// canceled. One chain's failure never halts another.
func (s *Supervisor) Run(ctx context.Context, children []Child) {
	var wg sync.WaitGroup
	for _, c := range children {
		wg.Add(1)
		go func(c Child) {
			defer wg.Done()
			s.superviseChild(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (s *Supervisor) superviseChild(ctx context.Context, c Child) {
	log := s.Log.WithChain(c.ChainID)
	for {
		if ctx.Err() != nil {
			return
		}

		runnable := c.NewRunnable()
		err := runnable.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// A Runnable should only return nil on shutdown; treat it the
			// same as ctx cancellation to avoid a tight restart loop.
			return
		}

		attempt := s.nextAttempt(c.ChainID)
		delay := backoffDelay(attempt)
		log.Error().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("pipeline failed, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) nextAttempt(chainID uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts[chainID]++
	return s.restarts[chainID]
}

// backoffDelay is BackoffBase * 2^(attempt-1), capped at BackoffCap.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * BackoffBase
	if d > BackoffCap {
		d = BackoffCap
	}
	return d
}
