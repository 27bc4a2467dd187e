// Package metrics exposes the pipeline's Prometheus instrumentation: one
// counter or histogram per thing the pipeline's components produce —
// blocks, batches, ABI cache, Sourcify calls, decode outcomes, and insert
// latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every series the indexer emits under one struct so the
// bootstrap harness constructs it once and threads it through.
// BlocksProduced, BatchFlushes, SourcifyCalls, DecodeSuccess and
// DecodeFailure are registered and exported, but no component updates
// them, so they stay at zero.
type Metrics struct {
	BlocksProduced  *prometheus.CounterVec
	BlocksProcessed *prometheus.CounterVec
	BlocksFailed    *prometheus.CounterVec

	BatchFlushes  *prometheus.CounterVec // labeled by reason: size|timeout
	BatchSize     *prometheus.HistogramVec

	ABICacheHits   *prometheus.CounterVec
	ABICacheMisses *prometheus.CounterVec

	SourcifyCalls *prometheus.CounterVec // labeled by outcome

	DecodeSuccess *prometheus.CounterVec
	DecodeFailure *prometheus.CounterVec

	InsertLatency *prometheus.HistogramVec
}

// New registers and returns a Metrics bound to reg. The bootstrap harness
// passes its own *prometheus.Registry, served on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BlocksProduced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_blocks_produced_total",
			Help: "Block heights emitted by the producer, per chain.",
		}, []string{"chain_id"}),

		BlocksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_blocks_processed_total",
			Help: "Blocks successfully fetched and forwarded to the batcher.",
		}, []string{"chain_id"}),

		BlocksFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_blocks_failed_total",
			Help: "Blocks whose fetch failed at the processor stage.",
		}, []string{"chain_id"}),

		BatchFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_batch_flushes_total",
			Help: "Batcher flushes, labeled by trigger reason.",
		}, []string{"chain_id", "reason"}),

		BatchSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_batch_size",
			Help:    "Number of block messages per committed batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}, []string{"chain_id"}),

		ABICacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_abi_cache_hits_total",
			Help: "Sourcify TTL cache hits.",
		}, []string{"chain_id"}),

		ABICacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_abi_cache_misses_total",
			Help: "Sourcify TTL cache misses.",
		}, []string{"chain_id"}),

		SourcifyCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_sourcify_calls_total",
			Help: "Sourcify HTTP calls, labeled by outcome.",
		}, []string{"chain_id", "outcome"}),

		DecodeSuccess: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_decode_success_total",
			Help: "Logs decoded to a named event.",
		}, []string{"chain_id"}),

		DecodeFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_decode_failure_total",
			Help: "Logs left undecoded (no ABI, no matching entry, or decode error).",
		}, []string{"chain_id"}),

		InsertLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_insert_latency_seconds",
			Help:    "Storage gateway insert call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain_id", "table"}),
	}
}
