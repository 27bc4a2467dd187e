// Command indexer is the bootstrap harness: load configuration, wire up
// logging/metrics/crash-reporting, connect to ClickHouse (and optionally
// Postgres for checkpoints), build one pipeline per configured chain, and
// run them under the chain supervisor until signaled to stop. The wiring
// order (config → Sentry → context/signal setup → datastore connects →
// per-chain clients → service construction → goroutine start → signal wait
// → graceful stop) follows the same bootstrap shape as
// services/indexer-service/cmd/main.go.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainlens/evm-indexer/internal/checkpoint"
	"github.com/chainlens/evm-indexer/internal/config"
	"github.com/chainlens/evm-indexer/internal/logging"
	"github.com/chainlens/evm-indexer/internal/metrics"
	"github.com/chainlens/evm-indexer/internal/monitoring"
	"github.com/chainlens/evm-indexer/internal/pipeline"
	"github.com/chainlens/evm-indexer/internal/producer"
	"github.com/chainlens/evm-indexer/internal/rpc"
	"github.com/chainlens/evm-indexer/internal/sourcify"
	"github.com/chainlens/evm-indexer/internal/storage"
	"github.com/chainlens/evm-indexer/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Fail fast at startup and name the offending variable.
		logging.New(logging.DefaultConfig()).Fatal().Err(err).Msg("configuration error")
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: logging.Level(cfg.LogLevel), Pretty: cfg.LogPretty})

	if err := monitoring.InitSentry(monitoring.Config{DSN: cfg.SentryDSN}); err != nil {
		log.Warn().Err(err).Msg("sentry init failed, continuing without crash reporting")
	}
	defer monitoring.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := storage.NewClickHouseGateway(ctx, cfg.ClickHouse)
	if err != nil {
		log.Fatal().Err(err).Msg("clickhouse connection failed")
		os.Exit(1)
	}
	defer gateway.Close()

	if err := gateway.ApplySchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema apply failed")
		os.Exit(1)
	}

	var checkpoints *checkpoint.Repository
	if cfg.Checkpoint.DSN != "" {
		checkpoints, err = checkpoint.Open(cfg.Checkpoint.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("checkpoint store unavailable, resuming from START_BLOCK every restart")
		} else {
			defer checkpoints.Close()
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	go serveMetrics(cfg.MetricsAddr, reg, log)

	sourcifyClient := sourcify.New(cfg.Sourcify, log)

	children := make([]supervisor.Child, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		chain := chain
		startBlock := chain.StartBlock
		if checkpoints != nil {
			if next, ok, err := checkpoints.GetNextBlock(ctx, chain.ChainID); err == nil && ok {
				startBlock = next
			}
		}

		children = append(children, supervisor.Child{
			ChainID: chain.ChainID,
			NewRunnable: func() supervisor.Runnable {
				rpcClient := rpc.NewWithRateLimit(chain.RPCURL, rpc.DefaultTimeout, chain.RPCRateLimit)
				prod := producer.New(chain.ChainID, startBlock, rpcClient, producer.DefaultPollInterval)
				return &pipeline.Pipeline{
					ChainID:     chain.ChainID,
					RPC:         rpcClient,
					Gateway:     gateway,
					Sourcify:    sourcifyClient,
					Producer:    prod,
					Reorg:       producer.NoopReorgDetector{},
					Checkpoints: checkpoints,
					Metrics:     m,
					Log:         log.WithChain(chain.ChainID),
				}
			},
		})
	}

	sup := supervisor.New(log)
	log.Info().Int("chains", len(children)).Msg("starting chain supervisor")
	sup.Run(ctx, children)
	log.Info().Msg("shutdown complete")
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("metrics server stopped")
	}
}
