// Package config loads the indexer's configuration from environment
// variables (optionally backed by a .env file): named env vars with
// explicit defaults, assembled into a typed Config at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ChainConfig is one entry of the chain_id → rpc_url mapping, plus the
// per-chain starting height from START_BLOCK.
type ChainConfig struct {
	ChainID    uint32
	RPCURL     string
	StartBlock uint64
	// RPCRateLimit caps outbound JSON-RPC requests per second against this
	// chain's node; most public/shared endpoints rate-limit by IP and will
	// start rejecting requests well before this indexer's own concurrency
	// limits would otherwise saturate them.
	RPCRateLimit float64
}

// SourcifyConfig holds the ABI resolver's proxy pool, retry, and cache
// settings.
type SourcifyConfig struct {
	ProxyURLs  []string
	DirectURL  string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
}

// ClickHouseConfig holds the columnar store's connection coordinates.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// CheckpointConfig holds the Postgres DSN backing checkpoint persistence,
// an optional feature: an empty DSN disables it and every restart resumes
// from START_BLOCK.
type CheckpointConfig struct {
	DSN string
}

// Config is the fully assembled, immutable-after-startup configuration.
type Config struct {
	Chains      []ChainConfig
	Sourcify    SourcifyConfig
	ClickHouse  ClickHouseConfig
	Checkpoint  CheckpointConfig
	SentryDSN   string
	LogLevel    string
	LogPretty   bool
	MetricsAddr string
}

// Load reads a .env file if present (missing file is not an error) and
// assembles Config from the environment. Missing required variables return
// a *ConfigError naming the offending variable so startup fails fast with
// a clear cause.
func Load() (*Config, error) {
	_ = godotenv.Load()

	chains, err := loadChains()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Chains: chains,
		Sourcify: SourcifyConfig{
			ProxyURLs:  splitCSV(getString("SOURCIFY_PROXY_URLS", "")),
			DirectURL:  getString("SOURCIFY_DIRECT_URL", "https://sourcify.dev/server"),
			Timeout:    time.Duration(getInt("SOURCIFY_TIMEOUT", 30000)) * time.Millisecond,
			MaxRetries: getInt("SOURCIFY_MAX_RETRIES", 3),
			CacheTTL:   time.Duration(getInt("SOURCIFY_CACHE_TTL", 86400000)) * time.Millisecond,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getString("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getString("CLICKHOUSE_DATABASE", "indexer"),
			Username: getString("CLICKHOUSE_USERNAME", "default"),
			Password: getString("CLICKHOUSE_PASSWORD", ""),
		},
		Checkpoint: CheckpointConfig{
			DSN: getString("CHECKPOINT_DSN", ""),
		},
		SentryDSN:   getString("SENTRY_DSN", ""),
		LogLevel:    getString("LOG_LEVEL", "info"),
		LogPretty:   getBool("LOG_PRETTY", false),
		MetricsAddr: getString("METRICS_ADDR", ":9090"),
	}

	return cfg, nil
}

// ConfigError names the offending environment variable, so a startup fatal
// log can point at exactly what is missing.
type ConfigError struct {
	Var string
	Msg string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %s", e.Var, e.Msg) }

func loadChains() ([]ChainConfig, error) {
	startBlock := uint64(getInt("START_BLOCK", 0))
	rateLimit := getFloat("RPC_RATE_LIMIT", 20)

	if raw := os.Getenv("CHAINS"); raw != "" {
		// CHAINS=1:https://rpc.a,137:https://rpc.b
		var chains []ChainConfig
		for _, entry := range strings.Split(raw, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, ":", 2)
			if len(parts) != 2 {
				return nil, &ConfigError{Var: "CHAINS", Msg: fmt.Sprintf("malformed entry %q, want chain_id:rpc_url", entry)}
			}
			id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
			if err != nil {
				return nil, &ConfigError{Var: "CHAINS", Msg: fmt.Sprintf("invalid chain id %q", parts[0])}
			}
			chains = append(chains, ChainConfig{
				ChainID:      uint32(id),
				RPCURL:       strings.TrimSpace(parts[1]),
				StartBlock:   startBlock,
				RPCRateLimit: rateLimit,
			})
		}
		if len(chains) == 0 {
			return nil, &ConfigError{Var: "CHAINS", Msg: "no chains configured"}
		}
		return chains, nil
	}

	supported := os.Getenv("SUPPORTED_CHAINS")
	if supported == "" {
		return nil, &ConfigError{Var: "CHAINS", Msg: "neither CHAINS nor SUPPORTED_CHAINS is set"}
	}
	var chains []ChainConfig
	for _, idStr := range strings.Split(supported, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return nil, &ConfigError{Var: "SUPPORTED_CHAINS", Msg: fmt.Sprintf("invalid chain id %q", idStr)}
		}
		envName := "RPC_URL_" + idStr
		url := os.Getenv(envName)
		if url == "" {
			return nil, &ConfigError{Var: envName, Msg: "missing_rpc_url"}
		}
		chains = append(chains, ChainConfig{ChainID: uint32(id), RPCURL: url, StartBlock: startBlock, RPCRateLimit: rateLimit})
	}
	if len(chains) == 0 {
		return nil, &ConfigError{Var: "SUPPORTED_CHAINS", Msg: "no chains configured"}
	}
	return chains, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
