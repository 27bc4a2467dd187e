// Package rpc implements a minimal JSON-RPC client: a chain-aware POST of
// eth_getBlockByNumber and eth_getLogs over HTTP/HTTPS, with a small
// defensive retry budget for transport failures and an optional
// token-bucket rate limit per node. It speaks raw JSON-RPC directly
// instead of wrapping go-ethereum's ethclient, so the error taxonomy
// (NotFound / RpcError / HttpError / transport error) stays more specific
// than what ethclient surfaces.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/chainlens/evm-indexer/internal/errs"
	"github.com/chainlens/evm-indexer/internal/retry"
)

// Client is a JSON-RPC 2.0 client for a single node URL. One Client per
// chain is typical; it is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	idCounter  atomic.Int64
	retryCfg   retry.Config
	limiter    *rate.Limiter
}

// DefaultTimeout is the default per-call RPC timeout: 15s.
const DefaultTimeout = 15 * time.Second

// New builds a Client against url with the given per-call timeout. A zero
// timeout uses DefaultTimeout.
func New(url string, timeout time.Duration) *Client {
	return NewWithRateLimit(url, timeout, 0)
}

// NewWithRateLimit builds a Client that additionally throttles outbound
// requests to rps requests per second (burst of one), so a fast producer
// loop can't run a public node's rate limit into 429s on its own. rps <= 0
// disables throttling.
func NewWithRateLimit(url string, timeout time.Duration, rps float64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retry.Config{MaxAttempts: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second},
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

// GetBlock calls eth_getBlockByNumber(hex(n), true), requesting full
// transaction objects. A null result maps to errs.ErrNotFound.
func (c *Client) GetBlock(ctx context.Context, n uint64) (*Block, error) {
	var block *Block
	err := retry.Do(ctx, c.retryCfg, transientOnly, func(ctx context.Context, attempt int) error {
		raw, err := c.call(ctx, "eth_getBlockByNumber", []any{fmt.Sprintf("0x%x", n), true})
		if err != nil {
			return err
		}
		if string(raw) == "null" || len(raw) == 0 {
			return errs.ErrNotFound
		}
		var b Block
		if err := json.Unmarshal(raw, &b); err != nil {
			return errs.New(errs.KindProtocol, "rpc.GetBlock", errs.ErrInvalidResp)
		}
		block = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetLogs calls eth_getLogs({fromBlock, toBlock}).
func (c *Client) GetLogs(ctx context.Context, from, to uint64) ([]Log, error) {
	var logs []Log
	err := retry.Do(ctx, c.retryCfg, transientOnly, func(ctx context.Context, attempt int) error {
		params := []any{map[string]any{
			"fromBlock": fmt.Sprintf("0x%x", from),
			"toBlock":   fmt.Sprintf("0x%x", to),
		}}
		raw, err := c.call(ctx, "eth_getLogs", params)
		if err != nil {
			return err
		}
		var ls []Log
		if err := json.Unmarshal(raw, &ls); err != nil {
			return errs.New(errs.KindProtocol, "rpc.GetLogs", errs.ErrInvalidResp)
		}
		logs = ls
		return nil
	})
	return logs, err
}

// BlockNumber calls eth_blockNumber, used by the producer to determine the
// current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := retry.Do(ctx, c.retryCfg, transientOnly, func(ctx context.Context, attempt int) error {
		raw, err := c.call(ctx, "eth_blockNumber", []any{})
		if err != nil {
			return err
		}
		var hexStr string
		if err := json.Unmarshal(raw, &hexStr); err != nil {
			return errs.New(errs.KindProtocol, "rpc.BlockNumber", errs.ErrInvalidResp)
		}
		v, err := parseHexUint(hexStr)
		if err != nil {
			return errs.New(errs.KindProtocol, "rpc.BlockNumber", errs.ErrInvalidResp)
		}
		n = v
		return nil
	})
	return n, err
}

// call issues one JSON-RPC request and extracts the result, mapping
// transport/HTTP/RPC-envelope failures onto the errs taxonomy.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.New(errs.KindTransient, "rpc.call", errs.ErrTimeout)
		}
	}

	id := c.idCounter.Add(1)
	body, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return nil, errs.New(errs.KindProtocol, "rpc.call", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindConfiguration, "rpc.call", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.New(errs.KindTransient, "rpc.call", errs.ErrTimeout)
		}
		return nil, errs.New(errs.KindTransient, "rpc.call", errs.ErrTransport)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindTransient, "rpc.call", errs.ErrTransport)
	}

	if resp.StatusCode != http.StatusOK {
		kind := errs.KindProtocol
		if resp.StatusCode >= 500 {
			kind = errs.KindTransient
		}
		return nil, errs.New(kind, "rpc.call", &errs.HTTPError{Status: resp.StatusCode})
	}

	var env response
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, errs.New(errs.KindProtocol, "rpc.call", errs.ErrInvalidResp)
	}
	if env.Error != nil {
		return nil, errs.New(errs.KindProtocol, "rpc.call", &errs.RPCError{Code: env.Error.Code, Message: env.Error.Message})
	}
	return env.Result, nil
}

// transientOnly only retries errors classified as transient (connection
// resets, timeouts, 5xx) and only up to cfg.MaxAttempts; every other error
// (including RPCError and ErrNotFound) fails the call immediately — RPC
// errors are message-level failures, not something a retry can fix.
func transientOnly(err error, attempt, maxAttempts int) retry.Outcome {
	if err == nil {
		return retry.OutcomeSuccess
	}
	if !errs.IsTransient(err) {
		return retry.OutcomeFail
	}
	if attempt >= maxAttempts {
		return retry.OutcomeFail
	}
	return retry.OutcomeRetryImmediate
}

func parseHexUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	return v, err
}
