// Package sourcify implements an ABI resolver: a stateful client owning a
// rotating pool of HTTP proxy front-ends, a fallback direct URL, and an
// in-memory TTL cache. It behaves like a single actor owning a rotation
// cursor and cache: the cursor advances atomically, and the cache is
// internally synchronized for concurrent use. The TTL cache is
// github.com/hashicorp/golang-lru/v2/expirable rather than a hand-rolled
// map+mutex.
package sourcify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/chainlens/evm-indexer/internal/config"
	"github.com/chainlens/evm-indexer/internal/errs"
	"github.com/chainlens/evm-indexer/internal/hexutil"
	"github.com/chainlens/evm-indexer/internal/logging"
	"github.com/chainlens/evm-indexer/internal/retry"
)

// Client resolves contract ABIs from a Sourcify-compatible verification
// service through a rotating proxy pool, with retry/backoff and caching.
type Client struct {
	proxies    []string
	directURL  string
	maxRetries int
	timeout    time.Duration
	cursor     atomic.Uint64
	cache      *lru.LRU[string, []byte]
	httpClient *http.Client
	log        *logging.Logger
}

// New builds a Client from cfg. A nil logger is replaced with a default
// info-level stderr logger so callers in tests don't need to construct one.
func New(cfg config.SourcifyConfig, log *logging.Logger) *Client {
	if log == nil {
		log = logging.New(logging.DefaultConfig())
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Client{
		proxies:    cfg.ProxyURLs,
		directURL:  cfg.DirectURL,
		maxRetries: maxRetries,
		timeout:    timeout,
		cache:      lru.NewLRU[string, []byte](4096, nil, ttl),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithComponent("sourcify"),
	}
}

func cacheKey(chainID uint32, address string) string {
	return fmt.Sprintf("%d:%s:abi", chainID, hexutil.NormalizeAddress(address))
}

// GetABI normalizes the address, checks the TTL cache, and on miss fetches
// with retry and writes through.
func (c *Client) GetABI(ctx context.Context, chainID uint32, address string) ([]byte, error) {
	address = hexutil.NormalizeAddress(address)
	key := cacheKey(chainID, address)

	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	abiJSON, err := c.fetchWithRetry(ctx, chainID, address)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, abiJSON)
	return abiJSON, nil
}

// nextURL returns proxies[cursor mod len(proxies)], advancing the cursor,
// or directURL when the pool is empty.
func (c *Client) nextURL() string {
	if len(c.proxies) == 0 {
		return c.directURL
	}
	n := c.cursor.Add(1) - 1
	return c.proxies[n%uint64(len(c.proxies))]
}

// fetchWithRetry retries fetchOnce against a rotating proxy per classify's
// outcome table.
func (c *Client) fetchWithRetry(ctx context.Context, chainID uint32, address string) ([]byte, error) {
	var out []byte
	cfg := retry.Config{MaxAttempts: c.maxRetries, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	err := retry.Do(ctx, cfg, c.classify, func(ctx context.Context, attempt int) error {
		base := c.nextURL()
		abiJSON, err := c.fetchOnce(ctx, base, chainID, address)
		if err != nil {
			if errs.IsTransient(err) {
				c.log.Warn().Str("proxy", base).Int("attempt", attempt).Err(err).Msg("sourcify fetch retrying")
			}
			return err
		}
		out = abiJSON
		return nil
	})
	return out, err
}

// classify maps a fetch outcome to a retry.Outcome: a rate limit backs
// off, an authoritative negative or missing/invalid ABI (not_found,
// not_verified, no_abi_found, invalid_metadata) stops immediately, and any
// other error retries immediately.
func (c *Client) classify(err error, attempt, maxAttempts int) retry.Outcome {
	if err == nil {
		return retry.OutcomeSuccess
	}
	if isAuthoritativeNegative(err) {
		return retry.OutcomeFail
	}
	if attempt >= maxAttempts {
		return retry.OutcomeFail
	}
	if isRateLimited(err) {
		return retry.OutcomeRetryBackoff
	}
	return retry.OutcomeRetryImmediate
}

func isAuthoritativeNegative(err error) bool {
	return sameErr(err, errs.ErrNotFound) || sameErr(err, errs.ErrNotVerified) || sameErr(err, errs.ErrNoABIFound) || sameErr(err, errs.ErrInvalidMeta)
}

func isRateLimited(err error) bool { return sameErr(err, errs.ErrRateLimited) }

func sameErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

type sourcifyFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type filesEnvelope struct {
	Files []sourcifyFile `json:"files"`
}

// fetchOnce performs one GET against base and extracts the ABI from the
// returned file listing.
func (c *Client) fetchOnce(ctx context.Context, base string, chainID uint32, address string) ([]byte, error) {
	url := fmt.Sprintf("%s/files/any/%d/%s", strings.TrimRight(base, "/"), chainID, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindConfiguration, "sourcify.fetchOnce", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.ErrTimeout
		}
		return nil, errs.ErrTransport
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, errs.ErrNotFound
	case http.StatusTooManyRequests:
		return nil, errs.ErrRateLimited
	case http.StatusOK:
		// fall through
	default:
		return nil, &errs.HTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.ErrTransport
	}

	files, err := parseFiles(body)
	if err != nil {
		return nil, errs.ErrInvalidResp
	}
	return extractABI(files)
}

func parseFiles(body []byte) ([]sourcifyFile, error) {
	var env filesEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Files) > 0 {
		return env.Files, nil
	}
	var bare []sourcifyFile
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("sourcify: unrecognized files response shape")
}

// extractABI tries metadata.json's embedded ABI first, then a standalone
// *.abi.json/abi.json file, and finally reports no ABI found.
func extractABI(files []sourcifyFile) ([]byte, error) {
	for _, f := range files {
		if strings.HasSuffix(f.Name, "metadata.json") {
			var meta struct {
				Output struct {
					ABI json.RawMessage `json:"abi"`
				} `json:"output"`
				ABI json.RawMessage `json:"abi"`
			}
			if err := json.Unmarshal([]byte(f.Content), &meta); err != nil {
				return nil, errs.ErrInvalidMeta
			}
			if len(meta.Output.ABI) > 0 {
				return meta.Output.ABI, nil
			}
			if len(meta.ABI) > 0 {
				return meta.ABI, nil
			}
			return nil, errs.ErrInvalidMeta
		}
	}
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".abi.json") || f.Name == "abi.json" {
			return []byte(f.Content), nil
		}
	}
	return nil, errs.ErrNoABIFound
}

// CheckVerified queries a proxy's check-all-by-addresses endpoint and
// returns the verification status string ("not_verified" if the address is
// unknown to Sourcify).
func (c *Client) CheckVerified(ctx context.Context, chainID uint32, address string) (string, error) {
	address = hexutil.NormalizeAddress(address)
	base := c.nextURL()
	url := fmt.Sprintf("%s/check-all-by-addresses?addresses=%s&chainIds=%d", strings.TrimRight(base, "/"), address, chainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.New(errs.KindConfiguration, "sourcify.CheckVerified", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.ErrTransport
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &errs.HTTPError{Status: resp.StatusCode}
	}

	var results []struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", errs.ErrInvalidResp
	}
	if len(results) == 0 {
		return "not_verified", nil
	}
	return results[0].Status, nil
}

// ClearCache invalidates one key, when both chainID and address are given,
// or the entire cache otherwise.
func (c *Client) ClearCache(chainID *uint32, address *string) {
	if chainID != nil && address != nil {
		c.cache.Remove(cacheKey(*chainID, *address))
		return
	}
	c.cache.Purge()
}
