package sourcify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/config"
)

func metadataBody(abi string) string {
	return `{"files":[{"name":"contracts/Foo.metadata.json","content":"{\"output\":{\"abi\":` + strings.ReplaceAll(abi, `"`, `\"`) + `}}"}]}`
}

// Rate-limit rotation: p0 returns 429, p1 returns 200; exactly 2 HTTP
// calls observed.
func TestGetABI_RateLimitRotation(t *testing.T) {
	var calls int32

	p0 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer p0.Close()

	p1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(metadataBody(`[{"type":"event","name":"X","inputs":[]}]`)))
	}))
	defer p1.Close()

	cfg := config.SourcifyConfig{
		ProxyURLs:  []string{p0.URL, p1.URL},
		MaxRetries: 3,
		Timeout:    time.Second,
		CacheTTL:   time.Hour,
	}
	c := New(cfg, nil)

	abiJSON, err := c.GetABI(context.Background(), 1, "0xABCDEF0000000000000000000000000000000000")
	require.NoError(t, err)
	assert.NotEmpty(t, abiJSON)
	assert.EqualValues(t, 2, calls)

	// cache now holds the entry: a second GetABI must not hit the network.
	_, err = c.GetABI(context.Background(), 1, "0xabcdef0000000000000000000000000000000000")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls, "second call should be served from cache")
}

// Rotation fairness under serialized access: the Nth call returns
// proxies[N mod len(proxies)].
func TestNextURL_RotationFairness(t *testing.T) {
	c := &Client{proxies: []string{"a", "b", "c"}}
	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, w := range want {
		assert.Equal(t, w, c.nextURL(), "call %d", i)
	}
}

// Cache TTL: a value inserted at t is absent once t' - t >= TTL.
func TestGetABI_CacheTTLExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(metadataBody(`[]`)))
	}))
	defer srv.Close()

	cfg := config.SourcifyConfig{DirectURL: srv.URL, MaxRetries: 1, Timeout: time.Second, CacheTTL: 30 * time.Millisecond}
	c := New(cfg, nil)

	_, err := c.GetABI(context.Background(), 1, "0xaa")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)

	time.Sleep(60 * time.Millisecond)

	_, err = c.GetABI(context.Background(), 1, "0xaa")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls, "cache entry should have expired")
}

// Retry bound: fetchWithRetry performs at most MaxRetries HTTP calls for a
// single GetABI call when every attempt fails.
func TestGetABI_RetryBound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.SourcifyConfig{DirectURL: srv.URL, MaxRetries: 3, Timeout: time.Second, CacheTTL: time.Hour}
	c := New(cfg, nil)

	_, err := c.GetABI(context.Background(), 1, "0xaa")
	require.Error(t, err)
	assert.EqualValues(t, 3, calls)
}

// Not found maps to an authoritative negative, stopping immediately
// rather than exhausting retries.
func TestGetABI_NotFound_NoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.SourcifyConfig{DirectURL: srv.URL, MaxRetries: 3, Timeout: time.Second, CacheTTL: time.Hour}
	c := New(cfg, nil)

	_, err := c.GetABI(context.Background(), 1, "0xdeaddeaddeaddeaddeaddeaddeaddeaddeaddead")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls, "authoritative negative must not retry")
}
