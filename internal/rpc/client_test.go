package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/errs"
)

func TestGetBlock_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": nil})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.GetBlock(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, errs.ErrNotFound.Error(), err.Error())
}

func TestGetBlock_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "eth_getBlockByNumber", req.Method)

		block := Block{Number: "0x64", Hash: "0xabc", Timestamp: "0x1", Transactions: nil}
		raw, _ := json.Marshal(block)
		w.Write(mustMarshal(response{Result: raw}))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	b, err := c.GetBlock(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "0x64", b.Number)
}

func TestCall_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(mustMarshal(response{Error: &rpcErrorBody{Code: -32000, Message: "boom"}}))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.GetBlock(context.Background(), 1)
	require.Error(t, err)
}

func TestCall_HTTPError_NotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.GetBlock(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx is not transient and must not be retried")
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
