// Package storage implements the storage gateway: batched inserts of
// transaction, event, and ABI rows into a columnar store. The concrete
// backend is ClickHouse (clickhouse.go); gateway.go defines the Gateway
// interface the pipeline programs against, so it can be exercised against
// an in-memory fake in tests (memory.go).
package storage

import (
	"context"
	"time"
)

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	ChainID        uint32
	BlockNumber    uint64
	Hash           string
	FromAddress    string
	ToAddress      string // "" on contract creation
	Value          string // decimal string, u256
	GasPrice       string // decimal string, u256
	Gas            uint64
	Input          string
	ReceiptStatus  uint8
	Timestamp      time.Time
}

// EventRow is one row of the events table. Topic fields use *string so a
// null topic (anonymous events) round-trips distinctly from an empty
// string.
type EventRow struct {
	ChainID          uint32
	BlockNumber      uint64
	TransactionHash  string
	TransactionIndex uint32
	LogIndex         uint32
	Address          string
	Topic0           *string
	Topic1           *string
	Topic2           *string
	Topic3           *string
	Data             string
	EventName        *string
	Params           *string // JSON-encoded
}

// ABIRow is one row of the abis table.
type ABIRow struct {
	ChainID   uint32
	Address   string
	ABIJSON   string
	CreatedAt time.Time
}

// Gateway is the storage gateway contract: each call is a single batch; a
// call either fully succeeds or fully fails with no partial commit
// visible.
type Gateway interface {
	InsertTransactions(ctx context.Context, rows []TransactionRow) error
	InsertEvents(ctx context.Context, rows []EventRow) error
	InsertABIs(ctx context.Context, rows []ABIRow) error
	// LoadABIs returns rows matching chain_id and address, keyed by
	// address; missing addresses are absent from the result.
	LoadABIs(ctx context.Context, chainID uint32, addresses []string) (map[string]string, error)
	Close() error
}
