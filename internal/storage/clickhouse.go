package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/chainlens/evm-indexer/internal/config"
)

// ClickHouseGateway is the production Gateway, backed by
// github.com/ClickHouse/clickhouse-go/v2. Each Insert* call opens one
// native batch (PrepareBatch/Append/Send): a single all-or-nothing unit,
// since clickhouse-go only considers a batch durable after Send succeeds,
// so a failed Append or Send never leaves partial rows visible.
type ClickHouseGateway struct {
	conn driver.Conn
}

// NewClickHouseGateway dials ClickHouse per cfg.
func NewClickHouseGateway(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseGateway, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: dial clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage: ping clickhouse: %w", err)
	}
	return &ClickHouseGateway{conn: conn}, nil
}

func (g *ClickHouseGateway) InsertTransactions(ctx context.Context, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := g.conn.PrepareBatch(ctx, "INSERT INTO transactions")
	if err != nil {
		return fmt.Errorf("storage: prepare transactions batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.ChainID, r.BlockNumber, r.Hash, r.FromAddress, r.ToAddress,
			r.Value, r.GasPrice, r.Gas, r.Input, r.ReceiptStatus, r.Timestamp,
		); err != nil {
			return fmt.Errorf("storage: append transaction row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("storage: send transactions batch: %w", err)
	}
	return nil
}

func (g *ClickHouseGateway) InsertEvents(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := g.conn.PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return fmt.Errorf("storage: prepare events batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.ChainID, r.BlockNumber, r.TransactionHash, r.TransactionIndex, r.LogIndex,
			r.Address, r.Topic0, r.Topic1, r.Topic2, r.Topic3, r.Data, r.EventName, r.Params,
		); err != nil {
			return fmt.Errorf("storage: append event row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("storage: send events batch: %w", err)
	}
	return nil
}

func (g *ClickHouseGateway) InsertABIs(ctx context.Context, rows []ABIRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := g.conn.PrepareBatch(ctx, "INSERT INTO abis")
	if err != nil {
		return fmt.Errorf("storage: prepare abis batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.ChainID, r.Address, r.ABIJSON, r.CreatedAt); err != nil {
			return fmt.Errorf("storage: append abi row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("storage: send abis batch: %w", err)
	}
	return nil
}

func (g *ClickHouseGateway) LoadABIs(ctx context.Context, chainID uint32, addresses []string) (map[string]string, error) {
	out := make(map[string]string, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}
	rows, err := g.conn.Query(ctx,
		"SELECT address, abi_json FROM abis WHERE chain_id = ? AND address IN ?",
		chainID, addresses,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load abis: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address, abiJSON string
		if err := rows.Scan(&address, &abiJSON); err != nil {
			return nil, fmt.Errorf("storage: scan abi row: %w", err)
		}
		if _, exists := out[address]; !exists {
			// The ABI table has no uniqueness constraint; first-wins on
			// duplicate reads.
			out[address] = abiJSON
		}
	}
	return out, rows.Err()
}

func (g *ClickHouseGateway) Close() error { return g.conn.Close() }
