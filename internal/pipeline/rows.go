package pipeline

import (
	"encoding/json"
	"time"

	"github.com/chainlens/evm-indexer/internal/decoder"
	"github.com/chainlens/evm-indexer/internal/hexutil"
	"github.com/chainlens/evm-indexer/internal/rpc"
	"github.com/chainlens/evm-indexer/internal/storage"
)

// BuildTransactionRows assembles a transaction row for every transaction of
// every block in messages. ReceiptStatus defaults to 0 ("unknown") rather
// than "failed", since eth_getBlockByNumber carries no receipt.
func BuildTransactionRows(messages []BlockMessage) []storage.TransactionRow {
	var rows []storage.TransactionRow
	for _, m := range messages {
		if m.Failed || m.Block == nil {
			continue
		}
		ts, _ := hexutil.ToUint64(m.Block.Timestamp)
		blockNumber, _ := hexutil.ToUint64(m.Block.Number)

		for _, tx := range m.Block.Transactions {
			rows = append(rows, transactionRow(m.ChainID, blockNumber, ts, tx))
		}
	}
	return rows
}

func transactionRow(chainID uint32, blockNumber, timestamp uint64, tx rpc.Transaction) storage.TransactionRow {
	value, _ := hexutil.ToBigInt(tx.Value)
	gasPrice, _ := hexutil.ToBigInt(tx.GasPrice)
	gas, _ := hexutil.ToUint64(tx.Gas)

	to := ""
	if tx.To != "" {
		to = hexutil.NormalizeAddress(tx.To)
	}

	return storage.TransactionRow{
		ChainID:       chainID,
		BlockNumber:   blockNumber,
		Hash:          tx.Hash,
		FromAddress:   hexutil.NormalizeAddress(tx.From),
		ToAddress:     to,
		Value:         value.String(),
		GasPrice:      gasPrice.String(),
		Gas:           gas,
		Input:         tx.Input,
		ReceiptStatus: 0,
		Timestamp:     time.Unix(int64(timestamp), 0).UTC(),
	}
}

// BuildEventRows decodes each log using the ABI resolved for its address
// (if any) and assembles an event row. Decoder failures and missing ABIs
// never abort the batch — they simply leave event_name/params null.
func BuildEventRows(messages []BlockMessage, abis map[string]string) []storage.EventRow {
	var rows []storage.EventRow
	for _, m := range messages {
		if m.Failed {
			continue
		}
		for _, log := range m.Logs {
			rows = append(rows, eventRow(m.ChainID, log, abis))
		}
	}
	return rows
}

func eventRow(chainID uint32, log rpc.Log, abis map[string]string) storage.EventRow {
	blockNumber, _ := hexutil.ToUint64(log.BlockNumber)
	txIndex, _ := hexutil.ToUint64(log.TransactionIndex)
	logIndex, _ := hexutil.ToUint64(log.LogIndex)
	address := hexutil.NormalizeAddress(log.Address)

	row := storage.EventRow{
		ChainID:          chainID,
		BlockNumber:      blockNumber,
		TransactionHash:  log.TransactionHash,
		TransactionIndex: uint32(txIndex),
		LogIndex:         uint32(logIndex),
		Address:          address,
		Data:             log.Data,
	}
	row.Topic0, row.Topic1, row.Topic2, row.Topic3 = topicPtrs(log.Topics)

	abiJSON, ok := abis[address]
	if !ok || row.Topic0 == nil {
		return row
	}

	result := decoder.Decode([]byte(abiJSON), decoder.Log{Topics: log.Topics, Data: log.Data})
	if result.EventName == "" {
		return row
	}

	paramsJSON, err := json.Marshal(result.Params)
	if err != nil {
		return row
	}
	name := result.EventName
	params := string(paramsJSON)
	row.EventName = &name
	row.Params = &params
	return row
}

func topicPtrs(topics []string) (t0, t1, t2, t3 *string) {
	ptrs := []**string{&t0, &t1, &t2, &t3}
	for i := 0; i < len(ptrs) && i < len(topics); i++ {
		v := topics[i]
		*ptrs[i] = &v
	}
	return
}

// UniqueAddresses collects the distinct, normalized contract addresses
// across every log in messages.
func UniqueAddresses(messages []BlockMessage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range messages {
		if m.Failed {
			continue
		}
		for _, log := range m.Logs {
			addr := hexutil.NormalizeAddress(log.Address)
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	return out
}
