// Package chain adapts an EVM-compatible JSON-RPC endpoint into the plain
// DTOs the rest of the indexer works with, so nothing above this package
// touches go-ethereum's RPC types directly.
package chain

// Header is a block header, minus everything the indexer never reads.
type Header struct {
	Number     uint64 `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  uint64 `json:"timestamp"`
}

// Transaction is a single call inside a block, with the calldata already
// decoded from its wire hex encoding.
type Transaction struct {
	Hash        string `json:"hash"`
	Index       uint64 `json:"transactionIndex"`
	BlockNumber uint64 `json:"blockNumber"`
	From        string `json:"from"`
	To          string `json:"to"` // empty for contract creation
	Input       []byte `json:"input"`
}

// Log is a single EVM event log entry.
type Log struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        []byte   `json:"data"`
	TxHash      string   `json:"transactionHash"`
	TxIndex     uint64   `json:"transactionIndex"`
	BlockNumber uint64   `json:"blockNumber"`
	LogIndex    uint64   `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

// Block is a full block: header plus every transaction in it.
type Block struct {
	Header
	Transactions []Transaction
}
