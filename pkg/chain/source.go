package chain

import "context"

// Source is the chain read surface the sync worker depends on. The only
// production implementation is EthClientSource; tests use an in-memory fake.
type Source interface {
	// ChainID returns the network's chain id, checked once at startup
	// against the configured value.
	ChainID(ctx context.Context) (uint64, error)

	// HeadNumber returns the latest block number known to the node. The
	// sync worker computes the finalized head as HeadNumber - confirmBlocks.
	HeadNumber(ctx context.Context) (uint64, error)

	// BlockByNumber fetches a full block, including its transactions.
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)

	// BlockHashByNumber fetches just the header hash for number, used by
	// the reorg detector to cheaply re-check the finalized window.
	BlockHashByNumber(ctx context.Context, number uint64) (string, error)

	// LogsByTxIndex returns the event logs emitted by transaction txIndex
	// inside block number, already filtered to addrs if non-empty.
	LogsByTxIndex(ctx context.Context, number, txIndex uint64, addrs []string) ([]Log, error)
}
