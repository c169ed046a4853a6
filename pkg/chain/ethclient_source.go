package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClientSource is the production Source, backed by a go-ethereum JSON-RPC
// client. It never retries on its own — retry.go wraps every call site that
// needs it, so the retry policy lives in one place.
type EthClientSource struct {
	client *ethclient.Client
}

// Dial connects to an EVM JSON-RPC endpoint (http(s):// or ws(s)://).
func Dial(ctx context.Context, url string) (*EthClientSource, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain source: %w", err)
	}
	return &EthClientSource{client: c}, nil
}

func (s *EthClientSource) ChainID(ctx context.Context) (uint64, error) {
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

func (s *EthClientSource) HeadNumber(ctx context.Context) (uint64, error) {
	n, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *EthClientSource) BlockHashByNumber(ctx context.Context, number uint64) (string, error) {
	h, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return "", err
	}
	return h.Hash().Hex(), nil
}

func (s *EthClientSource) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	b, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, err
	}
	out := &Block{
		Header: Header{
			Number:     b.NumberU64(),
			Hash:       b.Hash().Hex(),
			ParentHash: b.ParentHash().Hex(),
			Timestamp:  b.Time(),
		},
	}

	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(chainID)
	for idx, tx := range b.Transactions() {
		from, err := types.Sender(signer, tx)
		if err != nil {
			// fall back to the legacy signer for pre-EIP155 transactions
			from, err = types.Sender(types.HomesteadSigner{}, tx)
			if err != nil {
				continue
			}
		}
		to := ""
		if tx.To() != nil {
			to = strings.ToLower(tx.To().Hex())
		}
		out.Transactions = append(out.Transactions, Transaction{
			Hash:        tx.Hash().Hex(),
			Index:       uint64(idx),
			BlockNumber: out.Number,
			From:        strings.ToLower(from.Hex()),
			To:          to,
			Input:       tx.Data(),
		})
	}
	return out, nil
}

func (s *EthClientSource) LogsByTxIndex(ctx context.Context, number, txIndex uint64, addrs []string) ([]Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(number),
		ToBlock:   new(big.Int).SetUint64(number),
	}
	for _, a := range addrs {
		q.Addresses = append(q.Addresses, common.HexToAddress(a))
	}
	logs, err := s.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []Log
	for _, l := range logs {
		if uint64(l.TxIndex) != txIndex {
			continue
		}
		topics := make([]string, len(l.Topics))
		for i, t := range l.Topics {
			topics[i] = t.Hex()
		}
		out = append(out, Log{
			Address:     strings.ToLower(l.Address.Hex()),
			Topics:      topics,
			Data:        l.Data,
			TxHash:      l.TxHash.Hex(),
			TxIndex:     uint64(l.TxIndex),
			BlockNumber: l.BlockNumber,
			LogIndex:    uint64(l.Index),
			Removed:     l.Removed,
		})
	}
	return out, nil
}

var _ Source = (*EthClientSource)(nil)
