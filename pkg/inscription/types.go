package inscription

import (
	"encoding/json"
	"math/big"

	"github.com/insdexer/indexer/pkg/chain"
)

// MimeCategory classifies an inscription's calldata by what the rest of the
// pipeline needs to do with it.
type MimeCategory int

const (
	CategoryNull MimeCategory = iota
	CategoryText
	CategoryImage
	CategoryTransfer
	CategoryJson
	CategoryInvoke
)

func (c MimeCategory) String() string {
	switch c {
	case CategoryText:
		return "text"
	case CategoryImage:
		return "image"
	case CategoryTransfer:
		return "transfer"
	case CategoryJson:
		return "json"
	case CategoryInvoke:
		return "invoke"
	default:
		return "null"
	}
}

// VerifiedStatus records whether the inscribe worker accepted an
// inscription as protocol-valid.
type VerifiedStatus int

const (
	Unresolved VerifiedStatus = iota
	Successful
	Failed
)

// TransferTxRawLength and TransferTxHexLength bound the batch NFT transfer
// encoding: every moved inscription id is referenced by a 32-byte (64 hex
// character) transaction hash chunk.
const (
	TransferTxRawLength = 32
	TransferTxHexLength = 64
)

// Inscription is the persisted record for a single extracted transaction.
type Inscription struct {
	ID            uint64         `json:"id"`
	TxHash        string         `json:"tx_hash"`
	TxIndex       uint64         `json:"tx_index"`
	BlockNumber   uint64         `json:"blocknumber"`
	From          string         `json:"from"`
	To            string         `json:"to"`
	MimeCategory  MimeCategory   `json:"mime_category"`
	MimeType      string         `json:"mime_type"`
	MimeData      string         `json:"mime_data"`
	Timestamp     uint64         `json:"timestamp"`
	Verified      VerifiedStatus `json:"verified"`
	Signature     string         `json:"signature,omitempty"`
	Collection    string         `json:"collection,omitempty"`
	MarketOrderID string         `json:"market_order_id,omitempty"`

	// EventLogs is persisted alongside the record (the invoke handlers need
	// it again once this inscription reaches the interpretation stage,
	// potentially in a separate process run than the one that extracted
	// it). JSON is never persisted; HydrateJSON re-derives it from MimeData
	// whenever a JSON-category record is loaded back from the store.
	EventLogs []chain.Log    `json:"event_logs,omitempty"`
	JSON      map[string]any `json:"-"`
}

// HydrateJSON re-derives the JSON field from MimeData for a JSON-category
// inscription. Call this after loading a record back from the store, since
// JSON itself is never persisted.
func (insc *Inscription) HydrateJSON() {
	if insc.MimeCategory != CategoryJson || insc.MimeData == "" {
		return
	}
	var obj map[string]any
	if json.Unmarshal([]byte(insc.MimeData), &obj) == nil {
		insc.JSON = obj
	}
}

// NFTTransfer is one holder change produced while processing a single
// inscription (a direct transfer batch, or a marketplace buy/cancel).
type NFTTransfer struct {
	NFTID      uint64
	TransferID uint64
}

// Token is the persisted record for a deployed fungible token.
type Token struct {
	InscID       uint64 `json:"insc_id"`
	Tick         string `json:"tick"`
	TickI        string `json:"tick_i"`
	Tx           string `json:"tx"`
	From         string `json:"from"`
	BlockNumber  uint64 `json:"blocknumber"`
	Timestamp    uint64 `json:"timestamp"`
	Holders      uint64 `json:"holders"`
	MintMax      uint64 `json:"mint_max"`
	MintLimit    uint64 `json:"mint_limit"`
	MintProgress uint64 `json:"mint_progress"`
	MintFinished bool   `json:"mint_finished"`

	MarketVolume24h *big.Int `json:"market_volume24h"`
	MarketTxs24h    uint64   `json:"market_txs24h"`
	MarketCap       *big.Int `json:"market_cap"`
	MarketFloorPrice *big.Int `json:"market_floor_price"`
}

// TokenBalanceMax bounds a single holder's balance for any deployed token,
// matching the mint/transfer overflow checks in the protocol handlers.
const TokenBalanceMax uint64 = 1_000_000_000_000_000_000

// Collection is the persisted record for an NFT collection deploy.
type Collection struct {
	InscID      uint64   `json:"insc_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Image       string   `json:"image"`
	Icon        string   `json:"icon"`
	Items       []uint64 `json:"items"`
}
