package market

import "math/big"

// OrderType distinguishes a token listing from an NFT listing — the two
// kinds of order share a table but index differently.
type OrderType int

const (
	OrderNFT OrderType = iota
	OrderToken
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus int

const (
	StatusInit OrderStatus = iota
	StatusOpen
	StatusClosed
	StatusCanceled
)

// Order is the persisted record for a single marketplace listing.
type Order struct {
	OrderType OrderType `json:"order_type"`
	OrderID   string    `json:"order_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Tick      string    `json:"tick"`
	NFTID     uint64    `json:"nft_id"`
	NFTTx     string    `json:"nft_tx"`
	Amount    uint64    `json:"amount"`

	// TotalPrice and UnitPrice hold u128-range marketplace amounts; a Go
	// uint64 would silently truncate values the original u128 type allows.
	TotalPrice *big.Int `json:"total_price"`
	UnitPrice  *big.Int `json:"unit_price"`

	Tx         string `json:"tx"`
	TxSetPrice string `json:"tx_setprice"`
	TxCancel   string `json:"tx_cancel"`
	TxClose    string `json:"tx_close"`

	BlockNumber uint64      `json:"blocknumber"`
	Timestamp   uint64      `json:"timestamp"`
	Status      OrderStatus `json:"order_status"`
	Buyer       string      `json:"buyer"`
}
