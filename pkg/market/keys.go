// Package market implements marketplace order persistence: the secondary
// indices a listing needs for seller lookups, price-sorted browsing, and
// market-cap/floor-price computation.
package market

import (
	"math/big"

	"github.com/insdexer/indexer/pkg/ikey"
)

const (
	KeyOrderIDPrefix          = "market_id"
	KeySellerSortPrefix       = "market_seller-sort-id"
	KeyTickPricePrefix        = "market_tick_price-id"
	KeyNFTPrefix              = "market_nft_id"
	KeyTimePrefix             = "market_time-id"
	KeyTickTimePrefix         = "market_tick_time-id"
	KeySellerCloseCancelPrefix = "market_seller_close_cancel-sort-id"
	KeyCloseTickTimePrefix    = "market_close_tick_time-id"
)

func KeyOrderID(orderID string) []byte { return []byte(KeyOrderIDPrefix + ":" + orderID) }

func KeySellerSort(seller string, blocknumber uint64, orderID string) []byte {
	return []byte(KeySellerSortPrefix + ":" + seller + ":" + ikey.NumIndexDesc(blocknumber) + ":" + orderID)
}
func SellerSortPrefix(seller string) []byte {
	return []byte(KeySellerSortPrefix + ":" + seller + ":")
}

func KeyTickPrice(tick string, unitPrice *big.Int, orderID string) []byte {
	return []byte(KeyTickPricePrefix + ":" + tick + ":" + ikey.NumIndexBig(unitPrice) + ":" + orderID)
}
func TickPricePrefix(tick string) []byte { return []byte(KeyTickPricePrefix + ":" + tick + ":") }

func KeyNFTOrder(timestamp, nftID uint64) []byte {
	return []byte(KeyNFTPrefix + ":" + ikey.NumIndexDesc(timestamp) + ":" + ikey.NumIndex(nftID))
}

func KeyTime(timestamp uint64, orderID string) []byte {
	return []byte(KeyTimePrefix + ":" + ikey.NumIndexDesc(timestamp) + ":" + orderID)
}

func KeyTickTime(tick string, timestamp uint64, orderID string) []byte {
	return []byte(KeyTickTimePrefix + ":" + tick + ":" + ikey.NumIndexDesc(timestamp) + ":" + orderID)
}
func TickTimePrefix(tick string) []byte { return []byte(KeyTickTimePrefix + ":" + tick + ":") }

func KeySellerCloseCancel(seller string, blocknumber uint64, orderID string) []byte {
	return []byte(KeySellerCloseCancelPrefix + ":" + seller + ":" + ikey.NumIndexDesc(blocknumber) + ":" + orderID)
}

func KeyCloseTickTime(tick string, timestamp uint64, orderID string) []byte {
	return []byte(KeyCloseTickTimePrefix + ":" + tick + ":" + ikey.NumIndexDesc(timestamp) + ":" + orderID)
}
func CloseTickTimePrefix(tick string) []byte {
	return []byte(KeyCloseTickTimePrefix + ":" + tick + ":")
}
