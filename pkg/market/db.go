package market

import (
	"fmt"
	"math/big"

	"github.com/insdexer/indexer/pkg/ikey"
	"github.com/insdexer/indexer/pkg/storage"
)

// GetOrder reads an order by id, or nil if it doesn't exist.
func GetOrder(s storage.Store, orderID string) (*Order, error) {
	v, err := s.Get(KeyOrderID(orderID))
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	var o Order
	if err := storage.DecodeJSON(v, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOrder inserts a brand new order (status Init) and its lookup indices.
func SaveOrder(txn storage.Txn, o *Order) error {
	data, err := storage.EncodeJSON(o)
	if err != nil {
		return err
	}
	if err := txn.Put(KeyOrderID(o.OrderID), data); err != nil {
		return err
	}
	if err := txn.Put(KeySellerSort(o.From, o.BlockNumber, o.OrderID), nil); err != nil {
		return err
	}
	if err := txn.Put(KeyTime(o.Timestamp, o.OrderID), nil); err != nil {
		return err
	}
	return txn.Put(KeyTickTime(o.Tick, o.Timestamp, o.OrderID), nil)
}

func putOrder(txn storage.Txn, o *Order) error {
	data, err := storage.EncodeJSON(o)
	if err != nil {
		return err
	}
	return txn.Put(KeyOrderID(o.OrderID), data)
}

// SetPrice transitions an order from Init to Open, fixing its total/unit
// price and publishing the price-sorted index the order is found through
// while open (NFT orders index by nft id, token orders by unit price).
func SetPrice(s storage.Store, txn storage.Txn, txHash, orderID string, totalPrice *big.Int) error {
	o, err := GetOrder(s, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("market: set price: order not found: %s", orderID)
	}

	o.TotalPrice = totalPrice
	o.UnitPrice = new(big.Int)
	if o.Amount > 0 {
		o.UnitPrice.Div(totalPrice, new(big.Int).SetUint64(o.Amount))
	}
	o.TxSetPrice = txHash
	o.Status = StatusOpen

	if err := putOrder(txn, o); err != nil {
		return err
	}

	switch o.OrderType {
	case OrderNFT:
		return txn.Put(KeyNFTOrder(o.Timestamp, o.NFTID), nil)
	default:
		return txn.Put(KeyTickPrice(o.Tick, o.UnitPrice, o.OrderID), nil)
	}
}

// Cancel transitions an order to Canceled, moving it from the seller's open
// index into the seller's closed/canceled index and removing it from
// whichever price index it was published under, if it had been opened.
func Cancel(s storage.Store, txn storage.Txn, txHash, orderID string) error {
	o, err := GetOrder(s, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("market: cancel: order not found: %s", orderID)
	}

	wasOpen := o.Status == StatusOpen
	o.TxCancel = txHash
	o.Status = StatusCanceled

	if err := putOrder(txn, o); err != nil {
		return err
	}
	if err := txn.Delete(KeySellerSort(o.From, o.BlockNumber, o.OrderID)); err != nil {
		return err
	}
	if err := txn.Put(KeySellerCloseCancel(o.From, o.BlockNumber, o.OrderID), nil); err != nil {
		return err
	}
	if !wasOpen {
		return nil
	}
	return deletePriceIndex(txn, o)
}

// Close transitions an order to Closed (bought), recording the buyer.
func Close(s storage.Store, txn storage.Txn, txHash, orderID, buyer string) error {
	o, err := GetOrder(s, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("market: close: order not found: %s", orderID)
	}

	o.TxClose = txHash
	o.Buyer = buyer
	o.Status = StatusClosed

	if err := putOrder(txn, o); err != nil {
		return err
	}
	if err := txn.Delete(KeySellerSort(o.From, o.BlockNumber, o.OrderID)); err != nil {
		return err
	}
	if err := txn.Put(KeySellerCloseCancel(o.From, o.BlockNumber, o.OrderID), nil); err != nil {
		return err
	}
	if err := txn.Put(KeyCloseTickTime(o.Tick, o.Timestamp, o.OrderID), nil); err != nil {
		return err
	}
	return deletePriceIndex(txn, o)
}

func deletePriceIndex(txn storage.Txn, o *Order) error {
	switch o.OrderType {
	case OrderNFT:
		return txn.Delete(KeyNFTOrder(o.Timestamp, o.NFTID))
	default:
		return txn.Delete(KeyTickPrice(o.Tick, o.UnitPrice, o.OrderID))
	}
}

// LatestClosedOrders returns up to limit of the most recently closed orders
// for tick, newest first, walking the close-tick-time index.
func LatestClosedOrders(s storage.Store, tick string, limit uint64) ([]*Order, error) {
	keys, err := storage.GetItemKeys(s, CloseTickTimePrefix(tick), nil, 0, limit, storage.Forward)
	if err != nil {
		return nil, err
	}
	var out []*Order
	for _, k := range keys {
		orderID := ikey.LastSegment(k)
		o, err := GetOrder(s, orderID)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// FloorPrice scans the tick's open price index in ascending unit-price
// order and returns the price of the first order whose amount satisfies
// minAmount (the token's mint_limit) — the cheapest order large enough to
// represent a meaningful floor.
func FloorPrice(s storage.Store, tick string, minAmount uint64) (*big.Int, bool, error) {
	items, err := storage.GetItems(s, TickPricePrefix(tick), nil, 0, 0, storage.Forward)
	if err != nil {
		return nil, false, err
	}
	for _, it := range items {
		orderID := ikey.LastSegment(it.Key)
		o, err := GetOrder(s, orderID)
		if err != nil {
			return nil, false, err
		}
		if o != nil && o.Amount >= minAmount {
			return o.UnitPrice, true, nil
		}
	}
	return nil, false, nil
}
