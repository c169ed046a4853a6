package inscription

import (
	"math/big"
	"strings"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/market"
	"github.com/insdexer/indexer/pkg/storage"
)

// mcapCalcCount bounds how many of a tick's most recently closed orders feed
// the rolling 24h volume/tx-count figures.
const mcapCalcCount = 16

// marketAction is a deferred marketplace side effect produced while
// processing a single inscription, applied at Save time once the
// inscription is known to have verified successfully.
type marketAction struct {
	kind       string // "new_nft", "new_token", "setprice", "buy", "cancel"
	order      *market.Order
	orderID    string
	totalPrice *big.Int
	buyer      string
}

func orderIDHex(raw string) string { return "0x" + strings.TrimPrefix(raw, "0x") }

// processInvoke interprets the marketplace contract event logs attached to
// an invoke-category inscription. The first recognized event decides the
// outcome; a transaction the marketplace ABI doesn't recognize fails.
func (c *Context) processInvoke(insc *Inscription) bool {
	for _, log := range insc.EventLogs {
		ev, ok := c.marketABI.Match(log)
		if !ok {
			continue
		}
		switch ev.Name {
		case "MarketList":
			return c.executeMarketList(insc, ev)
		case "MarketSetPrice":
			return c.executeMarketSetPrice(insc, ev)
		case "MarketBuy":
			return c.executeMarketBuy(insc, ev)
		case "MarketCancel":
			return c.executeMarketCancel(insc, ev)
		}
	}
	return false
}

// executeMarketList opens a new NFT order: the lister must currently hold
// the referenced NFT, and escrow custody moves to the market contract.
func (c *Context) executeMarketList(insc *Inscription, ev *chain.MarketEvent) bool {
	if !ev.IsNFT || ev.OrderID == "" {
		return false
	}
	if c.GetNFTHolder(ev.NFTID) != insc.From {
		return false
	}

	c.setNFTHolder(ev.NFTID, insc.ID, insc.To)
	c.queueMarketAction(insc.ID, &marketAction{
		kind: "new_nft",
		order: &market.Order{
			OrderType:   market.OrderNFT,
			OrderID:     orderIDHex(ev.OrderID),
			From:        insc.From,
			To:          insc.To,
			NFTID:       ev.NFTID,
			NFTTx:       insc.TxHash,
			Amount:      1,
			Tx:          insc.TxHash,
			BlockNumber: insc.BlockNumber,
			Timestamp:   insc.Timestamp,
			Status:      market.StatusInit,
		},
	})
	return true
}

// executeMarketSetPrice moves an Init order to Open, fixing the price it
// will be found at while listed.
func (c *Context) executeMarketSetPrice(insc *Inscription, ev *chain.MarketEvent) bool {
	if ev.OrderID == "" || ev.Price == nil {
		return false
	}
	o, err := market.GetOrder(c.store, orderIDHex(ev.OrderID))
	if err != nil || o == nil {
		return false
	}
	if o.Status != market.StatusInit || o.From != insc.From {
		return false
	}

	c.queueMarketAction(insc.ID, &marketAction{
		kind:       "setprice",
		orderID:    orderIDHex(ev.OrderID),
		totalPrice: ev.Price,
	})
	return true
}

// executeMarketBuy closes an Open order, moving the escrowed asset to the
// buyer.
func (c *Context) executeMarketBuy(insc *Inscription, ev *chain.MarketEvent) bool {
	if ev.OrderID == "" {
		return false
	}
	o, err := market.GetOrder(c.store, orderIDHex(ev.OrderID))
	if err != nil || o == nil {
		return false
	}
	if o.Status != market.StatusOpen {
		return false
	}

	buyer := ev.Buyer
	if buyer == "" {
		buyer = insc.From
	}

	switch o.OrderType {
	case market.OrderNFT:
		c.setNFTHolder(o.NFTID, insc.ID, buyer)
	case market.OrderToken:
		if c.GetToken(o.Tick) == nil {
			return false
		}
		c.ChangeTokenBalance(o.Tick, o.To, -int64(o.Amount))
		c.ChangeTokenBalance(o.Tick, buyer, int64(o.Amount))
		c.tokenTransfers = append(c.tokenTransfers, tokenTransfer{tick: o.Tick, inscID: insc.ID})
		c.dirtyTicks[strings.ToLower(o.Tick)] = true
	}

	c.queueMarketAction(insc.ID, &marketAction{
		kind:    "buy",
		orderID: orderIDHex(ev.OrderID),
		buyer:   buyer,
	})
	return true
}

// executeMarketCancel cancels an Init or Open order and refunds the
// escrowed asset to the seller.
func (c *Context) executeMarketCancel(insc *Inscription, ev *chain.MarketEvent) bool {
	if ev.OrderID == "" {
		return false
	}
	o, err := market.GetOrder(c.store, orderIDHex(ev.OrderID))
	if err != nil || o == nil {
		return false
	}
	if o.Status != market.StatusInit && o.Status != market.StatusOpen {
		return false
	}
	if o.From != insc.From {
		return false
	}

	switch o.OrderType {
	case market.OrderNFT:
		c.setNFTHolder(o.NFTID, insc.ID, o.From)
	case market.OrderToken:
		if c.GetToken(o.Tick) == nil {
			return false
		}
		c.ChangeTokenBalance(o.Tick, o.To, -int64(o.Amount))
		c.ChangeTokenBalance(o.Tick, o.From, int64(o.Amount))
		c.tokenTransfers = append(c.tokenTransfers, tokenTransfer{tick: o.Tick, inscID: insc.ID})
		c.dirtyTicks[strings.ToLower(o.Tick)] = true
	}

	c.queueMarketAction(insc.ID, &marketAction{
		kind:    "cancel",
		orderID: orderIDHex(ev.OrderID),
	})
	return true
}

// newTokenOrder builds the Init-status order a token "market_list" JSON
// inscription opens, escrowing the listed amount at the market address.
func (c *Context) newTokenOrder(insc *Inscription, tick string, amount uint64) *market.Order {
	return &market.Order{
		OrderType:   market.OrderToken,
		OrderID:     insc.MarketOrderID,
		From:        insc.From,
		To:          insc.To,
		Tick:        tick,
		Amount:      amount,
		Tx:          insc.TxHash,
		BlockNumber: insc.BlockNumber,
		Timestamp:   insc.Timestamp,
		Status:      market.StatusInit,
	}
}

func (c *Context) queueMarketAction(inscID uint64, a *marketAction) {
	if c.marketActions == nil {
		c.marketActions = make(map[uint64]*marketAction)
	}
	c.marketActions[inscID] = a
}

// saveMarket applies insc's deferred marketplace action, if it queued one.
func (c *Context) saveMarket(txn storage.Txn, insc *Inscription) error {
	a, ok := c.marketActions[insc.ID]
	if !ok {
		return nil
	}
	switch a.kind {
	case "new_nft", "new_token":
		return market.SaveOrder(txn, a.order)
	case "setprice":
		return market.SetPrice(c.store, txn, insc.TxHash, a.orderID, a.totalPrice)
	case "buy":
		return market.Close(c.store, txn, insc.TxHash, a.orderID, a.buyer)
	case "cancel":
		return market.Cancel(c.store, txn, insc.TxHash, a.orderID)
	default:
		return nil
	}
}

// UpdateTokenMarketInfo recomputes tok's rolling market statistics from its
// most recently closed orders: 24h volume/tx count summed over the last
// mcapCalcCount closes (with no time-window filter), and market cap derived
// from the current floor price times minted supply.
func UpdateTokenMarketInfo(s storage.Store, tok *Token) error {
	orders, err := market.LatestClosedOrders(s, tok.Tick, mcapCalcCount)
	if err != nil {
		return err
	}

	volume := new(big.Int)
	var txs uint64
	for _, o := range orders {
		if o.TotalPrice != nil {
			volume.Add(volume, o.TotalPrice)
		}
		txs++
	}
	tok.MarketVolume24h = volume
	tok.MarketTxs24h = txs

	floor, ok, err := market.FloorPrice(s, tok.Tick, tok.MintLimit)
	if err != nil {
		return err
	}
	if !ok {
		tok.MarketFloorPrice = zeroBig()
		tok.MarketCap = zeroBig()
		return nil
	}
	tok.MarketFloorPrice = floor
	tok.MarketCap = new(big.Int).Mul(floor, new(big.Int).SetUint64(tok.MintProgress))
	return nil
}
