package inscription

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/market"
	"github.com/insdexer/indexer/pkg/storage"
)

func testMarketABIDef(t *testing.T) ethabi.ABI {
	t.Helper()
	a, err := ethabi.JSON(strings.NewReader(chain.MarketABIJSON))
	if err != nil {
		t.Fatalf("parse market abi: %v", err)
	}
	return a
}

// marketLog ABI-encodes eventName's non-indexed arguments into a chain.Log
// whose topic0 matches what chain.MarketABI.Match expects.
func marketLog(t *testing.T, def ethabi.ABI, eventName string, args ...interface{}) chain.Log {
	t.Helper()
	ev, ok := def.Events[eventName]
	if !ok {
		t.Fatalf("no event %q in market abi", eventName)
	}
	data, err := ev.Inputs.Pack(args...)
	if err != nil {
		t.Fatalf("pack %s: %v", eventName, err)
	}
	return chain.Log{Address: "0xmarket", Topics: []string{ev.ID.Hex()}, Data: data}
}

func orderIDBytes32(id string) [32]byte {
	var out [32]byte
	copy(out[32-len(id):], []byte(id))
	return out
}

// wantOrderKey mirrors the key derivation orderIDHex(ev.OrderID) applies to a
// decoded MarketEvent: the hex encoding of the raw bytes32 order id, not the
// plain test label used to build that bytes32 value.
func wantOrderKey(id string) string {
	raw := orderIDBytes32(id)
	return orderIDHex(hex.EncodeToString(raw[:]))
}

func TestExecuteMarketListRequiresCurrentHolder(t *testing.T) {
	s := openCtxStore(t)
	cfg := testConfig()
	def := testMarketABIDef(t)
	abiHandle, err := chain.NewMarketABI()
	if err != nil {
		t.Fatalf("NewMarketABI: %v", err)
	}

	mint := &Inscription{ID: 1, TxHash: "0xmint", From: "0xowner", To: "0xowner", MimeCategory: CategoryImage, MimeData: "art"}
	c1 := NewContext(s, abiHandle, cfg)
	c1.Add(mint)
	commitContext(t, s, c1)
	if mint.Verified != Successful {
		t.Fatalf("expected mint to succeed, got %v", mint.Verified)
	}

	orderID := "order-list-1"
	log := marketLog(t, def, "MarketList", orderIDBytes32(orderID), mockAddr("0xowner"), big.NewInt(int64(mint.ID)), true)
	list := &Inscription{
		ID: 2, TxHash: "0xl1", From: "0xowner", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{log},
	}
	c2 := NewContext(s, abiHandle, cfg)
	c2.Add(list)
	commitContext(t, s, c2)
	if list.Verified != Successful {
		t.Fatalf("expected list by the current holder to succeed, got %v", list.Verified)
	}

	got, err := market.GetOrder(s, wantOrderKey(orderID))
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got == nil || got.Status != market.StatusInit || got.NFTID != mint.ID {
		t.Fatalf("unexpected order after list: %+v", got)
	}
	if holder := (&Context{store: s}).GetNFTHolder(mint.ID); holder != "0xmarket" {
		t.Fatalf("expected the nft to move into escrow at the market address, got %q", holder)
	}
}

func TestExecuteMarketListRejectsNonHolder(t *testing.T) {
	s := openCtxStore(t)
	cfg := testConfig()
	def := testMarketABIDef(t)
	abiHandle, err := chain.NewMarketABI()
	if err != nil {
		t.Fatalf("NewMarketABI: %v", err)
	}

	mint := &Inscription{ID: 1, TxHash: "0xmint", From: "0xowner", To: "0xowner", MimeCategory: CategoryImage, MimeData: "art2"}
	c1 := NewContext(s, abiHandle, cfg)
	c1.Add(mint)
	commitContext(t, s, c1)

	log := marketLog(t, def, "MarketList", orderIDBytes32("order-list-2"), mockAddr("0xstranger"), big.NewInt(int64(mint.ID)), true)
	list := &Inscription{
		ID: 2, TxHash: "0xl2", From: "0xstranger", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{log},
	}
	c2 := NewContext(s, abiHandle, cfg)
	c2.Add(list)
	commitContext(t, s, c2)
	if list.Verified != Failed {
		t.Fatalf("expected list by a non-holder to fail, got %v", list.Verified)
	}
}

func TestMarketListSetPriceBuyLifecycle(t *testing.T) {
	s := openCtxStore(t)
	cfg := testConfig()
	def := testMarketABIDef(t)
	abiHandle, err := chain.NewMarketABI()
	if err != nil {
		t.Fatalf("NewMarketABI: %v", err)
	}

	mint := &Inscription{ID: 1, TxHash: "0xmint", From: "0xowner", To: "0xowner", MimeCategory: CategoryImage, MimeData: "art3"}
	c1 := NewContext(s, abiHandle, cfg)
	c1.Add(mint)
	commitContext(t, s, c1)

	orderID := "order-lifecycle"
	listLog := marketLog(t, def, "MarketList", orderIDBytes32(orderID), mockAddr("0xowner"), big.NewInt(int64(mint.ID)), true)
	list := &Inscription{
		ID: 2, TxHash: "0xl3", From: "0xowner", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{listLog},
	}
	c2 := NewContext(s, abiHandle, cfg)
	c2.Add(list)
	commitContext(t, s, c2)
	if list.Verified != Successful {
		t.Fatalf("expected list to succeed, got %v", list.Verified)
	}

	priceLog := marketLog(t, def, "MarketSetPrice", orderIDBytes32(orderID), big.NewInt(500))
	setPrice := &Inscription{
		ID: 3, TxHash: "0xsp1", From: "0xowner", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{priceLog},
	}
	c3 := NewContext(s, abiHandle, cfg)
	c3.Add(setPrice)
	commitContext(t, s, c3)
	if setPrice.Verified != Successful {
		t.Fatalf("expected set price to succeed, got %v", setPrice.Verified)
	}

	afterSetPrice, err := market.GetOrder(s, wantOrderKey(orderID))
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if afterSetPrice.Status != market.StatusOpen {
		t.Fatalf("expected order to open once priced, got %v", afterSetPrice.Status)
	}

	buyerAddr := mockAddr("0xbuyer")
	wantBuyer := strings.ToLower(buyerAddr.Hex())
	buyLog := marketLog(t, def, "MarketBuy", orderIDBytes32(orderID), buyerAddr, big.NewInt(500))
	buy := &Inscription{
		// From intentionally differs from the decoded event buyer: the abi
		// log is the source of truth for who the buyer is, not the tx sender.
		ID: 4, TxHash: "0xbuy1", From: "0xrelayer", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{buyLog},
	}
	c4 := NewContext(s, abiHandle, cfg)
	c4.Add(buy)
	commitContext(t, s, c4)
	if buy.Verified != Successful {
		t.Fatalf("expected buy to succeed, got %v", buy.Verified)
	}

	closed, err := market.GetOrder(s, wantOrderKey(orderID))
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if closed.Status != market.StatusClosed || closed.Buyer != wantBuyer {
		t.Fatalf("unexpected order after buy: %+v, want buyer %q", closed, wantBuyer)
	}
	if holder := (&Context{store: s}).GetNFTHolder(mint.ID); holder != wantBuyer {
		t.Fatalf("expected the nft to move to the buyer, got %q want %q", holder, wantBuyer)
	}
}

func TestExecuteMarketCancelRefundsSeller(t *testing.T) {
	s := openCtxStore(t)
	cfg := testConfig()
	def := testMarketABIDef(t)
	abiHandle, err := chain.NewMarketABI()
	if err != nil {
		t.Fatalf("NewMarketABI: %v", err)
	}

	mint := &Inscription{ID: 1, TxHash: "0xmint", From: "0xowner", To: "0xowner", MimeCategory: CategoryImage, MimeData: "art4"}
	c1 := NewContext(s, abiHandle, cfg)
	c1.Add(mint)
	commitContext(t, s, c1)

	orderID := "order-cancel"
	listLog := marketLog(t, def, "MarketList", orderIDBytes32(orderID), mockAddr("0xowner"), big.NewInt(int64(mint.ID)), true)
	list := &Inscription{
		ID: 2, TxHash: "0xl4", From: "0xowner", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{listLog},
	}
	c2 := NewContext(s, abiHandle, cfg)
	c2.Add(list)
	commitContext(t, s, c2)

	cancelLog := marketLog(t, def, "MarketCancel", orderIDBytes32(orderID))
	cancel := &Inscription{
		ID: 3, TxHash: "0xc1", From: "0xowner", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{cancelLog},
	}
	c3 := NewContext(s, abiHandle, cfg)
	c3.Add(cancel)
	commitContext(t, s, c3)
	if cancel.Verified != Successful {
		t.Fatalf("expected cancel by the lister to succeed, got %v", cancel.Verified)
	}

	got, err := market.GetOrder(s, wantOrderKey(orderID))
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != market.StatusCanceled {
		t.Fatalf("expected StatusCanceled, got %v", got.Status)
	}
	if holder := (&Context{store: s}).GetNFTHolder(mint.ID); holder != "0xowner" {
		t.Fatalf("expected the nft to return to the seller, got %q", holder)
	}
}

func TestExecuteMarketCancelRejectsNonSeller(t *testing.T) {
	s := openCtxStore(t)
	cfg := testConfig()
	def := testMarketABIDef(t)
	abiHandle, err := chain.NewMarketABI()
	if err != nil {
		t.Fatalf("NewMarketABI: %v", err)
	}

	mint := &Inscription{ID: 1, TxHash: "0xmint", From: "0xowner", To: "0xowner", MimeCategory: CategoryImage, MimeData: "art5"}
	c1 := NewContext(s, abiHandle, cfg)
	c1.Add(mint)
	commitContext(t, s, c1)

	orderID := "order-cancel-bad"
	listLog := marketLog(t, def, "MarketList", orderIDBytes32(orderID), mockAddr("0xowner"), big.NewInt(int64(mint.ID)), true)
	list := &Inscription{
		ID: 2, TxHash: "0xl5", From: "0xowner", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{listLog},
	}
	c2 := NewContext(s, abiHandle, cfg)
	c2.Add(list)
	commitContext(t, s, c2)

	cancelLog := marketLog(t, def, "MarketCancel", orderIDBytes32(orderID))
	cancel := &Inscription{
		ID: 3, TxHash: "0xc2", From: "0xstranger", To: "0xmarket",
		MimeCategory: CategoryInvoke, EventLogs: []chain.Log{cancelLog},
	}
	c3 := NewContext(s, abiHandle, cfg)
	c3.Add(cancel)
	commitContext(t, s, c3)
	if cancel.Verified != Failed {
		t.Fatalf("expected cancel by a non-seller to fail, got %v", cancel.Verified)
	}
}

func TestProcessInvokeFailsWithNoRecognizedLog(t *testing.T) {
	s := openCtxStore(t)
	cfg := testConfig()
	abiHandle, err := chain.NewMarketABI()
	if err != nil {
		t.Fatalf("NewMarketABI: %v", err)
	}

	insc := &Inscription{
		ID: 1, TxHash: "0xnolog", From: "0xa", To: "0xmarket",
		MimeCategory: CategoryInvoke,
		EventLogs:    []chain.Log{{Address: "0xmarket", Topics: []string{"0xdeadbeef"}}},
	}
	c := NewContext(s, abiHandle, cfg)
	c.Add(insc)
	commitContext(t, s, c)
	if insc.Verified != Failed {
		t.Fatalf("expected an invoke with no recognized event to fail, got %v", insc.Verified)
	}
}

func TestNewTokenOrderFields(t *testing.T) {
	insc := &Inscription{
		ID: 7, TxHash: "0xtok", From: "0xseller", To: "0xmarket",
		MarketOrderID: "order-token-1", BlockNumber: 100, Timestamp: 12345,
	}
	c := &Context{}
	o := c.newTokenOrder(insc, "FOO", 50)
	if o.OrderType != market.OrderToken || o.Tick != "FOO" || o.Amount != 50 {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.Status != market.StatusInit || o.From != "0xseller" || o.To != "0xmarket" {
		t.Fatalf("unexpected order fields: %+v", o)
	}
	if o.OrderID != "order-token-1" || o.BlockNumber != 100 || o.Timestamp != 12345 {
		t.Fatalf("unexpected order metadata: %+v", o)
	}
}

func TestUpdateTokenMarketInfoReflectsClosedOrders(t *testing.T) {
	s := openTokenMarketStore(t)

	for i, price := range []int64{10, 20, 30} {
		id := []string{"tmo-1", "tmo-2", "tmo-3"}[i]
		o := &market.Order{
			OrderType: market.OrderToken, OrderID: id, From: "0xseller", Tick: "bar",
			Amount: 10, TotalPrice: big.NewInt(0), UnitPrice: big.NewInt(0),
			BlockNumber: uint64(i + 1), Timestamp: uint64(1000 * (i + 1)), Status: market.StatusInit,
		}
		txn := s.NewTxn()
		if err := market.SaveOrder(txn, o); err != nil {
			t.Fatalf("SaveOrder: %v", err)
		}
		txn.Commit()

		txn = s.NewTxn()
		if err := market.SetPrice(s, txn, "0xsp", id, big.NewInt(price)); err != nil {
			t.Fatalf("SetPrice: %v", err)
		}
		txn.Commit()

		txn = s.NewTxn()
		if err := market.Close(s, txn, "0xcl", id, "0xbuyer"); err != nil {
			t.Fatalf("Close: %v", err)
		}
		txn.Commit()
	}

	tok := &Token{Tick: "bar", MintLimit: 10, MintProgress: 1000}
	if err := UpdateTokenMarketInfo(s, tok); err != nil {
		t.Fatalf("UpdateTokenMarketInfo: %v", err)
	}
	if tok.MarketTxs24h != 3 {
		t.Fatalf("expected 3 counted closes, got %d", tok.MarketTxs24h)
	}
	if tok.MarketVolume24h.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected summed volume 10+20+30=60, got %s", tok.MarketVolume24h)
	}
	if tok.MarketFloorPrice == nil || tok.MarketFloorPrice.Sign() != 0 {
		t.Fatalf("expected a zero floor price: closed orders leave the open price index, got %v", tok.MarketFloorPrice)
	}
}

func TestUpdateTokenMarketInfoNoOrdersZerosOut(t *testing.T) {
	s := openTokenMarketStore(t)
	tok := &Token{Tick: "empty", MintLimit: 10, MintProgress: 0}
	if err := UpdateTokenMarketInfo(s, tok); err != nil {
		t.Fatalf("UpdateTokenMarketInfo: %v", err)
	}
	if tok.MarketFloorPrice.Sign() != 0 || tok.MarketCap.Sign() != 0 {
		t.Fatalf("expected zeroed market figures with no orders, got floor=%s cap=%s", tok.MarketFloorPrice, tok.MarketCap)
	}
}

func openTokenMarketStore(t *testing.T) *storage.PebbleStore {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mockAddr(s string) common.Address {
	var out common.Address
	copy(out[20-len(s):], []byte(s))
	return out
}
