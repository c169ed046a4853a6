package inscription

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/storage"
)

type balanceKey struct {
	tick string
	addr string
}

type tokenTransfer struct {
	tick   string
	inscID uint64
}

// Context accumulates the overlay for a batch of inscriptions (one block's
// worth) and flushes it to the store in a single atomic transaction. It is
// the single writer of the inscribe stage: a new Context is built per
// block, fed every extracted inscription in order, then Saved once.
type Context struct {
	store         storage.Store
	marketABI     *chain.MarketABI
	marketAddrs   map[string]bool
	tokenProtocol string
	tickMaxLen    int
	startBlockMint uint64

	inscriptions []*Inscription

	nftHolders    map[uint64]string
	nftTransfers  []NFTTransfer
	nftSignatures map[string]uint64

	tokens        map[string]*Token // keyed by tick_i (lowercase)
	deployedTicks map[string]bool
	dirtyTicks    map[string]bool
	balanceChange map[balanceKey]int64
	tokenTransfers []tokenTransfer

	collections   []*Collection
	marketActions map[uint64]*marketAction
}

// Config bundles the protocol parameters a Context needs, sourced from
// params.Config.
type Config struct {
	MarketAddrs    map[string]bool
	TokenProtocol  string
	TickMaxLen     int
	StartBlockMint uint64
}

func NewContext(store storage.Store, marketABI *chain.MarketABI, cfg Config) *Context {
	return &Context{
		store:          store,
		marketABI:      marketABI,
		marketAddrs:    cfg.MarketAddrs,
		tokenProtocol:  cfg.TokenProtocol,
		tickMaxLen:     cfg.TickMaxLen,
		startBlockMint: cfg.StartBlockMint,

		nftHolders:     make(map[uint64]string),
		nftSignatures:  make(map[string]uint64),
		tokens:         make(map[string]*Token),
		deployedTicks:  make(map[string]bool),
		dirtyTicks:     make(map[string]bool),
		balanceChange:  make(map[balanceKey]int64),
		marketActions:  make(map[uint64]*marketAction),
	}
}

// Add queues insc for processing in this batch.
func (c *Context) Add(insc *Inscription) {
	c.inscriptions = append(c.inscriptions, insc)
}

// Len reports how many inscriptions are queued.
func (c *Context) Len() int { return len(c.inscriptions) }

// Inscribe runs every queued inscription through the protocol dispatch,
// setting each one's Verified status in place.
func (c *Context) Inscribe() {
	for _, insc := range c.inscriptions {
		ok := c.processInscribe(insc)
		if ok {
			insc.Verified = Successful
		} else {
			insc.Verified = Failed
		}
	}
}

func (c *Context) processInscribe(insc *Inscription) bool {
	switch insc.MimeCategory {
	case CategoryTransfer:
		return c.processNFTTransfer(insc)
	case CategoryJson:
		return c.processJSON(insc)
	case CategoryText, CategoryImage:
		return c.processPlain(insc)
	case CategoryInvoke:
		return c.processInvoke(insc)
	default:
		return false
	}
}

func (c *Context) processPlain(insc *Inscription) bool {
	sum := sha1.Sum([]byte(insc.MimeData))
	sig := hex.EncodeToString(sum[:])
	if c.signatureExists(sig) {
		return false
	}

	c.nftSignatures[sig] = insc.ID
	c.nftHolders[insc.ID] = insc.To
	insc.Signature = sig
	return true
}

func (c *Context) signatureExists(sig string) bool {
	if _, ok := c.nftSignatures[sig]; ok {
		return true
	}
	_, err := c.store.Get(KeyInscSign(sig))
	return err == nil
}

// GetNFTHolder returns the current holder of nftID, consulting the overlay
// before falling back to the persisted holder index.
func (c *Context) GetNFTHolder(nftID uint64) string {
	if h, ok := c.nftHolders[nftID]; ok {
		return h
	}
	v, err := c.store.Get(KeyNFTHolderID(nftID))
	if err != nil {
		return ""
	}
	return string(v)
}

func (c *Context) setNFTHolder(nftID, transferID uint64, holder string) {
	c.nftHolders[nftID] = holder
	c.nftTransfers = append(c.nftTransfers, NFTTransfer{NFTID: nftID, TransferID: transferID})
}

// processNFTTransfer moves every NFT referenced in a 64-hex-char-chunked
// batch transfer calldata, in chunk order. Every chunk is validated before
// any holder changes: the first chunk whose holder doesn't match insc.From
// fails the whole inscription and leaves no holder changes behind.
func (c *Context) processNFTTransfer(insc *Inscription) bool {
	data := insc.MimeData
	var moved []uint64
	pending := make(map[uint64]bool)
	for i := 0; i < len(data); i += TransferTxHexLength {
		end := i + TransferTxHexLength
		if end > len(data) {
			return false
		}
		itemTx := "0x" + data[i:end]

		itemID, err := c.inscriptionIDByTx(itemTx)
		if err != nil || itemID == 0 {
			return false
		}
		holder := c.GetNFTHolder(itemID)
		if pending[itemID] {
			holder = insc.To
		}
		if holder != insc.From {
			return false
		}
		pending[itemID] = true
		moved = append(moved, itemID)
	}
	for _, itemID := range moved {
		c.setNFTHolder(itemID, insc.ID, insc.To)
	}
	return true
}

func (c *Context) inscriptionIDByTx(tx string) (uint64, error) {
	v, err := c.store.Get(KeyInscTx(tx))
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("inscription: malformed tx index value for %s", tx)
	}
	return storage.GetU64(c.store, KeyInscTx(tx)), nil
}

func (c *Context) processJSON(insc *Inscription) bool {
	protocol, ok := jsonString(insc.JSON, "p")
	if !ok {
		return false
	}
	switch protocol {
	case c.tokenProtocol:
		return c.executeToken(insc)
	case AppProtoCollection:
		return c.executeCollection(insc)
	default:
		return false
	}
}

// Save flushes every queued inscription plus the accumulated overlay to a
// single atomic transaction, in the order: per-inscription primary +
// conditional side effects, top-id cursor advance, token cache flush,
// token-transfer history, NFT transfer history and holder moves.
func (c *Context) Save(txn storage.Txn) error {
	if len(c.inscriptions) == 0 {
		return nil
	}

	for _, insc := range c.inscriptions {
		if err := c.saveInscription(txn, insc); err != nil {
			return err
		}
	}

	last := c.inscriptions[len(c.inscriptions)-1]
	if err := storage.PutU64(txn, []byte(KeyInscTop), last.ID); err != nil {
		return err
	}

	if err := c.saveTokens(txn); err != nil {
		return err
	}
	if err := c.saveTokenTransfers(txn); err != nil {
		return err
	}
	if err := c.saveNFTTransfers(txn); err != nil {
		return err
	}
	return nil
}

func (c *Context) saveInscription(txn storage.Txn, insc *Inscription) error {
	if err := PutPrimary(txn, insc); err != nil {
		return err
	}
	if insc.Verified != Successful {
		return nil
	}

	if err := PutAddressIndices(txn, insc); err != nil {
		return err
	}
	if insc.Signature != "" {
		if err := PutNFTIndices(txn, insc); err != nil {
			return err
		}
	}
	if insc.MimeCategory == CategoryJson {
		if p, _ := jsonString(insc.JSON, "p"); p == AppProtoCollection {
			for _, coll := range c.collections {
				if coll.InscID == insc.ID {
					if err := PutCollection(txn, coll); err != nil {
						return err
					}
					break
				}
			}
		}
	}
	return c.saveMarket(txn, insc)
}

func (c *Context) saveTokens(txn storage.Txn) error {
	for tickI, tok := range c.tokens {
		if c.deployedTicks[tickI] {
			if err := PutToken(txn, tok); err != nil {
				return err
			}
		}
	}

	for key, delta := range c.balanceChange {
		tok, ok := c.tokens[strings.ToLower(key.tick)]
		if !ok {
			continue
		}
		holderDelta, err := c.applyBalanceChange(txn, key.tick, key.addr, delta)
		if err != nil {
			return err
		}
		tok.Holders = uint64(int64(tok.Holders) + holderDelta)
		c.dirtyTicks[tok.TickI] = true
		if c.marketAddrs[key.addr] {
			c.markMarketDirty(tok.TickI)
		}
	}

	for tickI := range c.dirtyTicks {
		tok, ok := c.tokens[tickI]
		if !ok {
			continue
		}
		if err := UpdateTokenMarketInfo(c.store, tok); err != nil {
			return err
		}
		if err := UpdateToken(txn, tok); err != nil {
			return err
		}
	}
	return nil
}

// applyBalanceChange writes the new balance for (tick, addr) and returns
// the holder-count delta it caused: +1 if the holder went from zero to
// positive, -1 if it went from positive to zero, 0 otherwise.
func (c *Context) applyBalanceChange(txn storage.Txn, tick, addr string, delta int64) (int64, error) {
	base := storage.GetU64(c.store, KeyBalanceHolderTick(addr, tick))
	newBalance := int64(base) + delta
	if newBalance < 0 {
		panic(fmt.Errorf("inscription: balance of %s for %s would go negative (%d%+d)", tick, addr, base, delta))
	}

	hadBalance := base > 0
	holderDelta := int64(0)
	switch {
	case !hadBalance && newBalance > 0:
		holderDelta = 1
	case hadBalance && newBalance == 0:
		holderDelta = -1
	}

	if newBalance == 0 {
		if hadBalance {
			if err := DeleteBalance(txn, tick, addr, base); err != nil {
				return 0, err
			}
		}
		return holderDelta, nil
	}
	if err := MoveBalance(txn, tick, addr, base, uint64(newBalance), hadBalance); err != nil {
		return 0, err
	}
	return holderDelta, nil
}

func (c *Context) markMarketDirty(tickI string) { c.dirtyTicks[tickI] = true }

func (c *Context) saveTokenTransfers(txn storage.Txn) error {
	for _, t := range c.tokenTransfers {
		if err := PutTokenTransfer(txn, t.tick, t.inscID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) saveNFTTransfers(txn storage.Txn) error {
	for _, t := range c.nftTransfers {
		if err := txn.Put(KeyNFTTransID(t.NFTID, t.TransferID), nil); err != nil {
			return err
		}
	}
	for nftID, holder := range c.nftHolders {
		old := ""
		if v, err := c.store.Get(KeyNFTHolderID(nftID)); err == nil {
			old = string(v)
		}
		if old == holder {
			continue
		}
		if err := MoveNFTHolder(txn, nftID, 0, old, holder); err != nil {
			return err
		}
	}
	return nil
}

func zeroBig() *big.Int { return new(big.Int) }

func parseUint(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}
