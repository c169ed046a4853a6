package inscription

import (
	"strings"

	"github.com/insdexer/indexer/pkg/storage"
)

const (
	OpTokenDeploy     = "deploy"
	OpTokenMint       = "mint"
	OpTokenTransfer   = "transfer"
	OpTokenMarketList = "market_list"
)

// checkDeploy validates a token deploy payload against the current token
// set (including the in-flight overlay, via GetToken).
func (c *Context) checkDeploy(insc *Inscription, tick string, tokenMax, tokenLimit uint64) bool {
	if len(tick) > c.tickMaxLen || strings.Contains(tick, ":") {
		return false
	}
	if tokenMax > TokenBalanceMax || tokenLimit > tokenMax {
		return false
	}
	if c.tokenExistsI(strings.ToLower(tick)) {
		return false
	}
	return true
}

func (c *Context) tokenExistsI(tickI string) bool {
	if _, ok := c.tokens[tickI]; ok {
		return true
	}
	return storage.GetU64(c.store, KeyTokenTickI(tickI)) != 0
}

func (c *Context) executeTokenDeploy(insc *Inscription) bool {
	tick, ok := jsonString(insc.JSON, "tick")
	if !ok {
		return false
	}
	tokenMax, ok1 := jsonU64(insc.JSON, "max")
	tokenLimit, ok2 := jsonU64(insc.JSON, "lmi")
	if !ok1 || !ok2 {
		return false
	}
	if !c.checkDeploy(insc, tick, tokenMax, tokenLimit) {
		return false
	}

	tickI := strings.ToLower(tick)
	c.tokens[tickI] = &Token{
		InscID:           insc.ID,
		Tick:             tick,
		TickI:            tickI,
		Tx:               insc.TxHash,
		From:             insc.From,
		BlockNumber:      insc.BlockNumber,
		Timestamp:        insc.Timestamp,
		MintMax:          tokenMax,
		MintLimit:        tokenLimit,
		MarketVolume24h:  zeroBig(),
		MarketCap:        zeroBig(),
		MarketFloorPrice: zeroBig(),
	}
	c.deployedTicks[tickI] = true
	c.dirtyTicks[tickI] = true
	return true
}

// checkMint validates a mint payload against the token's in-flight state.
func (c *Context) checkMint(insc *Inscription, tok *Token, mintAmt uint64) bool {
	if c.startBlockMint > insc.BlockNumber {
		return false
	}
	if mintAmt == 0 || mintAmt > TokenBalanceMax {
		return false
	}
	if mintAmt > tok.MintLimit || tok.MintFinished {
		return false
	}
	if mintAmt+tok.MintProgress > tok.MintMax {
		return false
	}
	return true
}

func (c *Context) executeTokenMint(insc *Inscription) bool {
	tick, ok := jsonString(insc.JSON, "tick")
	if !ok {
		return false
	}
	mintAmt, ok := jsonU64(insc.JSON, "amt")
	if !ok {
		return false
	}
	tok := c.GetToken(tick)
	if tok == nil || !c.checkMint(insc, tok, mintAmt) {
		return false
	}

	c.ChangeTokenBalance(tick, insc.To, int64(mintAmt))
	tok.MintProgress += mintAmt
	if tok.MintProgress >= tok.MintMax {
		tok.MintFinished = true
	}
	c.dirtyTicks[tok.TickI] = true
	return true
}

// checkTransfer validates a transfer payload against the token's state.
func (c *Context) checkTransfer(tok *Token, transferAmt uint64) bool {
	if transferAmt == 0 || transferAmt > TokenBalanceMax {
		return false
	}
	return tok.MintFinished
}

func (c *Context) executeTokenTransfer(insc *Inscription) bool {
	tick, ok := jsonString(insc.JSON, "tick")
	if !ok {
		return false
	}
	amt, ok := jsonU64(insc.JSON, "amt")
	if !ok {
		return false
	}
	tok := c.GetToken(tick)
	if tok == nil || !c.checkTransfer(tok, amt) {
		return false
	}

	balFrom := c.GetTokenBalance(tick, insc.From)
	if amt > balFrom {
		return false
	}

	c.ChangeTokenBalance(tick, insc.From, -int64(amt))
	c.ChangeTokenBalance(tick, insc.To, int64(amt))
	c.tokenTransfers = append(c.tokenTransfers, tokenTransfer{tick: tick, inscID: insc.ID})
	c.dirtyTicks[tok.TickI] = true
	return true
}

func (c *Context) executeTokenMarketList(insc *Inscription) bool {
	if !c.marketAddrs[insc.To] || insc.MarketOrderID == "" {
		return false
	}
	tick, ok := jsonString(insc.JSON, "tick")
	if !ok {
		return false
	}
	amt, ok := jsonU64(insc.JSON, "amt")
	if !ok {
		return false
	}
	if !c.executeTokenTransfer(insc) {
		return false
	}

	c.queueMarketAction(insc.ID, &marketAction{
		kind:  "new_token",
		order: c.newTokenOrder(insc, tick, amt),
	})
	return true
}

func (c *Context) executeToken(insc *Inscription) bool {
	op, ok := jsonString(insc.JSON, "op")
	if !ok {
		return false
	}
	if _, ok := jsonString(insc.JSON, "tick"); !ok {
		return false
	}

	switch op {
	case OpTokenDeploy:
		return c.executeTokenDeploy(insc)
	case OpTokenMint:
		return c.executeTokenMint(insc)
	case OpTokenTransfer:
		return c.executeTokenTransfer(insc)
	case OpTokenMarketList:
		return c.executeTokenMarketList(insc)
	default:
		return false
	}
}

// GetToken returns the token for tick (exact case), consulting the overlay
// cache first and loading from the store on a cache miss.
func (c *Context) GetToken(tick string) *Token {
	if tok, ok := c.tokens[strings.ToLower(tick)]; ok && tok.Tick == tick {
		return tok
	}
	id := storage.GetU64(c.store, KeyTokenTick(tick))
	if id == 0 {
		return nil
	}
	v, err := c.store.Get(KeyTokenID(id))
	if err != nil {
		return nil
	}
	var tok Token
	if err := storage.DecodeJSON(v, &tok); err != nil {
		return nil
	}
	c.tokens[tok.TickI] = &tok
	return &tok
}

// GetTokenBalance returns tick's balance for addr, store value plus
// whatever delta has accumulated on the overlay so far this block.
func (c *Context) GetTokenBalance(tick, addr string) uint64 {
	base := storage.GetU64(c.store, KeyBalanceHolderTick(addr, tick))
	delta := c.balanceChange[balanceKey{tick, addr}]
	v := int64(base) + delta
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// ChangeTokenBalance records a pending balance delta for (tick, addr).
func (c *Context) ChangeTokenBalance(tick, addr string, amount int64) {
	c.balanceChange[balanceKey{tick, addr}] += amount
}

func jsonString(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

// jsonU64 parses a numeric field that may be encoded as either a JSON
// number or a numeric string (JSON integers beyond 2^53 are commonly
// quoted to survive round-tripping through JS-based tooling).
func jsonU64(m map[string]any, key string) (uint64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, ok := parseUint(v)
		return n, ok
	default:
		return 0, false
	}
}
