// Package inscription implements the protocol state machine that turns raw
// chain transactions into inscriptions, tokens, NFTs, and collections.
package inscription

import (
	"math/big"
	"strconv"

	"github.com/insdexer/indexer/pkg/ikey"
)

// NumIndex zero-pads n to a fixed width so that ascending numeric order and
// lexicographic byte order coincide.
func NumIndex(n uint64) string { return ikey.NumIndex(n) }

// NumIndexDesc encodes n so that lexicographic order is descending numeric
// order: larger n sorts first.
func NumIndexDesc(n uint64) string { return ikey.NumIndexDesc(n) }

// NumIndexBig is NumIndex for values that may exceed uint64 range, such as
// marketplace unit prices.
func NumIndexBig(n *big.Int) string { return ikey.NumIndexBig(n) }

// ParseNumIndex reads the last characters of key back into the ascending
// value that produced them.
func ParseNumIndex(key []byte) uint64 { return ikey.ParseNumIndex(key) }

// ParseNumIndexDesc is the inverse of NumIndexDesc embedded at the end of key.
func ParseNumIndexDesc(key []byte) uint64 { return ikey.ParseNumIndexDesc(key) }

// LastSegment returns the text after the final ':' in key, or the whole
// string if there is none.
func LastSegment(key []byte) string { return ikey.LastSegment(key) }

// Cursor keys (bare, no colon-separated components).
const (
	KeyInscTop             = "insc_top"
	KeyInscSyncTop         = "insc_sync_top"
	KeySyncBlockNumber     = "sync_blocknumber"
	KeyRollbackBlockNumber = "rollback_blocknumber"
)

// KeySyncBlockHash addresses the stored hash for a synced block number,
// used by the reorg detector's finalized-window check.
func KeySyncBlockHash(n uint64) []byte {
	return []byte("sync_blockhash:" + strconv.FormatUint(n, 10))
}

// Primary and secondary inscription keys.

func KeyInscID(id uint64) []byte              { return []byte("insc_id:" + NumIndex(id)) }
func KeyInscTx(txHash string) []byte          { return []byte("insc_tx:" + txHash) }
func KeyInscSign(sig string) []byte           { return []byte("insc_sign:" + sig) }
func KeyInscCreaterID(addr string, id uint64) []byte {
	return []byte("insc_creater-id:" + addr + ":" + NumIndexDesc(id))
}
func KeyInscAddressID(addr string, id uint64) []byte {
	return []byte("insc_address-id:" + addr + ":" + NumIndexDesc(id))
}
func InscCreaterPrefix(addr string) []byte { return []byte("insc_creater-id:" + addr + ":") }
func InscAddressPrefix(addr string) []byte { return []byte("insc_address-id:" + addr + ":") }

// NFT keys.

func KeyNFTID(id uint64) []byte { return []byte("insc_nft_id:" + NumIndexDesc(id)) }
func KeyNFTCreaterID(addr string, id uint64) []byte {
	return []byte("insc_nft_creater-id:" + addr + ":" + NumIndexDesc(id))
}
func KeyNFTHolderID(id uint64) []byte { return []byte("insc_nft_holder_id:" + NumIndex(id)) }
func KeyNFTHolderAddressID(addr string, id uint64) []byte {
	return []byte("insc_nft_holder_address-id:" + addr + ":" + NumIndexDesc(id))
}
func NFTHolderAddressPrefix(addr string) []byte {
	return []byte("insc_nft_holder_address-id:" + addr + ":")
}
func KeyNFTTransID(nftID, transferID uint64) []byte {
	return []byte("insc_nft_trans_id:" + NumIndex(nftID) + ":" + NumIndex(transferID))
}
func NFTTransPrefix(nftID uint64) []byte { return []byte("insc_nft_trans_id:" + NumIndex(nftID) + ":") }
func KeyCollID(id uint64) []byte         { return []byte("insc_coll_id:" + NumIndexDesc(id)) }

// Token keys.

func KeyTokenID(id uint64) []byte   { return []byte("insc_token_id:" + NumIndex(id)) }
func KeyTokenTick(tick string) []byte  { return []byte("insc_token_tick:" + tick) }
func KeyTokenTickI(tickI string) []byte { return []byte("insc_token_itick:" + tickI) }
func KeyTokenTransferTick(tick string, id uint64) []byte {
	return []byte("insc_token_transfer_tick:" + tick + ":" + NumIndexDesc(id))
}
func TokenTransferTickPrefix(tick string) []byte {
	return []byte("insc_token_transfer_tick:" + tick + ":")
}

// Balance keys.

func KeyBalanceTickBalanceHolder(tick string, balance uint64, addr string) []byte {
	return []byte("insc_balance_tick_balance_holder:" + tick + ":" + NumIndexDesc(balance) + ":" + addr)
}
func BalanceTickPrefix(tick string) []byte {
	return []byte("insc_balance_tick_balance_holder:" + tick + ":")
}
func KeyBalanceHolderTick(addr, tick string) []byte {
	return []byte("insc_balance_holder_tick:" + addr + ":" + tick)
}
func BalanceHolderPrefix(addr string) []byte {
	return []byte("insc_balance_holder_tick:" + addr + ":")
}
