package inscription

import (
	"github.com/insdexer/indexer/pkg/market"
	"github.com/insdexer/indexer/pkg/storage"
)

// deletablePrefixes lists every key family a reindex discards. It excludes
// the cursor keys, the primary inscription log (insc_id), insc_tx (needed
// to detect a transaction as already-extracted during a future resync),
// and insc_creater-id (the only secondary index sync itself populates,
// ahead of inscribe, and so must survive to keep extraction idempotent).
var deletablePrefixes = [][]byte{
	[]byte("insc_sign:"),
	[]byte("insc_nft_id:"),
	[]byte("insc_nft_creater-id:"),
	[]byte("insc_address-id:"),
	[]byte("insc_nft_holder_id:"),
	[]byte("insc_nft_holder_address-id:"),
	[]byte("insc_nft_trans_id:"),
	[]byte("insc_coll_id:"),
	[]byte("insc_token_id:"),
	[]byte("insc_token_tick:"),
	[]byte("insc_token_itick:"),
	[]byte("insc_token_transfer_tick:"),
	[]byte("insc_balance_tick_balance_holder:"),
	[]byte("insc_balance_holder_tick:"),
	[]byte(market.KeyOrderIDPrefix + ":"),
	[]byte(market.KeySellerSortPrefix + ":"),
	[]byte(market.KeyTickPricePrefix + ":"),
	[]byte(market.KeyNFTPrefix + ":"),
	[]byte(market.KeyTimePrefix + ":"),
	[]byte(market.KeyTickTimePrefix + ":"),
	[]byte(market.KeySellerCloseCancelPrefix + ":"),
	[]byte(market.KeyCloseTickTimePrefix + ":"),
}

// Reindex deletes every derived secondary index — NFT, token, balance, and
// marketplace state — and rewinds the inscribe cursor to 0 so a subsequent
// plain run re-derives them from the untouched primary inscription log.
// The sync cursors (insc_sync_top, sync_blocknumber, sync_blockhash) are
// left alone: reindexing re-interprets already-fetched chain data, it does
// not require re-fetching it.
func Reindex(s storage.Store) error {
	txn := s.NewTxn()
	defer txn.Close()

	for _, prefix := range deletablePrefixes {
		keys, err := storage.GetItemKeys(s, prefix, nil, 0, 0, storage.Forward)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
	}

	if err := storage.PutU64(txn, []byte(KeyInscTop), 0); err != nil {
		return err
	}
	return txn.Commit()
}
