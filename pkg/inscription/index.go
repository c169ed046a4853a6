package inscription

import (
	"github.com/insdexer/indexer/pkg/storage"
)

// PutPrimary (re)writes an inscription's primary record. Called once at
// sync time (verified == Unresolved) and again at inscribe commit time once
// verified/signature are final.
func PutPrimary(txn storage.Txn, insc *Inscription) error {
	data, err := storage.EncodeJSON(insc)
	if err != nil {
		return err
	}
	return txn.Put(KeyInscID(insc.ID), data)
}

// PutSyncIndices writes the indices the sync worker owns: the primary
// record, the tx-hash lookup, and the creator index. Everything else is
// written later by the inscribe worker once the inscription has been
// interpreted.
func PutSyncIndices(txn storage.Txn, insc *Inscription) error {
	if err := PutPrimary(txn, insc); err != nil {
		return err
	}
	if err := storage.PutU64(txn, KeyInscTx(insc.TxHash), insc.ID); err != nil {
		return err
	}
	return txn.Put(KeyInscCreaterID(insc.From, insc.ID), nil)
}

// PutAddressIndices writes the two address-side indices for a
// successfully-verified inscription: one for the sender, one for the
// recipient.
func PutAddressIndices(txn storage.Txn, insc *Inscription) error {
	if err := txn.Put(KeyInscAddressID(insc.From, insc.ID), nil); err != nil {
		return err
	}
	return txn.Put(KeyInscAddressID(insc.To, insc.ID), nil)
}

// PutNFTIndices writes the full set of indices an inscription gains once it
// is confirmed to be a unique NFT mint: the NFT-id marker, the creator
// index, the signature dedup key, and the holder primary/secondary index
// (holder starts out as insc.To, the minting recipient).
func PutNFTIndices(txn storage.Txn, insc *Inscription) error {
	if err := txn.Put(KeyNFTID(insc.ID), nil); err != nil {
		return err
	}
	if err := txn.Put(KeyNFTCreaterID(insc.From, insc.ID), nil); err != nil {
		return err
	}
	if err := storage.PutU64(txn, KeyInscSign(insc.Signature), insc.ID); err != nil {
		return err
	}
	if err := txn.Put(KeyNFTHolderID(insc.ID), []byte(insc.To)); err != nil {
		return err
	}
	return txn.Put(KeyNFTHolderAddressID(insc.To, insc.ID), nil)
}

// MoveNFTHolder updates the holder primary record for nftID from oldAddr to
// newAddr and, when transferID is non-zero, records the move under that
// transfer id so NFTTransID can replay transfer history in order.
func MoveNFTHolder(txn storage.Txn, nftID, transferID uint64, oldAddr, newAddr string) error {
	if err := txn.Put(KeyNFTHolderID(nftID), []byte(newAddr)); err != nil {
		return err
	}
	if oldAddr != "" {
		if err := txn.Delete(KeyNFTHolderAddressID(oldAddr, nftID)); err != nil {
			return err
		}
	}
	if err := txn.Put(KeyNFTHolderAddressID(newAddr, nftID), nil); err != nil {
		return err
	}
	if transferID == 0 {
		return nil
	}
	return txn.Put(KeyNFTTransID(nftID, transferID), nil)
}

// PutCollection writes a collection-deploy inscription's index entry and
// its item list.
func PutCollection(txn storage.Txn, coll *Collection) error {
	data, err := storage.EncodeJSON(coll)
	if err != nil {
		return err
	}
	return txn.Put(KeyCollID(coll.InscID), data)
}

// PutToken writes a newly deployed token's primary record and its two tick
// lookup indices (exact-case and lowercase).
func PutToken(txn storage.Txn, tok *Token) error {
	data, err := storage.EncodeJSON(tok)
	if err != nil {
		return err
	}
	if err := txn.Put(KeyTokenID(tok.InscID), data); err != nil {
		return err
	}
	if err := storage.PutU64(txn, KeyTokenTick(tok.Tick), tok.InscID); err != nil {
		return err
	}
	return storage.PutU64(txn, KeyTokenTickI(tok.TickI), tok.InscID)
}

// UpdateToken rewrites a token's primary record in place; the tick indices
// never change after deploy.
func UpdateToken(txn storage.Txn, tok *Token) error {
	data, err := storage.EncodeJSON(tok)
	if err != nil {
		return err
	}
	return txn.Put(KeyTokenID(tok.InscID), data)
}

// PutTokenTransfer records a token movement under the tick's transfer
// history index.
func PutTokenTransfer(txn storage.Txn, tick string, inscID uint64) error {
	return txn.Put(KeyTokenTransferTick(tick, inscID), nil)
}

// MoveBalance rewrites the tick/balance/holder sort index for a holder
// whose balance changed from oldBalance to newBalance, and the flat
// holder→tick lookup used to find a specific balance quickly.
func MoveBalance(txn storage.Txn, tick, addr string, oldBalance, newBalance uint64, hadBalance bool) error {
	if hadBalance {
		if err := txn.Delete(KeyBalanceTickBalanceHolder(tick, oldBalance, addr)); err != nil {
			return err
		}
	}
	if err := txn.Put(KeyBalanceTickBalanceHolder(tick, newBalance, addr), nil); err != nil {
		return err
	}
	return storage.PutU64(txn, KeyBalanceHolderTick(addr, tick), newBalance)
}

// DeleteBalance removes a holder's balance index entirely, used when a
// transfer/buy drains a balance to zero.
func DeleteBalance(txn storage.Txn, tick, addr string, balance uint64) error {
	if err := txn.Delete(KeyBalanceTickBalanceHolder(tick, balance, addr)); err != nil {
		return err
	}
	return txn.Delete(KeyBalanceHolderTick(addr, tick))
}
