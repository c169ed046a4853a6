package inscription

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/insdexer/indexer/pkg/chain"
)

// dataRegex recognizes the `data:<mime>,<payload>` calldata convention this
// protocol is layered on top of.
var dataRegex = regexp.MustCompile(`^data:(.*?),(.+)$`)

// Extract turns a single chain transaction into an Inscription, or returns
// nil if the transaction doesn't carry a recognizable inscription. logs is
// the set of event logs emitted by this transaction, already fetched by the
// caller for to-addresses known to be marketplace contracts.
func Extract(tx *chain.Transaction, block *chain.Block, logs []chain.Log, marketAddrs map[string]bool) *Inscription {
	if tx.To == "" {
		return nil // contract creation carries no recipient to inscribe against
	}

	insc := &Inscription{
		TxHash:      tx.Hash,
		TxIndex:     tx.Index,
		BlockNumber: block.Number,
		From:        strings.ToLower(tx.From),
		To:          strings.ToLower(tx.To),
		Timestamp:   block.Timestamp,
		Verified:    Unresolved,
	}

	if marketAddrs[insc.To] {
		insc.MarketOrderID = deriveOrderID(tx)
	}

	if !prepare(insc, tx, logs) {
		return nil
	}
	return insc
}

// deriveOrderID computes the deterministic marketplace order id for a
// transaction addressed to a market contract: keccak256(from || blocknumber
// as a 32-byte big-endian integer || calldata), single "0x"-prefixed.
func deriveOrderID(tx *chain.Transaction) string {
	var buf bytes.Buffer
	buf.Write(decodeHexAddress(tx.From))
	var bn [32]byte
	new(big.Int).SetUint64(tx.BlockNumber).FillBytes(bn[:])
	buf.Write(bn[:])
	buf.Write(tx.Input)
	return "0x" + hex.EncodeToString(crypto.Keccak256(buf.Bytes()))
}

func decodeHexAddress(addr string) []byte {
	s := strings.TrimPrefix(addr, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return make([]byte, 20)
	}
	return b
}

// prepare fills in the mime classification (or the invoke/transfer
// fallback) for insc, returning false if the transaction should be dropped.
func prepare(insc *Inscription, tx *chain.Transaction, logs []chain.Log) bool {
	if len(logs) > 0 {
		insc.EventLogs = logs
	}

	if utf8.Valid(tx.Input) {
		if m := dataRegex.FindStringSubmatch(string(tx.Input)); m != nil {
			mimeType, mimeData := m[1], m[2]
			if isJSONObject(mimeType, mimeData) {
				var obj map[string]any
				if err := json.Unmarshal([]byte(mimeData), &obj); err == nil {
					insc.MimeCategory = CategoryJson
					insc.MimeType = mimeType
					insc.MimeData = mimeData
					insc.JSON = obj
					return true
				}
			}
			if cat := plainCategory(mimeType); cat != CategoryNull {
				insc.MimeCategory = cat
				insc.MimeType = mimeType
				insc.MimeData = mimeData
				return true
			}
			return false
		}
	}

	if len(logs) > 0 {
		insc.MimeCategory = CategoryInvoke
		return true
	}

	if len(tx.Input) > 0 && len(tx.Input)%TransferTxRawLength == 0 {
		insc.MimeCategory = CategoryTransfer
		insc.MimeData = hex.EncodeToString(tx.Input)
		return true
	}

	return false
}

func isJSONObject(mimeType, mimeData string) bool {
	if mimeType != "" && mimeType != "application/json" {
		return false
	}
	var v any
	if err := json.Unmarshal([]byte(mimeData), &v); err != nil {
		return false
	}
	_, ok := v.(map[string]any)
	return ok
}

func plainCategory(mimeType string) MimeCategory {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryImage
	case mimeType == "" || strings.HasPrefix(mimeType, "text/"):
		return CategoryText
	default:
		return CategoryNull
	}
}
