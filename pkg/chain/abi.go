package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MarketABIJSON describes the marketplace contract events the invoke
// category of inscriptions is built from.
const MarketABIJSON = `[
  {"type":"event","name":"MarketList","anonymous":false,"inputs":[
    {"name":"orderId","type":"bytes32","indexed":false},
    {"name":"seller","type":"address","indexed":false},
    {"name":"nftId","type":"uint256","indexed":false},
    {"name":"isNft","type":"bool","indexed":false}
  ]},
  {"type":"event","name":"MarketBuy","anonymous":false,"inputs":[
    {"name":"orderId","type":"bytes32","indexed":false},
    {"name":"buyer","type":"address","indexed":false},
    {"name":"price","type":"uint256","indexed":false}
  ]},
  {"type":"event","name":"MarketCancel","anonymous":false,"inputs":[
    {"name":"orderId","type":"bytes32","indexed":false}
  ]},
  {"type":"event","name":"MarketSetPrice","anonymous":false,"inputs":[
    {"name":"orderId","type":"bytes32","indexed":false},
    {"name":"price","type":"uint256","indexed":false}
  ]}
]`

// MarketEvent is a decoded marketplace contract log, normalized to the
// fields the invoke handlers need regardless of which of the four events
// produced it.
type MarketEvent struct {
	Name    string
	OrderID string // hex without 0x prefix, matching the on-chain encoding
	Price   *big.Int
	NFTID   uint64
	IsNFT   bool
	Seller  string
	Buyer   string
}

// MarketABI decodes marketplace contract event logs.
type MarketABI struct {
	contract ethabi.ABI
}

func NewMarketABI() (*MarketABI, error) {
	a, err := ethabi.JSON(strings.NewReader(MarketABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse market abi: %w", err)
	}
	return &MarketABI{contract: a}, nil
}

// Match decodes log as one of the four marketplace events, returning false
// if the log's topic0 doesn't match any of them.
func (m *MarketABI) Match(log Log) (*MarketEvent, bool) {
	if len(log.Topics) == 0 {
		return nil, false
	}
	ev, err := m.contract.EventByID(common.HexToHash(log.Topics[0]))
	if err != nil {
		return nil, false
	}
	switch ev.Name {
	case "MarketList", "MarketBuy", "MarketCancel", "MarketSetPrice":
	default:
		return nil, false
	}

	values := make(map[string]interface{})
	if err := m.contract.UnpackIntoMap(values, ev.Name, log.Data); err != nil {
		return nil, false
	}

	out := &MarketEvent{Name: ev.Name}
	if raw, ok := values["orderId"].([32]byte); ok {
		out.OrderID = hex.EncodeToString(raw[:])
	}
	if price, ok := values["price"].(*big.Int); ok {
		out.Price = price
	}
	if nftID, ok := values["nftId"].(*big.Int); ok {
		out.NFTID = nftID.Uint64()
	}
	if isNFT, ok := values["isNft"].(bool); ok {
		out.IsNFT = isNFT
	}
	if seller, ok := values["seller"].(common.Address); ok {
		out.Seller = strings.ToLower(seller.Hex())
	}
	if buyer, ok := values["buyer"].(common.Address); ok {
		out.Buyer = strings.ToLower(buyer.Hex())
	}
	return out, true
}
