package order

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Side is the saleSide of the settlement contract's order struct.
type Side uint8

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// SaleKind is the saleKind of the settlement contract's order struct. Only
// fixed-price orders are built or accepted.
type SaleKind uint8

const (
	SaleKindFixedPrice SaleKind = 0
	SaleKindAuction    SaleKind = 1
)

// Record is the canonical order struct consumed by the settlement contract.
// Field order matches the contract's tuple layout.
type Record struct {
	Exchange           common.Address `json:"exchange"`
	Maker              common.Address `json:"maker"`
	Taker              common.Address `json:"taker"`
	SaleSide           Side           `json:"saleSide"`
	SaleKind           SaleKind       `json:"saleKind"`
	Target             common.Address `json:"target"`
	PaymentToken       common.Address `json:"paymentToken"`
	CallData           hexutil.Bytes  `json:"callData"`
	ReplacementPattern hexutil.Bytes  `json:"replacementPattern"`
	StaticTarget       common.Address `json:"staticTarget"`
	StaticExtra        hexutil.Bytes  `json:"staticExtra"`
	BasePrice          *hexutil.Big   `json:"basePrice"`
	EndPrice           *hexutil.Big   `json:"endPrice"`
	ListingTime        uint64         `json:"listingTime"`
	ExpirationTime     uint64         `json:"expirationTime"`
	Salt               common.Hash    `json:"salt"`
}

// Price returns the fixed price of the order.
func (r *Record) Price() *big.Int {
	if r.BasePrice == nil {
		return new(big.Int)
	}
	return r.BasePrice.ToInt()
}

// DecodeRecord parses the raw column of a stored order.
func DecodeRecord(raw string) (*Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode order record: %w", err)
	}
	return &rec, nil
}

// Encode serializes the record for the raw column.
func (r *Record) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode order record: %w", err)
	}
	return string(raw), nil
}
