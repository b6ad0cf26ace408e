package order

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/apps/market/internal/model"
)

// OrderFilter selects a single order. A nil Verified matches either state.
type OrderFilter struct {
	ID       int64
	Verified *bool
}

// OrderBookQuery selects verified, unexpired orders on one token.
type OrderBookQuery struct {
	ContractAddress string // normalized
	TokenID         string // padded
	IsSell          bool
	Maker           string // optional, normalized
	Now             int64
}

// Store persists orders. Only MarkVerified writes the verified and signature
// columns.
type Store interface {
	// SaveOrder inserts o, or updates the order with o.ID. The generated id
	// and creation time are written back into o.
	SaveOrder(ctx context.Context, o *model.Order) error
	// FindOrder returns nil, nil when nothing matches.
	FindOrder(ctx context.Context, filter OrderFilter) (*model.Order, error)
	// ListOrders returns sells cheapest first and offers highest first.
	ListOrders(ctx context.Context, q OrderBookQuery) ([]model.Order, error)
	// MarkVerified flips an unverified order to verified and stores its
	// signature. It reports false if the order was not pending.
	MarkVerified(ctx context.Context, id int64, signature string) (bool, error)
}

// ChainReader is the read-only view of chain state the engine depends on.
// Implementations return errors wrapping ErrChainReadTransient or
// ErrChainReadFatal when a read cannot be completed.
type ChainReader interface {
	ProxyFor(ctx context.Context, owner common.Address) (common.Address, error)
	IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error)
	OwnerOf(ctx context.Context, token common.Address, tokenID *big.Int) (common.Address, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// ValidateOrder runs the settlement contract's validation entry point and
	// returns an error wrapping ErrOnChainValidationFailed if it rejects.
	ValidateOrder(ctx context.Context, rec *Record, sig Signature) error
}
