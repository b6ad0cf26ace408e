package ordertest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/apps/market/internal/order"
)

type tokenKey struct {
	token common.Address
	id    string
}

type pairKey struct {
	token, owner, other common.Address
}

// Chain is a scripted order.ChainReader. Unset reads return zero values.
type Chain struct {
	mu sync.Mutex

	proxies   map[common.Address]common.Address
	approvals map[pairKey]bool
	owners    map[tokenKey]common.Address
	allowance map[pairKey]*big.Int
	balances  map[pairKey]*big.Int

	// Err, if set, is returned from every read.
	Err error
	// ValidateErr is returned from ValidateOrder.
	ValidateErr error

	calls map[string]int
}

func NewChain() *Chain {
	return &Chain{
		proxies:   make(map[common.Address]common.Address),
		approvals: make(map[pairKey]bool),
		owners:    make(map[tokenKey]common.Address),
		allowance: make(map[pairKey]*big.Int),
		balances:  make(map[pairKey]*big.Int),
		calls:     make(map[string]int),
	}
}

func (c *Chain) SetProxy(owner, proxy common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxies[owner] = proxy
}

func (c *Chain) Approve(token, owner, operator common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approvals[pairKey{token, owner, operator}] = true
}

func (c *Chain) SetOwner(token common.Address, tokenID *big.Int, owner common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[tokenKey{token, tokenID.String()}] = owner
}

func (c *Chain) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowance[pairKey{token, owner, spender}] = amount
}

func (c *Chain) SetBalance(token, owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[pairKey{token: token, owner: owner}] = amount
}

// Calls returns how many times method was invoked.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Chain) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.Err
}

func (c *Chain) ProxyFor(_ context.Context, owner common.Address) (common.Address, error) {
	if err := c.record("proxies"); err != nil {
		return common.Address{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proxies[owner], nil
}

func (c *Chain) IsApprovedForAll(_ context.Context, token, owner, operator common.Address) (bool, error) {
	if err := c.record("isApprovedForAll"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approvals[pairKey{token, owner, operator}], nil
}

func (c *Chain) OwnerOf(_ context.Context, token common.Address, tokenID *big.Int) (common.Address, error) {
	if err := c.record("ownerOf"); err != nil {
		return common.Address{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owners[tokenKey{token, tokenID.String()}], nil
}

func (c *Chain) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if err := c.record("allowance"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.allowance[pairKey{token, owner, spender}]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (c *Chain) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	if err := c.record("balanceOf"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.balances[pairKey{token: token, owner: owner}]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (c *Chain) ValidateOrder(_ context.Context, _ *order.Record, _ order.Signature) error {
	if err := c.record("validateOrder"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ValidateErr
}

var _ order.ChainReader = (*Chain)(nil)
var _ order.Store = (*MemoryStore)(nil)
