package order

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Validator checks the live chain preconditions of an order. Nothing it reads
// is cached; every call goes to the chain.
type Validator struct {
	chain  ChainReader
	now    func() time.Time
	logger *zap.Logger
}

func NewValidator(chain ChainReader, now func() time.Time, logger *zap.Logger) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{chain: chain, now: now, logger: logger}
}

// Validate returns nil if rec could be settled as of now.
func (v *Validator) Validate(ctx context.Context, rec *Record) error {
	if rec.SaleKind != SaleKindFixedPrice {
		return fmt.Errorf("%w: %d", ErrUnsupportedSaleKind, rec.SaleKind)
	}
	if int64(rec.ExpirationTime) < v.now().Unix() {
		return fmt.Errorf("%w: expired at %d", ErrOrderExpired, rec.ExpirationTime)
	}

	switch rec.SaleSide {
	case SideSell:
		return v.validateSell(ctx, rec)
	case SideBuy:
		return v.validateOffer(ctx, rec)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedSaleSide, rec.SaleSide)
	}
}

func (v *Validator) validateSell(ctx context.Context, rec *Record) error {
	proxy, err := v.chain.ProxyFor(ctx, rec.Maker)
	if err != nil {
		return fmt.Errorf("failed to resolve proxy: %w", err)
	}
	if proxy == zeroAddress {
		return fmt.Errorf("%w: maker %s", ErrNoProxyRegistered, rec.Maker.Hex())
	}

	approved, err := v.chain.IsApprovedForAll(ctx, rec.Target, rec.Maker, proxy)
	if err != nil {
		return fmt.Errorf("failed to check approval: %w", err)
	}
	if !approved {
		return fmt.Errorf("%w: proxy %s on %s", ErrNotApproved, proxy.Hex(), rec.Target.Hex())
	}

	tokenID, err := TransferTokenID(rec.CallData)
	if err != nil {
		return err
	}
	owner, err := v.chain.OwnerOf(ctx, rec.Target, tokenID)
	if err != nil {
		return fmt.Errorf("failed to read owner: %w", err)
	}
	if owner != rec.Maker {
		v.logger.Info("Sell order maker is not the token owner",
			zap.String("maker", NormalizeAddress(rec.Maker)),
			zap.String("owner", NormalizeAddress(owner)),
			zap.String("token_id", tokenID.String()))
		return fmt.Errorf("%w: token %s is owned by %s", ErrNotOwner, tokenID, owner.Hex())
	}
	return nil
}

func (v *Validator) validateOffer(ctx context.Context, rec *Record) error {
	price := rec.Price()

	allowance, err := v.chain.Allowance(ctx, rec.PaymentToken, rec.Maker, rec.Exchange)
	if err != nil {
		return fmt.Errorf("failed to read allowance: %w", err)
	}
	if allowance.Cmp(price) < 0 {
		return fmt.Errorf("%w: allowance %s < price %s", ErrInsufficientAllowance, allowance, price)
	}

	balance, err := v.chain.BalanceOf(ctx, rec.PaymentToken, rec.Maker)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	if balance.Cmp(price) < 0 {
		return fmt.Errorf("%w: balance %s < price %s", ErrInsufficientBalance, balance, price)
	}
	return nil
}
