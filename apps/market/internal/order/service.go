package order

import (
	"context"
	"errors"
	"fmt"
	stdmath "math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/metrics"
	"nftmarket/apps/market/internal/model"
)

// Service is the order engine exposed to the API layer.
type Service struct {
	store     Store
	chain     ChainReader
	builder   *Builder
	validator *Validator
	verifier  *SignatureVerifier
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, chain ChainReader, builder *Builder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		chain:   chain,
		builder: builder,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(chain, s.now, logger)
	s.verifier = NewSignatureVerifier(chain, logger)
	return s
}

// CreateSellOrder builds and stores an unverified listing.
func (s *Service) CreateSellOrder(ctx context.Context, intent Intent) (*model.Order, *Record, error) {
	intent.Side = SideSell
	return s.create(ctx, intent)
}

// CreateOfferOrder builds and stores an unverified bid.
func (s *Service) CreateOfferOrder(ctx context.Context, intent Intent) (*model.Order, *Record, error) {
	intent.Side = SideBuy
	return s.create(ctx, intent)
}

func (s *Service) create(ctx context.Context, intent Intent) (*model.Order, *Record, error) {
	if intent.ExpirationTime > stdmath.MaxInt64 {
		return nil, nil, fmt.Errorf("%w: expiration time %d out of range", ErrInvalidAmount, intent.ExpirationTime)
	}

	draft, err := s.builder.Build(intent)
	if err != nil {
		return nil, nil, err
	}
	raw, err := draft.Record.Encode()
	if err != nil {
		return nil, nil, err
	}

	o := &model.Order{
		Raw:             raw,
		IsSell:          intent.Side == SideSell,
		Maker:           draft.Maker,
		Price:           draft.Price,
		ContractAddress: draft.ContractAddress,
		TokenID:         draft.TokenID,
		ExpirationTime:  int64(intent.ExpirationTime),
	}
	if err := s.store.SaveOrder(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("failed to save order: %w", err)
	}

	metrics.OrderCreated(intent.Side.String())
	s.logger.Info("Created order",
		zap.Int64("order_id", o.ID),
		zap.String("side", intent.Side.String()),
		zap.String("maker", o.Maker),
		zap.String("contract_address", o.ContractAddress),
		zap.String("token_id", o.TokenID))
	return o, draft.Record, nil
}

// GetOrder returns a stored order in any state.
func (s *Service) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, err := s.store.FindOrder(ctx, OrderFilter{ID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return o, nil
}

// findInState looks up order id with the given verified flag. When no such
// order exists it reports ErrOrderNotFound or, if the order is in the other
// state, mismatch.
func (s *Service) findInState(ctx context.Context, id int64, verified bool, mismatch error) (*model.Order, error) {
	o, err := s.store.FindOrder(ctx, OrderFilter{ID: id, Verified: &verified})
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if o != nil {
		return o, nil
	}
	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: order %d", mismatch, id)
}

// VerifyOrder re-checks the order's chain preconditions and the maker's
// signature, then marks the order verified. Only one caller can win for a
// given id; the rest get ErrOrderNotPending.
func (s *Service) VerifyOrder(ctx context.Context, id int64, sig Signature) (o *model.Order, err error) {
	defer func() {
		metrics.OrderVerification(Kind(err))
	}()

	o, err = s.findInState(ctx, id, false, ErrOrderNotPending)
	if err != nil {
		return nil, err
	}

	rec, err := DecodeRecord(o.Raw)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, rec); err != nil {
		s.logger.Info("Order failed validation", zap.Int64("order_id", id), zap.Error(err))
		return nil, err
	}
	if err := s.verifier.Verify(ctx, rec, sig); err != nil {
		s.logger.Info("Order signature rejected", zap.Int64("order_id", id), zap.Error(err))
		return nil, err
	}

	signature := sig.Hex()
	ok, err := s.store.MarkVerified(ctx, id, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order verified: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %d was verified concurrently", ErrOrderNotPending, id)
	}

	o.Verified = true
	o.Signature = &signature
	s.logger.Info("Verified order", zap.Int64("order_id", id), zap.String("maker", o.Maker))
	return o, nil
}

// GenerateCounterOrder derives the unsigned order counterparty must sign to
// fill order id.
func (s *Service) GenerateCounterOrder(ctx context.Context, id int64, counterparty string) (*Record, error) {
	taker, err := ParseAddress(counterparty)
	if err != nil {
		return nil, err
	}

	o, err := s.findInState(ctx, id, true, ErrOrderNotVerified)
	if err != nil {
		return nil, err
	}
	if o.ExpirationTime < s.now().Unix() {
		return nil, fmt.Errorf("%w: order %d expired at %d", ErrOrderExpired, id, o.ExpirationTime)
	}

	rec, err := DecodeRecord(o.Raw)
	if err != nil {
		return nil, err
	}
	tokenID, err := TransferTokenID(rec.CallData)
	if err != nil {
		return nil, err
	}
	return s.builder.Counter(rec, taker, tokenID)
}

// ListSellOrders returns live listings for a token, cheapest first. Listings
// made by anyone other than the current owner are left out, so a token whose
// ownerOf reverts has an empty book.
func (s *Service) ListSellOrders(ctx context.Context, contract, tokenID string) ([]model.Order, error) {
	target, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	id, err := ParseUint256(tokenID)
	if err != nil {
		return nil, err
	}

	owner, err := s.chain.OwnerOf(ctx, target, id)
	if errors.Is(err, ErrChainReadFatal) {
		// burned or never minted: no listing can be made by the owner
		s.logger.Info("Token has no owner, sell book is empty",
			zap.String("contract_address", NormalizeAddress(target)),
			zap.String("token_id", PadUint256(id)),
			zap.Error(err))
		return []model.Order{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read owner: %w", err)
	}

	return s.list(ctx, OrderBookQuery{
		ContractAddress: NormalizeAddress(target),
		TokenID:         PadUint256(id),
		IsSell:          true,
		Maker:           NormalizeAddress(owner),
		Now:             s.now().Unix(),
	})
}

// ListOfferOrders returns live bids for a token, highest first.
func (s *Service) ListOfferOrders(ctx context.Context, contract, tokenID string) ([]model.Order, error) {
	target, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	id, err := ParseUint256(tokenID)
	if err != nil {
		return nil, err
	}

	return s.list(ctx, OrderBookQuery{
		ContractAddress: NormalizeAddress(target),
		TokenID:         PadUint256(id),
		IsSell:          false,
		Now:             s.now().Unix(),
	})
}

func (s *Service) list(ctx context.Context, q OrderBookQuery) ([]model.Order, error) {
	orders, err := s.store.ListOrders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// ProxyFor returns the proxy registered for owner, or the zero address.
func (s *Service) ProxyFor(ctx context.Context, owner string) (common.Address, error) {
	addr, err := ParseAddress(owner)
	if err != nil {
		return common.Address{}, err
	}
	proxy, err := s.chain.ProxyFor(ctx, addr)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve proxy: %w", err)
	}
	return proxy, nil
}

// CheckSignature verifies sig against an order that is not stored, such as a
// counter-order signed by a taker.
func (s *Service) CheckSignature(ctx context.Context, rec *Record, sig Signature) error {
	return s.verifier.Verify(ctx, rec, sig)
}
