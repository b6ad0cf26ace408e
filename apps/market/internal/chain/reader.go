package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/metrics"
	"nftmarket/apps/market/internal/order"
)

var errReverted = errors.New("execution reverted")

// Options configures a Reader. Zero durations and attempt counts fall back to
// the defaults below.
type Options struct {
	ExchangeAddress      common.Address
	ProxyRegistryAddress common.Address
	CallTimeout          time.Duration
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
}

const (
	defaultCallTimeout    = 2 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = time.Second
)

// Reader implements order.ChainReader over an Ethereum JSON-RPC endpoint.
// Every read is an eth_call against the latest block; nothing is cached.
type Reader struct {
	client      ethereum.ContractCaller
	opts        Options
	erc721ABI   abi.ABI
	erc20ABI    abi.ABI
	registryABI abi.ABI
	exchangeABI abi.ABI
	logger      *zap.Logger
}

// NewReader creates a Reader. client is usually an *ethclient.Client.
func NewReader(client ethereum.ContractCaller, opts Options, logger *zap.Logger) (*Reader, error) {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}

	r := &Reader{client: client, opts: opts, logger: logger}
	for _, parsed := range []struct {
		dst  *abi.ABI
		name string
		def  string
	}{
		{&r.erc721ABI, "ERC721", ERC721ABI},
		{&r.erc20ABI, "ERC20", ERC20ABI},
		{&r.registryABI, "proxy registry", ProxyRegistryABI},
		{&r.exchangeABI, "exchange", ExchangeABI},
	} {
		a, err := abi.JSON(strings.NewReader(parsed.def))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s ABI: %w", parsed.name, err)
		}
		*parsed.dst = a
	}
	return r, nil
}

func (r *Reader) ProxyFor(ctx context.Context, owner common.Address) (common.Address, error) {
	var proxy common.Address
	if err := r.call(ctx, &r.registryABI, r.opts.ProxyRegistryAddress, "proxies", &proxy, owner); err != nil {
		return common.Address{}, err
	}
	return proxy, nil
}

func (r *Reader) IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	var approved bool
	if err := r.call(ctx, &r.erc721ABI, token, "isApprovedForAll", &approved, owner, operator); err != nil {
		return false, err
	}
	return approved, nil
}

func (r *Reader) OwnerOf(ctx context.Context, token common.Address, tokenID *big.Int) (common.Address, error) {
	var owner common.Address
	if err := r.call(ctx, &r.erc721ABI, token, "ownerOf", &owner, tokenID); err != nil {
		return common.Address{}, err
	}
	return owner, nil
}

func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var remaining *big.Int
	if err := r.call(ctx, &r.erc20ABI, token, "allowance", &remaining, owner, spender); err != nil {
		return nil, err
	}
	return remaining, nil
}

func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := r.call(ctx, &r.erc20ABI, token, "balanceOf", &balance, owner); err != nil {
		return nil, err
	}
	return balance, nil
}

type orderTuple struct {
	Exchange           common.Address
	Maker              common.Address
	Taker              common.Address
	SaleSide           uint8
	SaleKind           uint8
	Target             common.Address
	PaymentToken       common.Address
	CallData           []byte
	ReplacementPattern []byte
	StaticTarget       common.Address
	StaticExtra        []byte
	BasePrice          *big.Int
	EndPrice           *big.Int
	ListingTime        *big.Int
	ExpirationTime     *big.Int
	Salt               [32]byte
}

type sigTuple struct {
	R [32]byte
	S [32]byte
	V uint8
}

func toTuple(rec *order.Record) orderTuple {
	endPrice := new(big.Int)
	if rec.EndPrice != nil {
		endPrice = rec.EndPrice.ToInt()
	}
	return orderTuple{
		Exchange:           rec.Exchange,
		Maker:              rec.Maker,
		Taker:              rec.Taker,
		SaleSide:           uint8(rec.SaleSide),
		SaleKind:           uint8(rec.SaleKind),
		Target:             rec.Target,
		PaymentToken:       rec.PaymentToken,
		CallData:           rec.CallData,
		ReplacementPattern: rec.ReplacementPattern,
		StaticTarget:       rec.StaticTarget,
		StaticExtra:        append([]byte{}, rec.StaticExtra...),
		BasePrice:          rec.Price(),
		EndPrice:           endPrice,
		ListingTime:        new(big.Int).SetUint64(rec.ListingTime),
		ExpirationTime:     new(big.Int).SetUint64(rec.ExpirationTime),
		Salt:               rec.Salt,
	}
}

// ValidateOrder asks the exchange whether sig authorizes rec. A revert or a
// false result is a rejection and is never retried.
func (r *Reader) ValidateOrder(ctx context.Context, rec *order.Record, sig order.Signature) error {
	var valid bool
	err := r.call(ctx, &r.exchangeABI, r.opts.ExchangeAddress, "validateOrder", &valid,
		toTuple(rec), sigTuple{R: sig.R, S: sig.S, V: sig.V})
	if err != nil {
		return fmt.Errorf("%w: %w", order.ErrOnChainValidationFailed, err)
	}
	if !valid {
		return fmt.Errorf("%w: exchange returned false", order.ErrOnChainValidationFailed)
	}
	return nil
}

// call performs one eth_call with a per-attempt timeout, retrying transport
// failures with exponential backoff. Reverts are returned immediately.
func (r *Reader) call(ctx context.Context, parsed *abi.ABI, to common.Address, method string, out interface{}, args ...interface{}) (err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.ChainCall(method, outcome, time.Since(start))
	}()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		outcome = "fatal"
		return fmt.Errorf("%w: failed to pack %s: %v", order.ErrChainReadFatal, method, err)
	}

	var result []byte
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()

		res, err := r.client.CallContract(callCtx, ethereum.CallMsg{
			To:   &to,
			Data: data,
		}, nil)
		if err != nil {
			if isRevert(err) {
				return backoff.Permanent(fmt.Errorf("%w: %v", errReverted, err))
			}
			return err
		}
		result = res
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = r.opts.InitialBackoff
	expBackoff.MaxInterval = r.opts.MaxBackoff
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(r.opts.MaxAttempts-1)), ctx)

	err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		r.logger.Warn("Retrying chain call",
			zap.String("method", method),
			zap.String("to", to.Hex()),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		if errors.Is(err, errReverted) {
			outcome = "reverted"
			return fmt.Errorf("%w: %s on %s: %w", order.ErrChainReadFatal, method, to.Hex(), err)
		}
		outcome = "transient"
		r.logger.Error("Chain call failed", zap.String("method", method), zap.String("to", to.Hex()), zap.Error(err))
		return fmt.Errorf("%w: %s on %s: %v", order.ErrChainReadTransient, method, to.Hex(), err)
	}

	if err := parsed.UnpackIntoInterface(out, method, result); err != nil {
		outcome = "fatal"
		return fmt.Errorf("%w: failed to unpack %s from %s: %v", order.ErrChainReadFatal, method, to.Hex(), err)
	}
	return nil
}

// isRevert reports whether err is the node telling us the call reverted, as
// opposed to the call never completing.
func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

var _ order.ChainReader = (*Reader)(nil)
