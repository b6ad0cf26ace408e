package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/order"
)

var (
	exchangeAddr = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000e0004")
	tokenAddr    = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB02")
	makerAddr    = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA01")
)

type revertError struct{}

func (revertError) Error() string          { return "execution reverted: not owner" }
func (revertError) ErrorCode() int         { return 3 }
func (revertError) ErrorData() interface{} { return "0x08c379a0" }

type fakeCaller struct {
	mu    sync.Mutex
	calls []ethereum.CallMsg
	reply func(n int, msg ethereum.CallMsg) ([]byte, error)
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	n := len(f.calls)
	f.mu.Unlock()
	return f.reply(n, msg)
}

func (f *fakeCaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestReader(t *testing.T, caller *fakeCaller) *Reader {
	t.Helper()
	r, err := NewReader(caller, Options{
		ExchangeAddress:      exchangeAddr,
		ProxyRegistryAddress: registryAddr,
		CallTimeout:          50 * time.Millisecond,
		MaxAttempts:          3,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           2 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func mustParse(t *testing.T, def string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(def))
	require.NoError(t, err)
	return parsed
}

func packOutput(t *testing.T, def, method string, values ...interface{}) []byte {
	t.Helper()
	out, err := mustParse(t, def).Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func TestOwnerOf(t *testing.T) {
	caller := &fakeCaller{reply: func(_ int, msg ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ERC721ABI, "ownerOf", makerAddr), nil
	}}
	r := newTestReader(t, caller)

	owner, err := r.OwnerOf(context.Background(), tokenAddr, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, makerAddr, owner)

	require.Equal(t, 1, caller.count())
	msg := caller.calls[0]
	assert.Equal(t, tokenAddr, *msg.To)
	assert.Equal(t, crypto.Keccak256([]byte("ownerOf(uint256)"))[:4], msg.Data[:4])
	assert.Equal(t, common.LeftPadBytes([]byte{7}, 32), msg.Data[4:])
}

func TestProxyForUsesRegistry(t *testing.T) {
	proxy := common.HexToAddress("0x00000000000000000000000000000000000e0003")
	caller := &fakeCaller{reply: func(_ int, msg ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ProxyRegistryABI, "proxies", proxy), nil
	}}
	r := newTestReader(t, caller)

	got, err := r.ProxyFor(context.Background(), makerAddr)
	require.NoError(t, err)
	assert.Equal(t, proxy, got)
	assert.Equal(t, registryAddr, *caller.calls[0].To)
}

func TestERC20Reads(t *testing.T) {
	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	caller := &fakeCaller{reply: func(_ int, msg ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ERC20ABI, "balanceOf", amount), nil
	}}
	r := newTestReader(t, caller)

	allowance, err := r.Allowance(context.Background(), tokenAddr, makerAddr, exchangeAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(allowance))

	balance, err := r.BalanceOf(context.Background(), tokenAddr, makerAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(balance))
}

func TestIsApprovedForAll(t *testing.T) {
	caller := &fakeCaller{reply: func(_ int, msg ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ERC721ABI, "isApprovedForAll", true), nil
	}}
	r := newTestReader(t, caller)

	approved, err := r.IsApprovedForAll(context.Background(), tokenAddr, makerAddr, exchangeAddr)
	require.NoError(t, err)
	assert.True(t, approved)
}

func TestTransientFailureIsRetried(t *testing.T) {
	caller := &fakeCaller{reply: func(n int, msg ethereum.CallMsg) ([]byte, error) {
		if n < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return packOutput(t, ERC721ABI, "ownerOf", makerAddr), nil
	}}
	r := newTestReader(t, caller)

	owner, err := r.OwnerOf(context.Background(), tokenAddr, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, makerAddr, owner)
	assert.Equal(t, 3, caller.count())
}

func TestTransientFailureGivesUp(t *testing.T) {
	caller := &fakeCaller{reply: func(int, ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("503 service unavailable")
	}}
	r := newTestReader(t, caller)

	_, err := r.OwnerOf(context.Background(), tokenAddr, big.NewInt(1))
	assert.ErrorIs(t, err, order.ErrChainReadTransient)
	assert.True(t, order.IsRetryable(err))
	assert.Equal(t, 3, caller.count())
}

func TestSlowNodeTimesOut(t *testing.T) {
	caller := &fakeCaller{reply: func(int, ethereum.CallMsg) ([]byte, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}}
	r := newTestReader(t, caller)
	r.opts.MaxAttempts = 1

	_, err := r.BalanceOf(context.Background(), tokenAddr, makerAddr)
	assert.ErrorIs(t, err, order.ErrChainReadTransient)
}

func TestRevertIsNotRetried(t *testing.T) {
	caller := &fakeCaller{reply: func(int, ethereum.CallMsg) ([]byte, error) {
		return nil, revertError{}
	}}
	r := newTestReader(t, caller)

	_, err := r.OwnerOf(context.Background(), tokenAddr, big.NewInt(1))
	assert.ErrorIs(t, err, order.ErrChainReadFatal)
	assert.False(t, order.IsRetryable(err))
	assert.Equal(t, 1, caller.count())
}

func TestEmptyResultIsFatal(t *testing.T) {
	caller := &fakeCaller{reply: func(int, ethereum.CallMsg) ([]byte, error) {
		return nil, nil
	}}
	r := newTestReader(t, caller)

	_, err := r.OwnerOf(context.Background(), tokenAddr, big.NewInt(1))
	assert.ErrorIs(t, err, order.ErrChainReadFatal)
	assert.Equal(t, 1, caller.count())
}

func testRecord(t *testing.T) (*order.Record, order.Signature) {
	t.Helper()
	b, err := order.NewBuilder(exchangeAddr, common.Address{})
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	draft, err := b.Build(order.Intent{
		Maker:          crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Contract:       tokenAddr.Hex(),
		TokenID:        "7",
		Price:          "1000000000000000000",
		ExpirationTime: 1_700_003_600,
		Side:           order.SideSell,
	})
	require.NoError(t, err)
	sig, err := order.Sign(draft.Record, key)
	require.NoError(t, err)
	return draft.Record, sig
}

func TestValidateOrder(t *testing.T) {
	rec, sig := testRecord(t)
	exchangeABI := mustParse(t, ExchangeABI)

	tests := []struct {
		name      string
		reply     func(int, ethereum.CallMsg) ([]byte, error)
		wantErr   error
		retryable bool
		calls     int
	}{
		{
			name:  "accepted",
			reply: func(int, ethereum.CallMsg) ([]byte, error) { return packOutput(t, ExchangeABI, "validateOrder", true), nil },
			calls: 1,
		},
		{
			name:    "rejected",
			reply:   func(int, ethereum.CallMsg) ([]byte, error) { return packOutput(t, ExchangeABI, "validateOrder", false), nil },
			wantErr: order.ErrOnChainValidationFailed,
			calls:   1,
		},
		{
			name:    "reverted",
			reply:   func(int, ethereum.CallMsg) ([]byte, error) { return nil, revertError{} },
			wantErr: order.ErrOnChainValidationFailed,
			calls:   1,
		},
		{
			name:      "node unavailable",
			reply:     func(int, ethereum.CallMsg) ([]byte, error) { return nil, errors.New("dial tcp: i/o timeout") },
			wantErr:   order.ErrChainReadTransient,
			retryable: true,
			calls:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{reply: tt.reply}
			r := newTestReader(t, caller)

			err := r.ValidateOrder(context.Background(), rec, sig)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, order.ErrOnChainValidationFailed)
			}
			assert.Equal(t, tt.retryable, order.IsRetryable(err))
			assert.Equal(t, tt.calls, caller.count())

			msg := caller.calls[0]
			assert.Equal(t, exchangeAddr, *msg.To)
			assert.Equal(t, exchangeABI.Methods["validateOrder"].ID, msg.Data[:4])
		})
	}
}
