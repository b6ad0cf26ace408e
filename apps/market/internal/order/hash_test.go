package order

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	maker := crypto.PubkeyToAddress(key.PublicKey)

	b := newTestBuilder(t)
	intent := testIntent(SideSell)
	intent.Maker = maker.Hex()
	draft, err := b.Build(intent)
	require.NoError(t, err)

	sig, err := Sign(draft.Record, key)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, sig.V)

	signer, err := RecoverSigner(draft.Record, sig)
	require.NoError(t, err)
	assert.Equal(t, maker, signer)

	// any change to the record changes the signer
	draft.Record.BasePrice = (*hexutil.Big)(big.NewInt(1))
	signer, err = RecoverSigner(draft.Record, sig)
	if err == nil {
		assert.NotEqual(t, maker, signer)
	}
}

func TestSignatureEncodings(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("order"))
	raw, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	require.Contains(t, []byte{0, 1}, raw[64])

	fromZeroOne, err := SignatureFromBytes(raw)
	require.NoError(t, err)

	shifted := append([]byte(nil), raw...)
	shifted[64] += 27
	fromLegacy, err := SignatureFromBytes(shifted)
	require.NoError(t, err)
	assert.Equal(t, fromZeroOne, fromLegacy)

	parsed, err := ParseSignature(fromZeroOne.Hex())
	require.NoError(t, err)
	assert.Equal(t, fromZeroOne, parsed)
	assert.Equal(t, shifted, parsed.Bytes())
}

func TestSignatureRejectsMalformed(t *testing.T) {
	_, err := ParseSignature("0x1234")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseSignature("not hex")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	bad := make([]byte, 65)
	bad[64] = 5
	_, err = SignatureFromBytes(bad)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOrderHashCoversEveryField(t *testing.T) {
	b := newTestBuilder(t)
	draft, err := b.Build(testIntent(SideSell))
	require.NoError(t, err)
	base := OrderHash(draft.Record)

	mutations := map[string]func(r *Record){
		"taker":       func(r *Record) { r.Taker[19] = 1 },
		"side":        func(r *Record) { r.SaleSide = SideBuy },
		"payment":     func(r *Record) { r.PaymentToken[0] = 1 },
		"calldata":    func(r *Record) { r.CallData[99] = 8 },
		"pattern":     func(r *Record) { r.ReplacementPattern[0] = 0xff },
		"end price":   func(r *Record) { r.EndPrice = (*hexutil.Big)(big.NewInt(2)) },
		"listing":     func(r *Record) { r.ListingTime = 1 },
		"expiration":  func(r *Record) { r.ExpirationTime++ },
		"salt":        func(r *Record) { r.Salt[0] ^= 0xff },
		"static data": func(r *Record) { r.StaticExtra = []byte{1} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			raw, err := draft.Record.Encode()
			require.NoError(t, err)
			rec, err := DecodeRecord(raw)
			require.NoError(t, err)

			mutate(rec)
			assert.NotEqual(t, base, OrderHash(rec))
		})
	}
}
