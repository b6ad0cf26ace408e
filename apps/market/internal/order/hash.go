package order

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is a secp256k1 signature split the way the settlement contract
// takes it. V is kept in its 27/28 form.
type Signature struct {
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
	V uint8       `json:"v"`
}

// SignatureFromBytes accepts a 65-byte r||s||v signature with v either 0/1
// or 27/28.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != crypto.SignatureLength {
		return Signature{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(b))
	}
	v := b[crypto.RecoveryIDOffset]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return Signature{}, fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, b[crypto.RecoveryIDOffset])
	}
	return Signature{
		R: common.BytesToHash(b[:32]),
		S: common.BytesToHash(b[32:64]),
		V: v,
	}, nil
}

// ParseSignature decodes a 0x-prefixed hex signature.
func ParseSignature(s string) (Signature, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return SignatureFromBytes(raw)
}

// Bytes returns r||s||v with v in 27/28 form.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, crypto.SignatureLength)
	out = append(out, s.R.Bytes()...)
	out = append(out, s.S.Bytes()...)
	return append(out, s.V)
}

// Hex is the stored form of the signature.
func (s Signature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// OrderHash is keccak256 over the tightly packed order fields, in tuple order.
// It matches the hash the settlement contract computes for the same record.
func OrderHash(r *Record) common.Hash {
	var (
		buf  []byte
		word [8]byte
	)
	buf = append(buf, r.Exchange.Bytes()...)
	buf = append(buf, r.Maker.Bytes()...)
	buf = append(buf, r.Taker.Bytes()...)
	buf = append(buf, byte(r.SaleSide), byte(r.SaleKind))
	buf = append(buf, r.Target.Bytes()...)
	buf = append(buf, r.PaymentToken.Bytes()...)
	buf = append(buf, r.CallData...)
	buf = append(buf, r.ReplacementPattern...)
	buf = append(buf, r.StaticTarget.Bytes()...)
	buf = append(buf, r.StaticExtra...)
	buf = append(buf, math.PaddedBigBytes(bigOrZero(r.BasePrice), 32)...)
	buf = append(buf, math.PaddedBigBytes(bigOrZero(r.EndPrice), 32)...)
	buf = append(buf, make([]byte, 24)...)
	binary.BigEndian.PutUint64(word[:], r.ListingTime)
	buf = append(buf, word[:]...)
	buf = append(buf, make([]byte, 24)...)
	binary.BigEndian.PutUint64(word[:], r.ExpirationTime)
	buf = append(buf, word[:]...)
	buf = append(buf, r.Salt.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

// SigningDigest is the message a maker signs: the personal-message (EIP-191)
// hash of the order hash.
func SigningDigest(r *Record) []byte {
	return accounts.TextHash(OrderHash(r).Bytes())
}

// RecoverSigner returns the address that produced sig over the record's
// signing digest.
func RecoverSigner(r *Record, sig Signature) (common.Address, error) {
	raw := sig.Bytes()
	raw[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(SigningDigest(r), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces the maker signature for r.
func Sign(r *Record, key *ecdsa.PrivateKey) (Signature, error) {
	raw, err := crypto.Sign(SigningDigest(r), key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign order: %w", err)
	}
	return SignatureFromBytes(raw)
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToInt()
}
