package order

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

// ParseUint256 parses a decimal or 0x-prefixed hex string as an unsigned
// integer of at most 256 bits.
func ParseUint256(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	n, ok := math.ParseBig256(s)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is not a uint256", ErrInvalidAmount, s)
	}
	return n, nil
}

// PadUint256 encodes n as a 0x-prefixed, lowercase, 64-digit hex string so that
// string order equals numeric order.
func PadUint256(n *big.Int) string {
	return hexutil.Encode(math.PaddedBigBytes(n, 32))
}

// NormalizeUint256 parses s and returns its padded form.
func NormalizeUint256(s string) (string, error) {
	n, err := ParseUint256(s)
	if err != nil {
		return "", err
	}
	return PadUint256(n), nil
}

// ParseAddress accepts a 20-byte hex address with or without the 0x prefix,
// in any letter case.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	return common.HexToAddress(s), nil
}

// NormalizeAddress is the stored form of an address: lowercase, 0x-prefixed.
func NormalizeAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}
