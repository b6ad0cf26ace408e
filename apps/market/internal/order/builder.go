package order

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransferABI is the ERC721 transfer the settlement contract forwards to the
// target through the maker's proxy.
const TransferABI = `[{
	"inputs": [
		{"internalType": "address", "name": "from", "type": "address"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
	],
	"name": "safeTransferFrom",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

const (
	selectorLen = 4
	wordLen     = 32
)

// transferSlot indexes the 32-byte argument words of safeTransferFrom.
type transferSlot int

const (
	slotFrom transferSlot = iota
	slotTo
	slotTokenID
)

// Intent is what a maker asks for when listing or bidding.
type Intent struct {
	Maker          string
	Contract       string
	TokenID        string
	Price          string
	ExpirationTime uint64
	Side           Side
}

// Draft is a built, not yet stored order: the canonical record plus the
// indexed fields the store sorts and filters on.
type Draft struct {
	Record          *Record
	Maker           string
	ContractAddress string
	TokenID         string
	Price           string
}

// Builder produces canonical order records for one settlement contract.
type Builder struct {
	exchange     common.Address
	paymentToken common.Address
	transferABI  abi.ABI
	rand         io.Reader
}

// NewBuilder creates a builder for orders settled by exchange. Offers are
// priced in paymentToken; sell orders in the native currency.
func NewBuilder(exchange, paymentToken common.Address) (*Builder, error) {
	parsedABI, err := abi.JSON(strings.NewReader(TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse transfer ABI: %w", err)
	}

	return &Builder{
		exchange:     exchange,
		paymentToken: paymentToken,
		transferABI:  parsedABI,
		rand:         rand.Reader,
	}, nil
}

// Exchange returns the settlement contract address the builder targets.
func (b *Builder) Exchange() common.Address {
	return b.exchange
}

// Build turns an intent into a draft order.
func (b *Builder) Build(intent Intent) (*Draft, error) {
	maker, err := ParseAddress(intent.Maker)
	if err != nil {
		return nil, fmt.Errorf("maker: %w", err)
	}
	target, err := ParseAddress(intent.Contract)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}
	tokenID, err := ParseUint256(intent.TokenID)
	if err != nil {
		return nil, fmt.Errorf("token id: %w", err)
	}
	price, err := ParseUint256(intent.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}

	var (
		from, to     common.Address
		wildcard     transferSlot
		paymentToken common.Address
	)
	switch intent.Side {
	case SideSell:
		// buyer fills in the recipient; paid in native currency
		from, wildcard = maker, slotTo
	case SideBuy:
		// seller fills in the sender; paid in the settlement currency
		to, wildcard = maker, slotFrom
		paymentToken = b.paymentToken
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSaleSide, intent.Side)
	}

	record, err := b.record(maker, intent.Side, target, paymentToken, from, to, tokenID, wildcard, price, 0, intent.ExpirationTime)
	if err != nil {
		return nil, err
	}

	return &Draft{
		Record:          record,
		Maker:           NormalizeAddress(maker),
		ContractAddress: NormalizeAddress(target),
		TokenID:         PadUint256(tokenID),
		Price:           PadUint256(price),
	}, nil
}

// Counter derives the complementary order a counterparty signs to fill
// original. The counterparty's address goes into the slot original left as a
// wildcard; everything the two orders must agree on is copied.
func (b *Builder) Counter(original *Record, counterparty common.Address, tokenID *big.Int) (*Record, error) {
	if original.SaleKind != SaleKindFixedPrice {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSaleKind, original.SaleKind)
	}

	var (
		side     Side
		from, to common.Address
		wildcard transferSlot
	)
	switch original.SaleSide {
	case SideSell:
		side, to, wildcard = SideBuy, counterparty, slotFrom
	case SideBuy:
		side, from, wildcard = SideSell, counterparty, slotTo
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSaleSide, original.SaleSide)
	}

	record, err := b.record(counterparty, side, original.Target, original.PaymentToken, from, to, tokenID, wildcard, original.Price(), original.ListingTime, original.ExpirationTime)
	if err != nil {
		return nil, err
	}
	record.Exchange = original.Exchange
	record.EndPrice = copyBig(original.EndPrice)
	return record, nil
}

func (b *Builder) record(
	maker common.Address,
	side Side,
	target, paymentToken common.Address,
	from, to common.Address,
	tokenID *big.Int,
	wildcard transferSlot,
	price *big.Int,
	listingTime, expirationTime uint64,
) (*Record, error) {
	callData, pattern, err := b.transferTemplate(from, to, tokenID, wildcard)
	if err != nil {
		return nil, err
	}

	salt, err := b.newSalt()
	if err != nil {
		return nil, err
	}

	return &Record{
		Exchange:           b.exchange,
		Maker:              maker,
		Taker:              common.Address{},
		SaleSide:           side,
		SaleKind:           SaleKindFixedPrice,
		Target:             target,
		PaymentToken:       paymentToken,
		CallData:           callData,
		ReplacementPattern: pattern,
		StaticTarget:       common.Address{},
		StaticExtra:        hexutil.Bytes{},
		BasePrice:          (*hexutil.Big)(new(big.Int).Set(price)),
		EndPrice:           (*hexutil.Big)(new(big.Int).Set(price)),
		ListingTime:        listingTime,
		ExpirationTime:     expirationTime,
		Salt:               salt,
	}, nil
}

// transferTemplate encodes safeTransferFrom(from, to, tokenId) and the
// replacement pattern marking the wildcard argument.
func (b *Builder) transferTemplate(from, to common.Address, tokenID *big.Int, wildcard transferSlot) ([]byte, []byte, error) {
	callData, err := b.transferABI.Pack("safeTransferFrom", from, to, tokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack safeTransferFrom: %w", err)
	}
	return callData, replacementPattern(len(callData), wildcard), nil
}

// replacementPattern returns a mask over the transfer calldata: 0x00 bytes must
// match exactly on-chain, 0xff bytes may be replaced by the counterparty. The
// selector and the token id are always fixed.
func replacementPattern(callDataLen int, wildcard transferSlot) []byte {
	pattern := make([]byte, selectorLen+3*wordLen)
	if wildcard != slotTokenID {
		start := selectorLen + int(wildcard)*wordLen
		for i := start; i < start+wordLen; i++ {
			pattern[i] = 0xff
		}
	}
	if len(pattern) != callDataLen {
		panic(fmt.Sprintf("replacement pattern is %d bytes but calldata is %d", len(pattern), callDataLen))
	}
	return pattern
}

func (b *Builder) newSalt() (common.Hash, error) {
	var salt common.Hash
	if _, err := io.ReadFull(b.rand, salt[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func copyBig(v *hexutil.Big) *hexutil.Big {
	if v == nil {
		return nil
	}
	return (*hexutil.Big)(new(big.Int).Set(v.ToInt()))
}

var zeroAddress common.Address

// TransferTokenID reads the token id out of safeTransferFrom calldata.
func TransferTokenID(callData []byte) (*big.Int, error) {
	if len(callData) != selectorLen+3*wordLen {
		return nil, fmt.Errorf("unexpected transfer calldata length %d", len(callData))
	}
	start := selectorLen + int(slotTokenID)*wordLen
	return new(big.Int).SetBytes(callData[start : start+wordLen]), nil
}
