package api

import (
	"time"

	"nftmarket/apps/market/internal/order"
)

// CreateOrderRequest is the body of POST /api/orders/sell and /api/orders/offer
type CreateOrderRequest struct {
	Maker           string `json:"maker" validate:"required,eth_addr"`
	ContractAddress string `json:"contract_address" validate:"required,eth_addr"`
	TokenID         string `json:"token_id" validate:"required"`
	Price           string `json:"price" validate:"required"`
	ExpirationTime  uint64 `json:"expiration_time" validate:"required,gt=0"`
}

// SignatureInput accepts either a 65-byte hex signature or its components.
type SignatureInput struct {
	Signature string `json:"signature,omitempty" validate:"required_without=R,omitempty,hexadecimal"`
	R         string `json:"r,omitempty" validate:"required_without=Signature,omitempty,len=66,hexadecimal"`
	S         string `json:"s,omitempty" validate:"required_with=R,omitempty,len=66,hexadecimal"`
	V         *uint8 `json:"v,omitempty" validate:"required_with=R"`
}

// VerifyOrderRequest is the body of POST /api/orders/{id}/verify
type VerifyOrderRequest struct {
	SignatureInput
}

// CounterOrderRequest is the body of POST /api/orders/{id}/counter
type CounterOrderRequest struct {
	Maker string `json:"maker" validate:"required,eth_addr"`
}

// SignatureCheckRequest is the body of POST /api/orders/signature/check
type SignatureCheckRequest struct {
	Order *order.Record `json:"order" validate:"required"`
	SignatureInput
}

// OrderResponse represents the API response for a stored order
type OrderResponse struct {
	ID              int64         `json:"id"`
	IsSell          bool          `json:"is_sell"`
	Maker           string        `json:"maker"`
	ContractAddress string        `json:"contract_address"`
	TokenID         string        `json:"token_id"`
	Price           string        `json:"price"`
	PriceDecimal    string        `json:"price_decimal"`
	ExpirationTime  int64         `json:"expiration_time"`
	Verified        bool          `json:"verified"`
	Signature       *string       `json:"signature,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Order           *order.Record `json:"order"`
	OrderHash       string        `json:"order_hash"`
}

// OrderBookResponse lists the live orders on one token
type OrderBookResponse struct {
	ContractAddress string          `json:"contract_address"`
	TokenID         string          `json:"token_id"`
	Orders          []OrderResponse `json:"orders"`
}

// CounterOrderResponse is an unsigned counter-order with the digest to sign
type CounterOrderResponse struct {
	Order         *order.Record `json:"order"`
	OrderHash     string        `json:"order_hash"`
	SigningDigest string        `json:"signing_digest"`
}

// SignatureCheckResponse reports a successful signature check
type SignatureCheckResponse struct {
	Valid     bool   `json:"valid"`
	OrderHash string `json:"order_hash"`
}

// ProxyResponse is the registry entry for an address
type ProxyResponse struct {
	Address    string `json:"address"`
	Proxy      string `json:"proxy"`
	Registered bool   `json:"registered"`
}

// ErrorResponse represents the API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
