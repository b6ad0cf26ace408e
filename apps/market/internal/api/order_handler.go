package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/model"
	"nftmarket/apps/market/internal/order"
)

// prices are shown in whole units of an 18-decimal currency
const priceDecimals = 18

// OrderHandler handles order-related API endpoints
type OrderHandler struct {
	service  *order.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(service *order.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateSellOrder handles POST /api/orders/sell
func (h *OrderHandler) CreateSellOrder(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, h.service.CreateSellOrder)
}

// CreateOfferOrder handles POST /api/orders/offer
func (h *OrderHandler) CreateOfferOrder(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, h.service.CreateOfferOrder)
}

type createFunc func(ctx context.Context, intent order.Intent) (*model.Order, *order.Record, error)

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request, create createFunc) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, _, err := create(r.Context(), order.Intent{
		Maker:          req.Maker,
		Contract:       req.ContractAddress,
		TokenID:        req.TokenID,
		Price:          req.Price,
		ExpirationTime: req.ExpirationTime,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, h.toOrderResponse(o))
}

// GetOrder handles GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, h.toOrderResponse(o))
}

// VerifyOrder handles POST /api/orders/{id}/verify
func (h *OrderHandler) VerifyOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req VerifyOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	sig, err := req.SignatureInput.parse()
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	o, err := h.service.VerifyOrder(r.Context(), id, sig)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, h.toOrderResponse(o))
}

// GenerateCounterOrder handles POST /api/orders/{id}/counter
func (h *OrderHandler) GenerateCounterOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req CounterOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.service.GenerateCounterOrder(r.Context(), id, req.Maker)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, CounterOrderResponse{
		Order:         rec,
		OrderHash:     order.OrderHash(rec).Hex(),
		SigningDigest: hexutil.Encode(order.SigningDigest(rec)),
	})
}

// CheckSignature handles POST /api/orders/signature/check
func (h *OrderHandler) CheckSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	sig, err := req.SignatureInput.parse()
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	if err := h.service.CheckSignature(r.Context(), req.Order, sig); err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, SignatureCheckResponse{
		Valid:     true,
		OrderHash: order.OrderHash(req.Order).Hex(),
	})
}

// ListSellOrders handles GET /api/orders/sell/{contract}/{token_id}
func (h *OrderHandler) ListSellOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orders, err := h.service.ListSellOrders(r.Context(), vars["contract"], vars["token_id"])
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeOrderBook(w, orders, vars["contract"], vars["token_id"])
}

// ListOfferOrders handles GET /api/orders/offer/{contract}/{token_id}
func (h *OrderHandler) ListOfferOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orders, err := h.service.ListOfferOrders(r.Context(), vars["contract"], vars["token_id"])
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeOrderBook(w, orders, vars["contract"], vars["token_id"])
}

// GetProxy handles GET /api/orders/proxy/{address}
func (h *OrderHandler) GetProxy(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	proxy, err := h.service.ProxyFor(r.Context(), address)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, ProxyResponse{
		Address:    strings.ToLower(address),
		Proxy:      order.NormalizeAddress(proxy),
		Registered: proxy != (common.Address{}),
	})
}

func (h *OrderHandler) writeOrderBook(w http.ResponseWriter, orders []model.Order, contract, tokenID string) {
	response := OrderBookResponse{
		ContractAddress: strings.ToLower(contract),
		Orders:          make([]OrderResponse, 0, len(orders)),
	}
	if padded, err := order.NormalizeUint256(tokenID); err == nil {
		response.TokenID = padded
	}
	for i := range orders {
		response.Orders = append(response.Orders, h.toOrderResponse(&orders[i]))
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

func (h *OrderHandler) toOrderResponse(o *model.Order) OrderResponse {
	response := OrderResponse{
		ID:              o.ID,
		IsSell:          o.IsSell,
		Maker:           o.Maker,
		ContractAddress: o.ContractAddress,
		TokenID:         o.TokenID,
		Price:           o.Price,
		ExpirationTime:  o.ExpirationTime,
		Verified:        o.Verified,
		Signature:       o.Signature,
		CreatedAt:       o.CreatedAt,
	}
	if price, err := order.ParseUint256(o.Price); err == nil {
		response.PriceDecimal = decimal.NewFromBigInt(price, -priceDecimals).String()
	}
	if rec, err := order.DecodeRecord(o.Raw); err == nil {
		response.Order = rec
		response.OrderHash = order.OrderHash(rec).Hex()
	} else {
		h.logger.Error("Stored order record is unreadable", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	return response
}

func (in SignatureInput) parse() (order.Signature, error) {
	if in.Signature != "" {
		return order.ParseSignature(in.Signature)
	}
	raw := make([]byte, 0, 65)
	raw = append(raw, common.FromHex(in.R)...)
	raw = append(raw, common.FromHex(in.S)...)
	raw = append(raw, *in.V)
	return order.SignatureFromBytes(raw)
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_order_id", "Order ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// decode reads and validates a JSON body, writing the 400 itself on failure.
func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fields := make([]string, 0, len(validationErrors))
			for _, e := range validationErrors {
				fields = append(fields, fmt.Sprintf("%s failed on tag '%s'", e.Field(), e.Tag()))
			}
			h.writeErrorResponse(w, http.StatusBadRequest, "validation_failed", strings.Join(fields, "; "))
			return false
		}
		h.writeErrorResponse(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrChainReadTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, order.ErrMalformedAddress), errors.Is(err, order.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrOrderNotPending):
		return http.StatusConflict
	case errors.Is(err, order.ErrNoProxyRegistered),
		errors.Is(err, order.ErrNotApproved),
		errors.Is(err, order.ErrNotOwner),
		errors.Is(err, order.ErrInsufficientAllowance),
		errors.Is(err, order.ErrInsufficientBalance),
		errors.Is(err, order.ErrInvalidSignature),
		errors.Is(err, order.ErrOnChainValidationFailed),
		errors.Is(err, order.ErrOrderNotVerified),
		errors.Is(err, order.ErrOrderExpired),
		errors.Is(err, order.ErrUnsupportedSaleKind),
		errors.Is(err, order.ErrUnsupportedSaleSide):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrChainReadFatal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrderHandler) writeOrderError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Order request failed", zap.Error(err))
		h.writeErrorResponse(w, status, order.Kind(err), "Internal server error")
		return
	}
	if order.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	h.writeErrorResponse(w, status, order.Kind(err), err.Error())
}

// writeJSONResponse writes a JSON response with the specified status code
func (h *OrderHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response
func (h *OrderHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	h.writeJSONResponse(w, statusCode, errorResponse)
}
