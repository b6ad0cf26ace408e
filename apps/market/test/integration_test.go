package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftmarket/apps/market/internal/api"
	"nftmarket/apps/market/internal/order"
)

// These run against a live server, e.g. MARKET_BASE_URL=http://localhost:8080

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	reqBody, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(reqBody))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	baseURL := requireEnv(t, "MARKET_BASE_URL")

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetMissingOrder(t *testing.T) {
	baseURL := requireEnv(t, "MARKET_BASE_URL")

	resp, err := http.Get(fmt.Sprintf("%s/api/orders/%d", baseURL, int64(1)<<62))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errorResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errorResp))
	assert.Equal(t, "order_not_found", errorResp.Error)
}

func TestUnfundedOfferIsRejected(t *testing.T) {
	baseURL := requireEnv(t, "MARKET_BASE_URL")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	bidder := crypto.PubkeyToAddress(key.PublicKey)

	resp := postJSON(t, baseURL+"/api/orders/offer", api.CreateOrderRequest{
		Maker:           bidder.Hex(),
		ContractAddress: BAYCAddress,
		TokenID:         "1",
		Price:           "1000000000000000000",
		ExpirationTime:  uint64(time.Now().Add(time.Hour).Unix()),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.False(t, created.Verified)
	require.NotNil(t, created.Order)

	sig, err := order.Sign(created.Order, key)
	require.NoError(t, err)

	verifyResp := postJSON(t, fmt.Sprintf("%s/api/orders/%d/verify", baseURL, created.ID), api.VerifyOrderRequest{
		SignatureInput: api.SignatureInput{Signature: sig.Hex()},
	})
	defer verifyResp.Body.Close()

	// a fresh key has no allowance for the settlement contract
	assert.Equal(t, http.StatusUnprocessableEntity, verifyResp.StatusCode)
	var errorResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(verifyResp.Body).Decode(&errorResp))
	assert.Equal(t, "insufficient_allowance", errorResp.Error)
}
