package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("DB_URL", "postgres://localhost/market?sslmode=disable")
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	t.Setenv("KAFKA_TOPIC", "order-events")
	t.Setenv("EXCHANGE_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000e0001")
	t.Setenv("PROXY_REGISTRY_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000E0004")
	t.Setenv("PAYMENT_TOKEN_ADDRESS", "0x00000000000000000000000000000000000e0002")
}

func TestNewConfigDefaults(t *testing.T) {
	setRequired(t)
	for _, key := range []string{"API_PORT", "API_REQUEST_TIMEOUT", "CHAIN_CALL_TIMEOUT", "CHAIN_MAX_ATTEMPTS", "CHAIN_BACKOFF_INITIAL", "CHAIN_BACKOFF_MAX", "OUTBOX_POLL_INTERVAL", "OUTBOX_CLAIM_LEASE"} {
		t.Setenv(key, "")
	}

	cfg := NewConfig()
	assert.Equal(t, "order-events", cfg.KafkaTopic)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000e0004"), cfg.ProxyRegistryAddress)
	assert.Equal(t, 10*time.Second, cfg.APIRequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.APIRequestTimeout)
	assert.Equal(t, time.Second, cfg.ChainCallTimeout)
	assert.Equal(t, 3, cfg.ChainMaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.ChainBackoffInitial)
	assert.Equal(t, time.Second, cfg.ChainBackoffMax)

	// worst case for one read stays inside the request deadline
	worst := time.Duration(cfg.ChainMaxAttempts)*cfg.ChainCallTimeout + time.Duration(cfg.ChainMaxAttempts-1)*cfg.ChainBackoffMax
	assert.Less(t, worst, cfg.APIRequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, time.Minute, cfg.OutboxClaimLease)
}

func TestNewConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("API_REQUEST_TIMEOUT", "5s")
	t.Setenv("CHAIN_CALL_TIMEOUT", "1s")
	t.Setenv("CHAIN_MAX_ATTEMPTS", "6")
	t.Setenv("OUTBOX_POLL_INTERVAL", "not-a-duration")

	cfg := NewConfig()
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, 5*time.Second, cfg.APIRequestTimeout)
	assert.Equal(t, time.Second, cfg.ChainCallTimeout)
	assert.Equal(t, 6, cfg.ChainMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.OutboxPollInterval)
}
