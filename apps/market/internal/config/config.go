package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Config struct {
	RpcURL            string
	DbURL             string
	KafkaBroker       string
	KafkaTopic        string
	APIPort           int
	APIRequestTimeout time.Duration

	ExchangeAddress      common.Address
	ProxyRegistryAddress common.Address
	PaymentTokenAddress  common.Address

	ChainCallTimeout    time.Duration
	ChainMaxAttempts    int
	ChainBackoffInitial time.Duration
	ChainBackoffMax     time.Duration

	OutboxPollInterval time.Duration
	OutboxClaimLease   time.Duration
}

// NewConfig loads configuration from environment variables
func NewConfig() *Config {
	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	return &Config{
		RpcURL:               getEnvOrFatal("RPC_URL"),
		DbURL:                getEnvOrFatal("DB_URL"),
		KafkaBroker:          getEnvOrFatal("KAFKA_BROKER"),
		KafkaTopic:           getEnvOrFatal("KAFKA_TOPIC"),
		APIPort:              getEnvInt("API_PORT", 8080),
		APIRequestTimeout:    getEnvDuration("API_REQUEST_TIMEOUT", 10*time.Second),
		ExchangeAddress:      getEnvAddressOrFatal("EXCHANGE_CONTRACT_ADDRESS"),
		ProxyRegistryAddress: getEnvAddressOrFatal("PROXY_REGISTRY_CONTRACT_ADDRESS"),
		PaymentTokenAddress:  getEnvAddressOrFatal("PAYMENT_TOKEN_ADDRESS"),
		ChainCallTimeout:     getEnvDuration("CHAIN_CALL_TIMEOUT", 2*time.Second),
		ChainMaxAttempts:     getEnvInt("CHAIN_MAX_ATTEMPTS", 3),
		ChainBackoffInitial:  getEnvDuration("CHAIN_BACKOFF_INITIAL", 200*time.Millisecond),
		ChainBackoffMax:      getEnvDuration("CHAIN_BACKOFF_MAX", time.Second),
		OutboxPollInterval:   getEnvDuration("OUTBOX_POLL_INTERVAL", 3*time.Second),
		OutboxClaimLease:     getEnvDuration("OUTBOX_CLAIM_LEASE", time.Minute),
	}
}

func getEnvOrFatal(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	log.Fatalf("Warning: environment variable %s not set", key)

	return ""
}

func getEnvAddressOrFatal(key string) common.Address {
	value := getEnvOrFatal(key)
	if !common.IsHexAddress(value) {
		log.Fatalf("environment variable %s is not an address: %q", key, value)
	}
	return common.HexToAddress(value)
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
