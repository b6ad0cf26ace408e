package test

import (
	"log"
	"os"
	"testing"

	"github.com/joho/godotenv"
)

const (
	// Ethereum mainnet contracts used by the smoke tests
	BAYCAddress          = "0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D"
	WyvernRegistry       = "0xa5409ec958C83C3f309868babACA7c86DCB077c1"
	WyvernExchange       = "0x7f268357A8c2552623316e2562D90e642bB538E5"
	WETHAddress          = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	NonexistentBAYCToken = 100000
)

// loadEnvConfig loads environment variables from .env file if it exists
func loadEnvConfig() {
	if err := godotenv.Load(".env"); err == nil {
		log.Printf("Loaded environment variables from .env")
	}
}

// requireEnv returns the value of key or skips the test when it is unset.
func requireEnv(t *testing.T, key string) string {
	t.Helper()
	loadEnvConfig()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}
