package model

import (
	"encoding/json"
	"time"
)

const (
	EventTypeOrderCreated  = "order_created"
	EventTypeOrderVerified = "order_verified"

	OutboxStatusUnsent     = "unsent"
	OutboxStatusProcessing = "processing"
	OutboxStatusSent       = "sent"
)

type OutboxEvent struct {
	EventID         string          `db:"event_id"`
	EventType       string          `db:"event_type"`
	Status          string          `db:"status"`
	OrderID         int64           `db:"order_id"`
	ContractAddress string          `db:"contract_address"`
	TokenID         string          `db:"token_id"`
	Maker           string          `db:"maker"`
	IsSell          bool            `db:"is_sell"`
	Price           string          `db:"price"`
	EventBlob       json.RawMessage `db:"event_blob"`
	CreatedAt       time.Time       `db:"created_at"`
}
