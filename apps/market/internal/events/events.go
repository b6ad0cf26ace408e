package events

import (
	"encoding/json"
	"time"
)

// OrderEvent is the message published for every order lifecycle change.
type OrderEvent struct {
	EventID         string          `json:"event_id"`
	EventType       string          `json:"event_type"`
	OrderID         int64           `json:"order_id"`
	ContractAddress string          `json:"contract_address"`
	TokenID         string          `json:"token_id"`
	Maker           string          `json:"maker"`
	IsSell          bool            `json:"is_sell"`
	Price           string          `json:"price"`
	EventData       json.RawMessage `json:"event_data"`
	CreatedAt       time.Time       `json:"created_at"`
	Timestamp       time.Time       `json:"timestamp"`
}
