package model

import (
	"time"
)

type Order struct {
	ID              int64     `db:"id"`
	Raw             string    `db:"raw"` // canonical order record, JSON
	IsSell          bool      `db:"is_sell"`
	Signature       *string   `db:"signature"` // nullable until verified
	Maker           string    `db:"maker"`
	Price           string    `db:"price"` // 0x-prefixed, zero-padded to 32 bytes
	ContractAddress string    `db:"contract_address"`
	TokenID         string    `db:"token_id"` // 0x-prefixed, zero-padded to 32 bytes
	ExpirationTime  int64     `db:"expiration_time"`
	Verified        bool      `db:"verified"`
	CreatedAt       time.Time `db:"created_at"`
}
