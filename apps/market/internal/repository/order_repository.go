package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/model"
	"nftmarket/apps/market/internal/order"
)

const orderColumns = `id, raw, is_sell, signature, maker, price, contract_address, token_id, expiration_time, verified, created_at`

// OrderRepository is the PostgreSQL order.Store. Every insert and every
// verification also writes an outbox row in the same transaction.
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o         model.Order
		signature sql.NullString
	)
	if err := row.Scan(&o.ID, &o.Raw, &o.IsSell, &signature, &o.Maker, &o.Price, &o.ContractAddress,
		&o.TokenID, &o.ExpirationTime, &o.Verified, &o.CreatedAt); err != nil {
		return nil, err
	}
	if signature.Valid {
		o.Signature = &signature.String
	}
	return &o, nil
}

func (r *OrderRepository) SaveOrder(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	if o.ID == 0 {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (raw, is_sell, maker, price, contract_address, token_id, expiration_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, verified, created_at
		`, o.Raw, o.IsSell, o.Maker, o.Price, o.ContractAddress, o.TokenID, o.ExpirationTime).Scan(&o.ID, &o.Verified, &o.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		o.Signature = nil
		if err := insertOutboxEvent(ctx, tx, model.EventTypeOrderCreated, o); err != nil {
			return err
		}
	} else {
		// verified and signature are left alone; only MarkVerified sets them
		var signature sql.NullString
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (id, raw, is_sell, maker, price, contract_address, token_id, expiration_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				raw = EXCLUDED.raw,
				is_sell = EXCLUDED.is_sell,
				maker = EXCLUDED.maker,
				price = EXCLUDED.price,
				contract_address = EXCLUDED.contract_address,
				token_id = EXCLUDED.token_id,
				expiration_time = EXCLUDED.expiration_time
			RETURNING verified, signature, created_at
		`, o.ID, o.Raw, o.IsSell, o.Maker, o.Price, o.ContractAddress, o.TokenID, o.ExpirationTime).Scan(&o.Verified, &signature, &o.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert order: %w", err)
		}
		o.Signature = nil
		if signature.Valid {
			o.Signature = &signature.String
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	r.logger.Info("Upserted order",
		zap.Int64("order_id", o.ID),
		zap.Bool("is_sell", o.IsSell),
		zap.String("maker", o.Maker),
		zap.String("contract_address", o.ContractAddress),
		zap.String("token_id", o.TokenID))
	return nil
}

func (r *OrderRepository) FindOrder(ctx context.Context, filter order.OrderFilter) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	args := []interface{}{filter.ID}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		query += fmt.Sprintf(" AND verified = $%d", len(args))
	}

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order by ID: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context, q order.OrderBookQuery) ([]model.Order, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders
		WHERE contract_address = $1 AND token_id = $2 AND is_sell = $3
		AND verified = TRUE AND expiration_time >= $4`)
	args := []interface{}{q.ContractAddress, q.TokenID, q.IsSell, q.Now}
	if q.Maker != "" {
		args = append(args, q.Maker)
		fmt.Fprintf(&sb, " AND maker = $%d", len(args))
	}
	// padded hex sorts numerically under byte-wise collation
	if q.IsSell {
		sb.WriteString(` ORDER BY price COLLATE "C" ASC, id ASC`)
	} else {
		sb.WriteString(` ORDER BY price COLLATE "C" DESC, id ASC`)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) MarkVerified(ctx context.Context, id int64, signature string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	o, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders
		SET verified = TRUE, signature = $1
		WHERE id = $2 AND verified = FALSE
		RETURNING `+orderColumns, signature, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to mark order verified: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, model.EventTypeOrderVerified, o); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit verification: %w", err)
	}

	r.logger.Info("Marked order verified", zap.Int64("order_id", id), zap.String("maker", o.Maker))
	return true, nil
}

type outboxPayload struct {
	Order          json.RawMessage `json:"order"`
	Signature      *string         `json:"signature,omitempty"`
	ExpirationTime int64           `json:"expiration_time"`
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, o *model.Order) error {
	blob, err := json.Marshal(outboxPayload{
		Order:          json.RawMessage(o.Raw),
		Signature:      o.Signature,
		ExpirationTime: o.ExpirationTime,
	})
	if err != nil {
		return fmt.Errorf("failed to encode outbox event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_outbox (event_id, event_type, status, order_id, contract_address, token_id, maker, is_sell, price, event_blob)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.New().String(), eventType, model.OutboxStatusUnsent, o.ID, o.ContractAddress, o.TokenID, o.Maker, o.IsSell, o.Price, blob)
	if err != nil {
		return fmt.Errorf("failed to store outbox event: %w", err)
	}
	return nil
}

var _ order.Store = (*OrderRepository)(nil)
