package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nftmarket/apps/market/internal/model"
)

const defaultClaimLease = time.Minute

type OutboxRepository struct {
	db         *sql.DB
	claimLease time.Duration
	logger     *zap.Logger
}

// NewOutboxRepository creates an OutboxRepository. Events claimed for
// processing longer than claimLease ago are handed out again.
func NewOutboxRepository(db *sql.DB, claimLease time.Duration, logger *zap.Logger) *OutboxRepository {
	if claimLease <= 0 {
		claimLease = defaultClaimLease
	}
	return &OutboxRepository{db: db, claimLease: claimLease, logger: logger}
}

// GetUnsentEventsForProcessing claims up to limit events that are unsent, or
// whose previous claim has outlived the lease (the publisher died or could not
// record the result). A reclaimed event may be published twice.
func (r *OutboxRepository) GetUnsentEventsForProcessing(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	// Use a transaction to ensure atomicity
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	rows, err := tx.QueryContext(ctx, `
		SELECT event_id, event_type, status, order_id, contract_address, token_id, maker, is_sell, price, event_blob, created_at
		FROM event_outbox
		WHERE status = 'unsent'
		   OR (status = 'processing' AND claimed_at < NOW() - ($2 * INTERVAL '1 second'))
		ORDER BY created_at, order_id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit, int64(r.claimLease/time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to select unsent events: %w", err)
	}
	defer rows.Close()

	var events []model.OutboxEvent
	for rows.Next() {
		var event model.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.EventType, &event.Status, &event.OrderID, &event.ContractAddress,
			&event.TokenID, &event.Maker, &event.IsSell, &event.Price, &event.EventBlob, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, event := range events {
		if event.Status == model.OutboxStatusProcessing {
			r.logger.Warn("Reclaiming outbox event past its lease", zap.String("event_id", event.EventID))
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE event_outbox
			SET status = 'processing', claimed_at = NOW()
			WHERE event_id = $1
		`, event.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim outbox event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *OutboxRepository) MarkEventAsSent(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE event_outbox
		SET status = 'sent', claimed_at = NULL
		WHERE event_id = $1
	`, eventID)
	return err
}

func (r *OutboxRepository) MarkEventAsFailed(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE event_outbox
		SET status = 'unsent', claimed_at = NULL
		WHERE event_id = $1 AND status = 'processing'
	`, eventID)
	return err
}
