package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/jmoiron/sqlx"
)

const (
	transactionTypeSale = "SALE"
	paymentStatusPaid   = "PAID"
)

type salesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) ListConfirmedSales(ctx context.Context, itemID int64, from, to time.Time) ([]domain.SaleEvent, error) {
	query := `
		SELECT id, item_id, quantity, timestamp, TRUE AS payment_confirmed
		FROM transactions
		WHERE item_id = $1
		  AND transaction_type = $2
		  AND payment_status = $3
		  AND timestamp >= $4
		  AND timestamp <= $5
		ORDER BY timestamp
	`

	var events []domain.SaleEvent
	if err := r.db.SelectContext(ctx, &events, query, itemID, transactionTypeSale, paymentStatusPaid, from, to); err != nil {
		return nil, fmt.Errorf("failed to list sales for item %d: %w", itemID, err)
	}
	return events, nil
}

// InsertSales appends events as SALE transactions in a single transaction.
// Unconfirmed events are stored as PENDING so they stay out of training.
func (r *salesRepository) InsertSales(ctx context.Context, events []domain.SaleEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO transactions (
				item_id, transaction_type, quantity, payment_status, timestamp
			) VALUES ($1, $2, $3, $4, $5)
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, ev := range events {
			status := paymentStatusPaid
			if !ev.PaymentConfirmed {
				status = "PENDING"
			}
			if _, err := stmt.ExecContext(ctx, ev.ItemID, transactionTypeSale, ev.Quantity, status, ev.Timestamp); err != nil {
				return fmt.Errorf("failed to insert sale for item %d: %w", ev.ItemID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
