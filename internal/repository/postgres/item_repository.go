package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/lib/pq"
)

const itemColumns = `id, name, quantity, unit_price, reorder_level, lead_time_days, created_at, updated_at`

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *itemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	var item domain.Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, domain.ErrEntityNotFound)
		}
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY id`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) ListByIDs(ctx context.Context, ids []int64) ([]domain.Item, error) {
	if len(ids) == 0 {
		return []domain.Item{}, nil
	}

	var items []domain.Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list items by id: %w", err)
	}
	return items, nil
}
