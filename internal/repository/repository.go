package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
)

// ItemRepository reads tracked items. GetByID returns domain.ErrEntityNotFound
// for unknown ids.
type ItemRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	List(ctx context.Context) ([]domain.Item, error)
	ListByIDs(ctx context.Context, ids []int64) ([]domain.Item, error)
}

// SalesRepository reads and appends sale transactions
type SalesRepository interface {
	// ListConfirmedSales returns paid SALE events for the item in [from, to], oldest first.
	ListConfirmedSales(ctx context.Context, itemID int64, from, to time.Time) ([]domain.SaleEvent, error)
	InsertSales(ctx context.Context, events []domain.SaleEvent) (int, error)
}
