// Package stock provides the stock register: on-hand balances per product
// plus the append-only movement log that explains them.
package stock

import (
	"context"
	"time"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
)

// Repository defines operations for the stock register.
type Repository interface {
	// Movement operations

	// CreateMovements batch inserts movements (used during finalize)
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorder retrieves all movements written by a document
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetMovementHistory returns movement history for a product, newest first
	GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error)

	// Balance operations

	// GetBalance returns current balance; a product never moved has quantity 0
	GetBalance(ctx context.Context, productID id.ID) (entity.StockBalance, error)

	// GetBalanceForUpdate returns the balance and holds a lock on the product
	// until the surrounding transaction ends
	GetBalanceForUpdate(ctx context.Context, productID id.ID) (entity.StockBalance, error)

	// SaveBalance inserts or replaces the balance row of a product
	SaveBalance(ctx context.Context, balance entity.StockBalance) error

	// ListBalances returns balances matching filter
	ListBalances(ctx context.Context, filter BalanceFilter) ([]entity.StockBalance, error)
}

// ProductResolver maps a legacy product name to a stable product id.
// It returns a NOT_FOUND AppError when nothing matches.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, name string) (id.ID, error)
}

// BalanceFilter for filtering balance queries.
type BalanceFilter struct {
	ProductIDs  []id.ID
	ExcludeZero bool
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Direction *entity.Direction
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}
