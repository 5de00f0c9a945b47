// Package register_repo provides PostgreSQL implementations of the stock and
// loyalty registers.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "reg_stock_movements"
	stockBalancesTable  = "reg_stock_balances"
)

var (
	movementColumns = postgres.ExtractDBColumns[entity.StockMovement]()
	balanceColumns  = postgres.ExtractDBColumns[entity.StockBalance]()
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{txManager: txManager}
}

// CreateMovements implements stock.Repository.
// Inside a transaction the rows go through COPY.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		data := postgres.StructToMap(m)
		row := make([]any, len(movementColumns))
		for i, col := range movementColumns {
			row[i] = data[col]
		}
		rows = append(rows, row)
	}

	if r.txManager.GetTx(ctx) != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		if _, err := inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := builder().Insert(stockMovementsTable).Columns(movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// GetMovementsByRecorder implements stock.Repository.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	sql, args, err := builder().
		Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("line_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]entity.StockMovement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetMovementHistory implements stock.Repository.
func (r *StockRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	q := builder().
		Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("period DESC", "line_id DESC")

	if filter.Direction != nil {
		q = q.Where(squirrel.Eq{"direction": *filter.Direction})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.ToDate})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]entity.StockMovement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movement history: %w", err)
	}
	return movements, nil
}

// GetBalance implements stock.Repository.
func (r *StockRepo) GetBalance(ctx context.Context, productID id.ID) (entity.StockBalance, error) {
	return r.getBalance(ctx, productID, false)
}

// GetBalanceForUpdate implements stock.Repository.
// A zero row is inserted first so that a product's first movement also takes the row lock.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, productID id.ID) (entity.StockBalance, error) {
	now := time.Now().UTC()
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO reg_stock_balances (product_id, quantity, last_movement_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (product_id) DO NOTHING`, productID, now)
	if err != nil {
		return entity.StockBalance{}, fmt.Errorf("ensure balance row: %w", err)
	}
	return r.getBalance(ctx, productID, true)
}

func (r *StockRepo) getBalance(ctx context.Context, productID id.ID, lock bool) (entity.StockBalance, error) {
	q := builder().
		Select(balanceColumns...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"product_id": productID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return entity.StockBalance{}, fmt.Errorf("build query: %w", err)
	}

	var balance entity.StockBalance
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.StockBalance{ProductID: productID}, nil
		}
		return entity.StockBalance{}, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// SaveBalance implements stock.Repository.
func (r *StockRepo) SaveBalance(ctx context.Context, balance entity.StockBalance) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO reg_stock_balances (product_id, quantity, last_movement_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    last_movement_at = EXCLUDED.last_movement_at,
		    updated_at = EXCLUDED.updated_at`,
		balance.ProductID, balance.Quantity, balance.LastMovementAt, balance.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

// ListBalances implements stock.Repository.
func (r *StockRepo) ListBalances(ctx context.Context, filter stock.BalanceFilter) ([]entity.StockBalance, error) {
	q := builder().
		Select(balanceColumns...).
		From(stockBalancesTable).
		OrderBy("product_id")

	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	balances := make([]entity.StockBalance, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}
