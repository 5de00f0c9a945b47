package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docledger/internal/core/entity"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/infrastructure/storage/postgres"
)

const loyaltyPointsTable = "reg_loyalty_points"

var pointColumns = postgres.ExtractDBColumns[entity.PointEntry]()

// LoyaltyRepo implements loyalty.Repository.
type LoyaltyRepo struct {
	txManager *postgres.TxManager
}

var _ loyalty.Repository = (*LoyaltyRepo)(nil)

// NewLoyaltyRepo creates a new loyalty point repository.
func NewLoyaltyRepo(txManager *postgres.TxManager) *LoyaltyRepo {
	return &LoyaltyRepo{txManager: txManager}
}

// CreateEntry implements loyalty.Repository.
func (r *LoyaltyRepo) CreateEntry(ctx context.Context, entry entity.PointEntry) error {
	sql, args, err := builder().
		Insert(loyaltyPointsTable).
		SetMap(postgres.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert point entry: %w", err)
	}
	return nil
}

// Balance implements loyalty.Repository.
func (r *LoyaltyRepo) Balance(ctx context.Context, counterparty string) (int64, error) {
	var total int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM reg_loyalty_points WHERE counterparty = $1`,
		counterparty).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}

// History implements loyalty.Repository.
func (r *LoyaltyRepo) History(ctx context.Context, counterparty string, limit int) ([]entity.PointEntry, error) {
	q := builder().
		Select(pointColumns...).
		From(loyaltyPointsTable).
		Where(squirrel.Eq{"counterparty": counterparty}).
		OrderBy("line_id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entries := make([]entity.PointEntry, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select point history: %w", err)
	}
	return entries, nil
}
