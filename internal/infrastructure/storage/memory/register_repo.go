package memory

import (
	"context"
	"sort"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/registers/stock"
)

// --- Stock ---

var _ stock.Repository = (*StockRepo)(nil)

// StockRepo is the stock register: balances plus the movement log.
type StockRepo struct {
	store *Store
}

// NewStockRepo creates a stock register repository over store.
func NewStockRepo(store *Store) *StockRepo {
	return &StockRepo{store: store}
}

// CreateMovements implements stock.Repository.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.store.write(ctx, func(t *memTx) error {
		t.movements = append(t.movements, movements...)
		return nil
	})
}

func (r *StockRepo) allMovements(ctx context.Context) []entity.StockMovement {
	r.store.mu.RLock()
	out := append([]entity.StockMovement(nil), r.store.movements...)
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		out = append(out, t.movements...)
	}
	return out
}

// GetMovementsByRecorder implements stock.Repository.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	out := make([]entity.StockMovement, 0)
	for _, m := range r.allMovements(ctx) {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetMovementHistory implements stock.Repository.
func (r *StockRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	out := make([]entity.StockMovement, 0)
	for _, m := range r.allMovements(ctx) {
		switch {
		case m.ProductID != productID:
			continue
		case filter.Direction != nil && m.Direction != *filter.Direction:
			continue
		case filter.FromDate != nil && m.Period.Before(*filter.FromDate):
			continue
		case filter.ToDate != nil && m.Period.After(*filter.ToDate):
			continue
		}
		out = append(out, m)
	}

	// Newest first; LineID is time-ordered and breaks ties within a period.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Period.Equal(out[j].Period) {
			return out[i].Period.After(out[j].Period)
		}
		return id.Less(out[j].LineID, out[i].LineID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return make([]entity.StockMovement, 0), nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetBalance implements stock.Repository.
func (r *StockRepo) GetBalance(ctx context.Context, productID id.ID) (entity.StockBalance, error) {
	if t := txFrom(ctx); t != nil {
		if b, ok := t.balances[productID]; ok {
			return b, nil
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if b, ok := r.store.balances[productID]; ok {
		return b, nil
	}
	return entity.StockBalance{ProductID: productID}, nil
}

// GetBalanceForUpdate implements stock.Repository.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, productID id.ID) (entity.StockBalance, error) {
	if err := r.store.lock(ctx, productLock(productID)); err != nil {
		return entity.StockBalance{}, err
	}
	return r.GetBalance(ctx, productID)
}

// SaveBalance implements stock.Repository.
func (r *StockRepo) SaveBalance(ctx context.Context, balance entity.StockBalance) error {
	return r.store.write(ctx, func(t *memTx) error {
		t.balances[balance.ProductID] = balance
		return nil
	})
}

// ListBalances implements stock.Repository.
func (r *StockRepo) ListBalances(ctx context.Context, filter stock.BalanceFilter) ([]entity.StockBalance, error) {
	r.store.mu.RLock()
	merged := make(map[id.ID]entity.StockBalance, len(r.store.balances))
	for k, v := range r.store.balances {
		merged[k] = v
	}
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		for k, v := range t.balances {
			merged[k] = v
		}
	}

	if len(filter.ProductIDs) > 0 {
		wanted := make(map[id.ID]entity.StockBalance, len(filter.ProductIDs))
		for _, pid := range filter.ProductIDs {
			if b, ok := merged[pid]; ok {
				wanted[pid] = b
			} else {
				wanted[pid] = entity.StockBalance{ProductID: pid}
			}
		}
		merged = wanted
	}

	out := make([]entity.StockBalance, 0, len(merged))
	for _, b := range merged {
		if filter.ExcludeZero && b.Quantity == 0 {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return id.Less(out[i].ProductID, out[j].ProductID) })
	return out, nil
}

// --- Loyalty ---

var _ loyalty.Repository = (*LoyaltyRepo)(nil)

// LoyaltyRepo stores the point history.
type LoyaltyRepo struct {
	store *Store
}

// NewLoyaltyRepo creates a loyalty repository over store.
func NewLoyaltyRepo(store *Store) *LoyaltyRepo {
	return &LoyaltyRepo{store: store}
}

// CreateEntry implements loyalty.Repository.
func (r *LoyaltyRepo) CreateEntry(ctx context.Context, entry entity.PointEntry) error {
	return r.store.write(ctx, func(t *memTx) error {
		t.points = append(t.points, entry)
		return nil
	})
}

func (r *LoyaltyRepo) entries(ctx context.Context, counterparty string) []entity.PointEntry {
	r.store.mu.RLock()
	all := append([]entity.PointEntry(nil), r.store.points...)
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		all = append(all, t.points...)
	}

	out := make([]entity.PointEntry, 0)
	for _, e := range all {
		if e.Counterparty == counterparty {
			out = append(out, e)
		}
	}
	return out
}

// Balance implements loyalty.Repository.
func (r *LoyaltyRepo) Balance(ctx context.Context, counterparty string) (int64, error) {
	var total int64
	for _, e := range r.entries(ctx, counterparty) {
		total += e.Points
	}
	return total, nil
}

// History implements loyalty.Repository.
func (r *LoyaltyRepo) History(ctx context.Context, counterparty string, limit int) ([]entity.PointEntry, error) {
	out := r.entries(ctx, counterparty)
	sort.SliceStable(out, func(i, j int) bool { return id.Less(out[j].LineID, out[i].LineID) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
