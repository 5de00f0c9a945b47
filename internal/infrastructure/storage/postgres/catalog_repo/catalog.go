// Package catalog_repo provides the PostgreSQL product and counterparty directory.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/domain/catalog"
	"docledger/internal/infrastructure/storage/postgres"
)

const (
	productsTable       = "cat_products"
	counterpartiesTable = "cat_counterparties"
)

var (
	productColumns      = postgres.ExtractDBColumns[catalog.Product]()
	counterpartyColumns = postgres.ExtractDBColumns[catalog.Counterparty]()
)

// CatalogRepo implements catalog.Products and catalog.Counterparties.
// Names are matched on lower(trim(name)), the same key as catalog.NameKey.
type CatalogRepo struct {
	txManager *postgres.TxManager
}

var (
	_ catalog.Products       = (*CatalogRepo)(nil)
	_ catalog.Counterparties = (*CatalogRepo)(nil)
)

// NewCatalogRepo creates a catalog repository.
func NewCatalogRepo(txManager *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{txManager: txManager}
}

func (r *CatalogRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// GetProduct implements catalog.Products.
func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (catalog.Product, error) {
	return r.findProduct(ctx, squirrel.Eq{"id": productID}, productID.String())
}

// FindProductByName implements catalog.Products.
func (r *CatalogRepo) FindProductByName(ctx context.Context, name string) (catalog.Product, error) {
	return r.findProduct(ctx, squirrel.Expr("name_key = ?", catalog.NameKey(name)), name)
}

func (r *CatalogRepo) findProduct(ctx context.Context, where squirrel.Sqlizer, key string) (catalog.Product, error) {
	sql, args, err := r.builder().
		Select(productColumns...).
		From(productsTable).
		Where(where).
		ToSql()
	if err != nil {
		return catalog.Product{}, fmt.Errorf("build query: %w", err)
	}

	var p catalog.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return catalog.Product{}, apperror.NewNotFound("product", key)
		}
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// FindCounterpartyByName implements catalog.Counterparties.
func (r *CatalogRepo) FindCounterpartyByName(ctx context.Context, name string) (catalog.Counterparty, error) {
	sql, args, err := r.builder().
		Select(counterpartyColumns...).
		From(counterpartiesTable).
		Where("name_key = ?", catalog.NameKey(name)).
		ToSql()
	if err != nil {
		return catalog.Counterparty{}, fmt.Errorf("build query: %w", err)
	}

	var cp catalog.Counterparty
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &cp, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return catalog.Counterparty{}, apperror.NewNotFound("counterparty", name)
		}
		return catalog.Counterparty{}, fmt.Errorf("get counterparty: %w", err)
	}
	return cp, nil
}

// SaveProduct inserts or replaces a product. A nil ID is replaced with a new one.
func (r *CatalogRepo) SaveProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	data := postgres.StructToMap(p)
	data["name_key"] = catalog.NameKey(p.Name)

	sql, args, err := r.builder().
		Insert(productsTable).
		SetMap(data).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, name_key = EXCLUDED.name_key, code = EXCLUDED.code,
			description = EXCLUDED.description, price = EXCLUDED.price, tax_rate = EXCLUDED.tax_rate`).
		ToSql()
	if err != nil {
		return catalog.Product{}, fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return catalog.Product{}, fmt.Errorf("save product: %w", err)
	}
	return p, nil
}

// SaveCounterparty inserts or replaces a counterparty keyed by name.
func (r *CatalogRepo) SaveCounterparty(ctx context.Context, cp catalog.Counterparty) error {
	data := postgres.StructToMap(cp)
	data["name_key"] = catalog.NameKey(cp.Name)

	sql, args, err := r.builder().
		Insert(counterpartiesTable).
		SetMap(data).
		Suffix(`ON CONFLICT (name_key) DO UPDATE SET
			name = EXCLUDED.name, address = EXCLUDED.address, tax_id = EXCLUDED.tax_id,
			phone = EXCLUDED.phone, email = EXCLUDED.email`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save counterparty: %w", err)
	}
	return nil
}
