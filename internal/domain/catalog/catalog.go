// Package catalog declares the read-only product and counterparty lookups the
// engine consumes. The directories themselves are maintained elsewhere.
package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/core/types"
)

// Product is a catalog entry used to autofill line items.
type Product struct {
	ID          id.ID           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Code        string          `db:"code" json:"code,omitempty"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       types.Money     `db:"price" json:"price"`
	TaxRate     decimal.Decimal `db:"tax_rate" json:"taxRate"`
}

// Counterparty is a directory entry used to autofill the document snapshot.
type Counterparty struct {
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address,omitempty"`
	TaxID   string `db:"tax_id" json:"taxId,omitempty"`
	Phone   string `db:"phone" json:"phone,omitempty"`
	Email   string `db:"email" json:"email,omitempty"`
}

// Products looks up catalog products. A miss is a NOT_FOUND AppError.
type Products interface {
	GetProduct(ctx context.Context, productID id.ID) (Product, error)
	FindProductByName(ctx context.Context, name string) (Product, error)
}

// Counterparties looks up the customer/supplier directory. A miss is a NOT_FOUND AppError.
type Counterparties interface {
	FindCounterpartyByName(ctx context.Context, name string) (Counterparty, error)
}

// NameKey normalizes a name for lookups: trimmed and case-folded.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ProductResolver resolves legacy product names through the catalog.
// It satisfies stock.ProductResolver.
type ProductResolver struct {
	products Products
}

// NewProductResolver creates a name-fallback resolver over products.
func NewProductResolver(products Products) *ProductResolver {
	return &ProductResolver{products: products}
}

// ResolveProduct returns the id of the product with the given name.
func (r *ProductResolver) ResolveProduct(ctx context.Context, name string) (id.ID, error) {
	if strings.TrimSpace(name) == "" {
		return id.Nil(), apperror.NewNotFound("product", name)
	}
	p, err := r.products.FindProductByName(ctx, name)
	if err != nil {
		return id.Nil(), err
	}
	return p.ID, nil
}
