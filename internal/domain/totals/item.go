// Package totals turns line items plus discount and freight into document totals.
// Everything here is pure: no I/O, no clocks, no shared state.
package totals

import (
	"strings"

	"github.com/shopspring/decimal"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
)

var maxTaxRate = decimal.NewFromInt(100)

// Item is the priced part of a line item.
type Item struct {
	Description string          `db:"description" json:"description"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	UnitPrice   types.Money     `db:"unit_price" json:"unitPrice"`
	TaxRate     decimal.Decimal `db:"tax_rate" json:"taxRate"`
}

// Amount is quantity × unit price.
func (i Item) Amount() types.Money {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// TaxAmount is amount × taxRate / 100 on the undiscounted amount.
func (i Item) TaxAmount() types.Money {
	return types.Percent(i.Amount(), i.TaxRate)
}

// PriceWithTax is amount + taxAmount.
func (i Item) PriceWithTax() types.Money {
	return i.Amount().Add(i.TaxAmount())
}

// Validate checks the item; lineNo is 1-based and only used for reporting.
func (i Item) Validate(lineNo int) error {
	switch {
	case strings.TrimSpace(i.Description) == "":
		return apperror.NewInvalidLineItem(lineNo, "description is required")
	case i.Quantity < 1:
		return apperror.NewInvalidLineItem(lineNo, "quantity must be at least 1").
			WithDetail("quantity", i.Quantity)
	case i.UnitPrice.IsNegative():
		return apperror.NewInvalidLineItem(lineNo, "unit price must not be negative").
			WithDetail("unitPrice", i.UnitPrice.String())
	case i.TaxRate.IsNegative() || i.TaxRate.GreaterThan(maxTaxRate):
		return apperror.NewInvalidLineItem(lineNo, "tax rate must be between 0 and 100").
			WithDetail("taxRate", i.TaxRate.String())
	}
	return nil
}

// Freight is a shipping charge with its own tax rate.
type Freight struct {
	Amount  types.Money     `db:"freight_amount" json:"amount"`
	TaxRate decimal.Decimal `db:"freight_tax_rate" json:"taxRate"`
}

// Validate rejects negative freight values.
func (f Freight) Validate() error {
	if f.Amount.IsNegative() {
		return apperror.NewValidation("freight amount must not be negative").
			WithDetail("field", "freight.amount")
	}
	if f.TaxRate.IsNegative() {
		return apperror.NewValidation("freight tax rate must not be negative").
			WithDetail("field", "freight.taxRate")
	}
	return nil
}

// Tax is the freight tax amount.
func (f Freight) Tax() types.Money {
	return types.Percent(f.Amount, f.TaxRate)
}
