package totals

import (
	"fmt"

	"github.com/shopspring/decimal"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
)

// Policy decides how a flat discount interacts with item tax.
type Policy string

const (
	// FlatPostSubtotal taxes undiscounted item amounts and subtracts the
	// discount from the subtotal afterwards.
	FlatPostSubtotal Policy = "flat_post_subtotal"

	// ProportionalPerItem spreads the discount over items by their share of
	// the gross amount and taxes the discounted bases.
	ProportionalPerItem Policy = "proportional_per_item"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case FlatPostSubtotal, ProportionalPerItem:
		return p, nil
	default:
		return "", fmt.Errorf("unknown discount policy %q", s)
	}
}

// Options parameterizes one computation.
type Options struct {
	Policy       Policy
	FreightTaxed bool
}

// Totals are the document-level figures.
type Totals struct {
	Subtotal      types.Money `db:"subtotal" json:"subtotal"`
	Discount      types.Money `db:"discount" json:"discount"`
	TaxTotal      types.Money `db:"tax_total" json:"taxTotal"`
	FreightAmount types.Money `db:"freight_total" json:"freightAmount"`
	FreightTax    types.Money `db:"freight_tax" json:"freightTax"`
	GrandTotal    types.Money `db:"grand_total" json:"grandTotal"`

	// WasClamped is true when the raw grand total was negative and got raised to zero.
	WasClamped bool `db:"was_clamped" json:"wasClamped"`
}

// Rounded returns a copy with every amount rounded half-even to 2 digits.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:      types.RoundMoney(t.Subtotal),
		Discount:      types.RoundMoney(t.Discount),
		TaxTotal:      types.RoundMoney(t.TaxTotal),
		FreightAmount: types.RoundMoney(t.FreightAmount),
		FreightTax:    types.RoundMoney(t.FreightTax),
		GrandTotal:    types.RoundMoney(t.GrandTotal),
		WasClamped:    t.WasClamped,
	}
}

// LineBreakdown shows how one item contributed to the totals.
type LineBreakdown struct {
	LineNo       int         `json:"lineNo"`
	Amount       types.Money `json:"amount"`
	Discount     types.Money `json:"discount"`
	TaxableBase  types.Money `json:"taxableBase"`
	TaxAmount    types.Money `json:"taxAmount"`
	PriceWithTax types.Money `json:"priceWithTax"`
}

// Result is the output of Compute.
type Result struct {
	Totals
	Lines []LineBreakdown `json:"lines"`
}

// Compute validates the inputs and computes totals with exact decimal arithmetic.
// No rounding happens here; call Totals.Rounded at the boundary.
func Compute(items []Item, discount types.Money, freight Freight, opts Options) (Result, error) {
	for i, item := range items {
		if err := item.Validate(i + 1); err != nil {
			return Result{}, err
		}
	}
	if discount.IsNegative() {
		return Result{}, apperror.NewValidation("discount must not be negative").
			WithDetail("field", "discount")
	}
	if err := freight.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	switch opts.Policy {
	case FlatPostSubtotal:
		res = flatPostSubtotal(items, discount)
	case ProportionalPerItem:
		res = proportionalPerItem(items, discount)
	default:
		return Result{}, apperror.NewValidation("unknown discount policy").
			WithDetail("policy", string(opts.Policy))
	}

	res.Discount = discount
	res.FreightAmount = freight.Amount
	res.FreightTax = decimal.Zero
	if opts.FreightTaxed {
		res.FreightTax = freight.Tax()
	}

	res.GrandTotal, res.WasClamped = types.ClampZero(res.rawGrandTotal(opts.Policy))
	return res, nil
}

// rawGrandTotal is the unclamped grand total. ProportionalPerItem subtotals
// already have the discount taken out.
func (r Result) rawGrandTotal(policy Policy) types.Money {
	raw := r.Subtotal.Add(r.TaxTotal).Add(r.FreightAmount).Add(r.FreightTax)
	if policy == FlatPostSubtotal {
		raw = raw.Sub(r.Discount)
	}
	return raw
}

func flatPostSubtotal(items []Item, _ types.Money) Result {
	res := Result{
		Totals: Totals{Subtotal: decimal.Zero, TaxTotal: decimal.Zero},
		Lines:  make([]LineBreakdown, 0, len(items)),
	}
	for i, item := range items {
		amount := item.Amount()
		tax := item.TaxAmount()
		res.Subtotal = res.Subtotal.Add(amount)
		res.TaxTotal = res.TaxTotal.Add(tax)
		res.Lines = append(res.Lines, LineBreakdown{
			LineNo:       i + 1,
			Amount:       amount,
			Discount:     decimal.Zero,
			TaxableBase:  amount,
			TaxAmount:    tax,
			PriceWithTax: amount.Add(tax),
		})
	}
	return res
}

func proportionalPerItem(items []Item, discount types.Money) Result {
	gross := decimal.Zero
	for _, item := range items {
		gross = gross.Add(item.Amount())
	}

	// Bases cannot go below zero, so at most the gross amount is spread.
	spread := decimal.Min(discount, gross)
	netTotal := gross.Sub(spread)

	res := Result{
		Totals: Totals{Subtotal: gross.Sub(discount), TaxTotal: decimal.Zero},
		Lines:  make([]LineBreakdown, 0, len(items)),
	}

	allocated := decimal.Zero
	for i, item := range items {
		amount := item.Amount()

		var base types.Money
		switch {
		case gross.IsZero():
			base = decimal.Zero
		case i == len(items)-1:
			// Last line takes the remainder so bases sum to netTotal exactly.
			base = netTotal.Sub(allocated)
		default:
			base = amount.Sub(spread.Mul(amount).Div(gross))
		}
		allocated = allocated.Add(base)

		tax := types.Percent(base, item.TaxRate)
		res.TaxTotal = res.TaxTotal.Add(tax)
		res.Lines = append(res.Lines, LineBreakdown{
			LineNo:       i + 1,
			Amount:       amount,
			Discount:     amount.Sub(base),
			TaxableBase:  base,
			TaxAmount:    tax,
			PriceWithTax: base.Add(tax),
		})
	}
	return res
}
