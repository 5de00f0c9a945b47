package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
)

func money(s string) types.Money { return types.MustMoney(s) }

func item(desc string, qty int64, price, rate string) Item {
	return Item{Description: desc, Quantity: qty, UnitPrice: money(price), TaxRate: money(rate)}
}

func assertMoney(t *testing.T, want string, got types.Money, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestCompute_FlatPostSubtotalIdentity(t *testing.T) {
	items := []Item{
		item("Patient monitor", 1, "15000", "12"),
		item("ECG electrodes", 2, "1200", "18"),
	}
	freight := Freight{Amount: money("500"), TaxRate: money("18")}

	res, err := Compute(items, money("1000"), freight, Options{Policy: FlatPostSubtotal, FreightTaxed: true})
	require.NoError(t, err)

	assertMoney(t, "17400", res.Subtotal)
	assertMoney(t, "2232", res.TaxTotal)
	assertMoney(t, "90", res.FreightTax)
	assertMoney(t, "19222", res.GrandTotal)
	assert.False(t, res.WasClamped)

	require.Len(t, res.Lines, 2)
	assertMoney(t, "1800", res.Lines[0].TaxAmount)
	assertMoney(t, "432", res.Lines[1].TaxAmount)
	assertMoney(t, "2832", res.Lines[1].PriceWithTax)
}

func TestCompute_ClampsNegativeGrandTotal(t *testing.T) {
	items := []Item{item("Stethoscope", 1, "100", "10")}
	freight := Freight{Amount: money("20"), TaxRate: money("5")}

	for _, policy := range []Policy{FlatPostSubtotal, ProportionalPerItem} {
		t.Run(string(policy), func(t *testing.T) {
			res, err := Compute(items, money("100000"), freight, Options{Policy: policy, FreightTaxed: true})
			require.NoError(t, err)

			assert.True(t, res.GrandTotal.IsZero(), res.GrandTotal.String())
			assert.False(t, res.GrandTotal.IsNegative())
			assert.True(t, res.WasClamped)
		})
	}
}

func TestCompute_DiscountEqualToTotalIsNotClamped(t *testing.T) {
	items := []Item{item("Gloves", 1, "100", "0")}

	res, err := Compute(items, money("100"), Freight{}, Options{Policy: FlatPostSubtotal})
	require.NoError(t, err)

	assert.True(t, res.GrandTotal.IsZero())
	assert.False(t, res.WasClamped)
}

func TestCompute_EmptyItems(t *testing.T) {
	res, err := Compute(nil, decimal.Zero, Freight{}, Options{Policy: FlatPostSubtotal, FreightTaxed: true})
	require.NoError(t, err)

	assert.True(t, res.Subtotal.IsZero())
	assert.True(t, res.TaxTotal.IsZero())
	assert.True(t, res.GrandTotal.IsZero())
	assert.Empty(t, res.Lines)
}

func TestCompute_ProportionalPerItem(t *testing.T) {
	items := []Item{
		item("Pulse oximeter", 1, "1000", "10"),
		item("Infusion pump", 1, "3000", "20"),
	}

	res, err := Compute(items, money("400"), Freight{}, Options{Policy: ProportionalPerItem})
	require.NoError(t, err)

	assertMoney(t, "3600", res.Subtotal)
	assertMoney(t, "900", res.Lines[0].TaxableBase)
	assertMoney(t, "2700", res.Lines[1].TaxableBase)
	assertMoney(t, "630", res.TaxTotal)
	assertMoney(t, "4230", res.GrandTotal)
}

func TestCompute_ProportionalBasesSumExactly(t *testing.T) {
	items := []Item{
		item("Mask A", 1, "100", "10"),
		item("Mask B", 1, "100", "10"),
		item("Mask C", 1, "100", "10"),
	}

	res, err := Compute(items, money("100"), Freight{}, Options{Policy: ProportionalPerItem})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, l := range res.Lines {
		sum = sum.Add(l.TaxableBase)
	}
	assertMoney(t, "200", sum)
	assertMoney(t, "200", res.Subtotal)
	assertMoney(t, "20.00", res.Rounded().TaxTotal)
	assertMoney(t, "220.00", res.Rounded().GrandTotal)
}

func TestCompute_PoliciesDifferOnlyWithDiscount(t *testing.T) {
	items := []Item{
		item("Bed", 2, "2500", "12"),
		item("Mattress", 1, "800", "5"),
	}
	freight := Freight{Amount: money("150"), TaxRate: money("18")}

	flat, err := Compute(items, decimal.Zero, freight, Options{Policy: FlatPostSubtotal, FreightTaxed: true})
	require.NoError(t, err)
	prop, err := Compute(items, decimal.Zero, freight, Options{Policy: ProportionalPerItem, FreightTaxed: true})
	require.NoError(t, err)

	assert.True(t, flat.GrandTotal.Equal(prop.GrandTotal))
	assert.True(t, flat.TaxTotal.Equal(prop.TaxTotal))
}

func TestCompute_FreightNotTaxed(t *testing.T) {
	freight := Freight{Amount: money("500"), TaxRate: money("18")}

	res, err := Compute([]Item{item("Service visit", 1, "1000", "0")}, decimal.Zero, freight, Options{Policy: FlatPostSubtotal})
	require.NoError(t, err)

	assert.True(t, res.FreightTax.IsZero())
	assertMoney(t, "1500", res.GrandTotal)
}

func TestCompute_InvalidInputs(t *testing.T) {
	valid := item("Thermometer", 1, "10", "5")

	tests := []struct {
		name     string
		items    []Item
		discount string
		freight  Freight
		policy   Policy
		code     string
		lineNo   int
	}{
		{"zero quantity", []Item{valid, item("X", 0, "10", "5")}, "0", Freight{}, FlatPostSubtotal, apperror.CodeInvalidLineItem, 2},
		{"negative quantity", []Item{item("X", -3, "10", "5")}, "0", Freight{}, FlatPostSubtotal, apperror.CodeInvalidLineItem, 1},
		{"negative price", []Item{item("X", 1, "-0.01", "5")}, "0", Freight{}, FlatPostSubtotal, apperror.CodeInvalidLineItem, 1},
		{"missing description", []Item{item("  ", 1, "10", "5")}, "0", Freight{}, FlatPostSubtotal, apperror.CodeInvalidLineItem, 1},
		{"tax rate above 100", []Item{item("X", 1, "10", "100.5")}, "0", Freight{}, FlatPostSubtotal, apperror.CodeInvalidLineItem, 1},
		{"negative discount", []Item{valid}, "-1", Freight{}, FlatPostSubtotal, apperror.CodeValidation, 0},
		{"negative freight", []Item{valid}, "0", Freight{Amount: money("-5")}, FlatPostSubtotal, apperror.CodeValidation, 0},
		{"unknown policy", []Item{valid}, "0", Freight{}, Policy("loyal_customer"), apperror.CodeValidation, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.items, money(tt.discount), tt.freight, Options{Policy: tt.policy})
			require.Error(t, err)

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
			if tt.lineNo > 0 {
				assert.Equal(t, tt.lineNo, appErr.Details["lineNo"])
			}
		})
	}
}

func TestTotals_RoundedUsesHalfEven(t *testing.T) {
	tt := Totals{
		Subtotal:   money("10.005"),
		TaxTotal:   money("0.015"),
		GrandTotal: money("10.025"),
	}

	r := tt.Rounded()
	assert.Equal(t, "10.00", r.Subtotal.StringFixed(2))
	assert.Equal(t, "0.02", r.TaxTotal.StringFixed(2))
	assert.Equal(t, "10.02", r.GrandTotal.StringFixed(2))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("proportional_per_item")
	require.NoError(t, err)
	assert.Equal(t, ProportionalPerItem, p)

	_, err = ParsePolicy("whatever")
	assert.Error(t, err)
}
