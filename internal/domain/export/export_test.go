package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/totals"
)

func line(no int, desc string, qty int64, price, rate string) documents.LineItem {
	return documents.LineItem{
		LineNo: no,
		Kind:   documents.KindGoods,
		Item: totals.Item{
			Description: desc,
			Quantity:    qty,
			UnitPrice:   types.MustMoney(price),
			TaxRate:     decimal.RequireFromString(rate),
		},
	}
}

func finalizedInvoice(t *testing.T) *documents.Document {
	t.Helper()
	doc := documents.NewDocument(documents.Invoice, documents.DefaultPolicies()[documents.Invoice])
	doc.Number = "INV 01001"
	doc.Date = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc.Counterparty = documents.Counterparty{Name: "City Clinic", TaxID: "29ABCDE1234F1Z5"}
	doc.Items = []documents.LineItem{
		line(1, "Patient monitor", 1, "15000", "12"),
		line(2, "ECG electrodes", 2, "1200", "18"),
	}
	doc.Discount = types.MustMoney("1000")
	doc.Freight = totals.Freight{Amount: types.MustMoney("500"), TaxRate: decimal.NewFromInt(18)}

	_, err := doc.Recalculate()
	require.NoError(t, err)
	doc.MarkFinalized(doc.Date)

	_, err = ledger.Apply(&doc.Book, doc.ID, doc.Totals.GrandTotal,
		ledger.Input{Amount: types.MustMoney("5000.5"), Mode: "bank"}, ledger.OverpaymentAllow)
	require.NoError(t, err)
	return doc
}

func TestFromDocument_MoneyAsFixedStrings(t *testing.T) {
	doc := finalizedInvoice(t)

	raw, err := json.Marshal(FromDocument(doc))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	tot := got["totals"].(map[string]any)
	assert.Equal(t, "17400.00", tot["subtotal"])
	assert.Equal(t, "2232.00", tot["taxTotal"])
	assert.Equal(t, "90.00", tot["freightTax"])
	assert.Equal(t, "19222.00", tot["grandTotal"])
	assert.Equal(t, "5000.50", got["totalPaid"])
	assert.Equal(t, "14221.50", got["balanceDue"])
	assert.Equal(t, string(ledger.StatusPartial), got["status"])

	items := got["items"].([]any)
	require.Len(t, items, 2)
	second := items[1].(map[string]any)
	assert.Equal(t, "2400.00", second["amount"])
	assert.Equal(t, "432.00", second["taxAmount"])
	assert.Equal(t, "2832.00", second["priceWithTax"])

	payments := got["payments"].([]any)
	require.Len(t, payments, 1)
	p := payments[0].(map[string]any)
	assert.Equal(t, "5000.50", p["amount"])
	_, hasRequested := p["requestedAmount"]
	assert.False(t, hasRequested, "requested amount is only shown when capped")
}

func TestTextFormatter_UsesFrozenTotals(t *testing.T) {
	doc := finalizedInvoice(t)

	// Changing items after finalize must not change what is printed.
	doc.Items[0].UnitPrice = types.MustMoney("1")

	var buf bytes.Buffer
	require.NoError(t, TextFormatter{}.Format(&buf, doc))
	out := buf.String()

	assert.Contains(t, out, "INVOICE INV 01001")
	assert.Contains(t, out, "Tax ID: 29ABCDE1234F1Z5")
	assert.Contains(t, out, "19222.00")
	assert.Contains(t, out, "-1000.00")
	assert.Contains(t, out, "14221.50")
	assert.Contains(t, out, "Status: Partial")
}

func TestTextFormatter_RejectsDrafts(t *testing.T) {
	doc := documents.NewDocument(documents.Quotation, documents.DefaultPolicies()[documents.Quotation])

	err := TextFormatter{}.Format(&bytes.Buffer{}, doc)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}
