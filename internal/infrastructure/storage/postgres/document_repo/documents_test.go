package document_repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/totals"
)

func TestHeaderColumns_CoverDocument(t *testing.T) {
	for _, col := range []string{
		"id", "version", "number", "document_type", "finalized",
		"counterparty_name", "counterparty_tax_id",
		"discount_input", "discount", "freight_amount", "freight_tax_rate", "freight_total",
		"discount_policy", "freight_taxed", "grand_total", "was_clamped",
		"total_paid", "balance_due", "status",
	} {
		assert.Contains(t, headerColumns, col)
	}
	assert.NotContains(t, headerColumns, "payments")

	seen := make(map[string]bool, len(headerColumns))
	for _, col := range headerColumns {
		assert.False(t, seen[col], "duplicate column %s", col)
		seen[col] = true
	}
}

func TestLineAndPaymentColumns(t *testing.T) {
	assert.Equal(t, []string{
		"line_id", "document_id", "line_no",
		"description", "quantity", "unit_price", "tax_rate",
		"product_id", "product_name", "code", "kind",
	}, lineColumns)
	assert.Contains(t, paymentColumns, "idempotency_key")
	assert.Contains(t, paymentColumns, "requested_amount")
}

func TestRowMapping_RoundTrip(t *testing.T) {
	doc := documents.NewDocument(documents.Invoice, documents.DefaultPolicies()[documents.Invoice])
	doc.Number = "INV 01001"
	doc.Counterparty = documents.Counterparty{Name: "Acme", Email: "ap@acme.test"}
	doc.Discount = types.MustMoney("10")
	doc.Freight = totals.Freight{Amount: types.MustMoney("5"), TaxRate: decimal.NewFromInt(18)}
	doc.Items = []documents.LineItem{{LineNo: 1, Kind: documents.KindGoods}}
	doc.Payments = []ledger.Payment{{Amount: types.MustMoney("1")}}

	got := fromDomain(doc).toDomain()

	assert.Equal(t, doc.Document, got.Document)
	assert.Equal(t, doc.Counterparty, got.Counterparty)
	assert.True(t, doc.Discount.Equal(got.Discount))
	assert.Equal(t, doc.Freight, got.Freight)
	assert.Equal(t, doc.DiscountPolicy, got.DiscountPolicy)
	assert.Equal(t, ledger.StatusDraft, got.Status)
	assert.Empty(t, got.Items, "lines are loaded separately")
	assert.Empty(t, got.Payments, "payments are loaded separately")
}

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "date DESC", false},
		{"number", "number ASC", false},
		{"-grand_total", "grand_total DESC", false},
		{"+created_at", "created_at ASC", false},
		{"password", "", true},
		{"-", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOrderBy(tt.in, "date DESC", listOrderColumns)
			if tt.wantErr {
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConstraintViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: numberConstraint})

	name, ok := constraintViolation(err, pgUniqueViolation)
	assert.True(t, ok)
	assert.Equal(t, numberConstraint, name)

	_, ok = constraintViolation(err, pgForeignKeyViolation)
	assert.False(t, ok)

	_, ok = constraintViolation(errors.New("boom"), pgUniqueViolation)
	assert.False(t, ok)
}
