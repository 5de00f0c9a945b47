package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "docledger/internal/core/numerator"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/totals"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OVERPAYMENT_POLICY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOYALTY_RULE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ledger.OverpaymentAllow, cfg.Overpayment)
	assert.Equal(t, loyalty.DefaultRule, cfg.LoyaltyRule)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
}

func TestLoad_InvalidOverpayment(t *testing.T) {
	t.Setenv("OVERPAYMENT_POLICY", "sometimes")

	_, err := Load()
	assert.Error(t, err)
}

func TestPolicies_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
overpayment: cap
loyaltyRule: 'grandTotal >= 100.0'
types:
  invoice:
    prefix: BILL
    freightTaxed: false
    strategy: cached
    rangeSize: 20
  Quotation:
    discountPolicy: proportional_per_item
    accruesLoyalty: true
`), 0o600))

	cfg := &Config{PolicyFile: path, Overpayment: ledger.OverpaymentAllow}
	policies, err := cfg.Policies()
	require.NoError(t, err)

	inv := policies[documents.Invoice]
	assert.Equal(t, "BILL", inv.Numbering.Prefix)
	assert.Equal(t, int64(1000), inv.Numbering.Offset, "unset fields keep defaults")
	assert.Equal(t, corenumerator.StrategyCached, inv.Numbering.Strategy)
	assert.Equal(t, int64(20), inv.Numbering.RangeSize)
	assert.False(t, inv.FreightTaxed)
	assert.True(t, inv.AffectsStock)

	q := policies[documents.Quotation]
	assert.Equal(t, totals.ProportionalPerItem, q.DiscountPolicy)
	assert.True(t, q.AccruesLoyalty)

	assert.Equal(t, ledger.OverpaymentCap, cfg.Overpayment)
	assert.Equal(t, "grandTotal >= 100.0", cfg.LoyaltyRule)
}

func TestPolicies_UnknownTypeOrValue(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown type", "types:\n  Receipt:\n    prefix: RC\n"},
		{"bad discount policy", "types:\n  Invoice:\n    discountPolicy: weird\n"},
		{"bad strategy", "types:\n  Invoice:\n    strategy: random\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParsePolicyFile([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Error(t, f.Apply(documents.DefaultPolicies()))
		})
	}
}
