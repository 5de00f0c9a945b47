package documents

import (
	corenumerator "docledger/internal/core/numerator"
	"docledger/internal/domain/numbering"
	"docledger/internal/domain/posting"
	"docledger/internal/domain/totals"
)

// TypePolicy is the per-type behaviour of documents.
type TypePolicy struct {
	Numbering      numbering.TypeConfig
	DiscountPolicy totals.Policy
	FreightTaxed   bool

	// AffectsStock and AccruesLoyalty make a type sale-affecting.
	AffectsStock   bool
	AccruesLoyalty bool
}

// DefaultPolicies returns the built-in policy of every document type.
func DefaultPolicies() map[Type]TypePolicy {
	num := func(prefix string, offset int64) numbering.TypeConfig {
		return numbering.TypeConfig{
			Config:   corenumerator.DefaultConfig(prefix, offset),
			Strategy: corenumerator.StrategyStrict,
		}
	}
	return map[Type]TypePolicy{
		Invoice: {
			Numbering:      num("INV", 1000),
			DiscountPolicy: totals.FlatPostSubtotal,
			FreightTaxed:   true,
			AffectsStock:   true,
			AccruesLoyalty: true,
		},
		ServiceOrder: {
			Numbering:      num("SO", 2000),
			DiscountPolicy: totals.FlatPostSubtotal,
		},
		CustomerPO: {
			Numbering:      num("CPO", 3000),
			DiscountPolicy: totals.ProportionalPerItem,
			FreightTaxed:   true,
		},
		SupplierPO: {
			Numbering:      num("SPO", 4000),
			DiscountPolicy: totals.ProportionalPerItem,
			FreightTaxed:   true,
		},
		Quotation: {
			Numbering:      num("QTN", 5000),
			DiscountPolicy: totals.FlatPostSubtotal,
			FreightTaxed:   true,
		},
	}
}

// NumberingConfigs extracts the numbering setup keyed by type name.
func NumberingConfigs(policies map[Type]TypePolicy) map[string]numbering.TypeConfig {
	out := make(map[string]numbering.TypeConfig, len(policies))
	for t, p := range policies {
		out[string(t)] = p.Numbering
	}
	return out
}

// PostingEffects extracts finalize side effects keyed by type name.
func PostingEffects(policies map[Type]TypePolicy) map[string]posting.Effects {
	out := make(map[string]posting.Effects, len(policies))
	for t, p := range policies {
		out[string(t)] = posting.Effects{Stock: p.AffectsStock, Loyalty: p.AccruesLoyalty}
	}
	return out
}
