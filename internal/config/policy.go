package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	corenumerator "docledger/internal/core/numerator"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/totals"
)

// PolicyFile is the YAML layout of the policy file:
//
//	overpayment: reject
//	loyaltyRule: 'documentType == "Invoice" && grandTotal >= 500.0'
//	types:
//	  Invoice:
//	    prefix: INV
//	    offset: 1000
//	    freightTaxed: false
type PolicyFile struct {
	Overpayment string                  `yaml:"overpayment"`
	LoyaltyRule string                  `yaml:"loyaltyRule"`
	Types       map[string]TypeOverride `yaml:"types"`
}

// TypeOverride changes selected settings of one document type. Unset fields keep the default.
type TypeOverride struct {
	Prefix    *string `yaml:"prefix"`
	Offset    *int64  `yaml:"offset"`
	PadWidth  *int    `yaml:"padWidth"`
	Separator *string `yaml:"separator"`
	Strategy  *string `yaml:"strategy"`
	RangeSize *int64  `yaml:"rangeSize"`

	DiscountPolicy *string `yaml:"discountPolicy"`
	FreightTaxed   *bool   `yaml:"freightTaxed"`
	AffectsStock   *bool   `yaml:"affectsStock"`
	AccruesLoyalty *bool   `yaml:"accruesLoyalty"`
}

// ReadPolicyFile parses a policy file.
func ReadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicyFile(data)
}

// ParsePolicyFile parses policy YAML.
func ParsePolicyFile(data []byte) (*PolicyFile, error) {
	var f PolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return &f, nil
}

// Apply merges the overrides into policies.
func (f *PolicyFile) Apply(policies map[documents.Type]documents.TypePolicy) error {
	for name, o := range f.Types {
		docType, err := documents.ParseType(name)
		if err != nil {
			return err
		}
		p := policies[docType]
		if err := o.apply(&p); err != nil {
			return fmt.Errorf("%s: %w", docType, err)
		}
		policies[docType] = p
	}
	return nil
}

func (o TypeOverride) apply(p *documents.TypePolicy) error {
	n := &p.Numbering
	if o.Prefix != nil {
		n.Prefix = *o.Prefix
	}
	if o.Offset != nil {
		n.Offset = *o.Offset
	}
	if o.PadWidth != nil {
		n.PadWidth = *o.PadWidth
	}
	if o.Separator != nil {
		n.Separator = *o.Separator
	}
	if o.Strategy != nil {
		s, err := corenumerator.ParseStrategy(*o.Strategy)
		if err != nil {
			return err
		}
		n.Strategy = s
	}
	if o.RangeSize != nil {
		n.RangeSize = *o.RangeSize
	}

	if o.DiscountPolicy != nil {
		dp, err := totals.ParsePolicy(*o.DiscountPolicy)
		if err != nil {
			return err
		}
		p.DiscountPolicy = dp
	}
	if o.FreightTaxed != nil {
		p.FreightTaxed = *o.FreightTaxed
	}
	if o.AffectsStock != nil {
		p.AffectsStock = *o.AffectsStock
	}
	if o.AccruesLoyalty != nil {
		p.AccruesLoyalty = *o.AccruesLoyalty
	}
	return nil
}
