// Package numbering issues unique, type-scoped document numbers.
package numbering

import (
	"context"
	"fmt"

	"docledger/internal/core/apperror"
	corenumerator "docledger/internal/core/numerator"
	"docledger/pkg/logger"
)

// DefaultMaxAttempts bounds how many slots Issue tries after numbering conflicts.
const DefaultMaxAttempts = 5

// TypeConfig is the numbering setup of one document type.
type TypeConfig struct {
	corenumerator.Config

	Strategy  corenumerator.Strategy
	RangeSize int64
}

// Authority formats sequence values into document numbers.
// Per-type configs are fixed at construction, so lookups need no locking;
// serialization happens inside the Sequence, one counter per type.
type Authority struct {
	seq         corenumerator.Sequence
	configs     map[string]TypeConfig
	maxAttempts int
}

// NewAuthority creates a numbering authority over seq.
func NewAuthority(seq corenumerator.Sequence, configs map[string]TypeConfig) *Authority {
	copied := make(map[string]TypeConfig, len(configs))
	for k, v := range configs {
		copied[k] = v
	}
	return &Authority{
		seq:         seq,
		configs:     copied,
		maxAttempts: DefaultMaxAttempts,
	}
}

// WithMaxAttempts overrides the retry bound of Issue.
func (a *Authority) WithMaxAttempts(n int) *Authority {
	if n > 0 {
		a.maxAttempts = n
	}
	return a
}

// Config returns the numbering config of docType.
func (a *Authority) Config(docType string) (TypeConfig, bool) {
	cfg, ok := a.configs[docType]
	return cfg, ok
}

func (a *Authority) configFor(docType string) (TypeConfig, error) {
	cfg, ok := a.configs[docType]
	if !ok {
		return TypeConfig{}, apperror.NewValidation("no numbering configured for document type").
			WithDetail("documentType", docType)
	}
	return cfg, nil
}

// Next issues the next number for docType, e.g. "INV 01001".
func (a *Authority) Next(ctx context.Context, docType string) (string, error) {
	cfg, err := a.configFor(docType)
	if err != nil {
		return "", err
	}

	seq, err := a.seq.NextValue(ctx, cfg.Key(), &corenumerator.Options{
		Strategy:  cfg.Strategy,
		RangeSize: cfg.RangeSize,
	})
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", docType, err)
	}
	return cfg.Format(seq), nil
}

// Issue draws a number and hands it to claim, which persists it.
// When claim reports a numbering conflict the slot is skipped and the next
// one is tried, up to the configured attempt bound.
func (a *Authority) Issue(ctx context.Context, docType string, claim func(ctx context.Context, number string) error) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		number, err := a.Next(ctx, docType)
		if err != nil {
			return "", err
		}

		err = claim(ctx, number)
		if err == nil {
			return number, nil
		}
		if !apperror.IsNumberingConflict(err) {
			return "", err
		}

		lastErr = err
		logger.Warn(ctx, "document number already taken, retrying with next slot",
			"document_type", docType,
			"number", number,
			"attempt", attempt,
		)
	}
	return "", lastErr
}

// SetNext makes nextSeq the raw sequence value of the next issued number.
// Used when migrating counters from a legacy system.
func (a *Authority) SetNext(ctx context.Context, docType string, nextSeq int64) error {
	cfg, err := a.configFor(docType)
	if err != nil {
		return err
	}
	if nextSeq < 1 {
		return apperror.NewValidation("next sequence value must be at least 1").
			WithDetail("value", nextSeq)
	}
	return a.seq.SetValue(ctx, cfg.Key(), nextSeq-1)
}
