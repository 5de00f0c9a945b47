// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	// Suitable for invoices and accounting documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Faster, but may produce gaps if the process restarts.
	StrategyCached
)

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return StrategyStrict, nil
	case "cached":
		return StrategyCached, nil
	default:
		return StrategyStrict, fmt.Errorf("unknown numbering strategy %q", s)
	}
}

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of values reserved at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds the numbering format of one document type.
type Config struct {
	// Prefix identifies the document type (e.g. "INV", "QTN")
	Prefix string `yaml:"prefix"`

	// Offset is added to the raw sequence value so each type starts in its own range
	Offset int64 `yaml:"offset"`

	// PadWidth is the minimum number width (default 5)
	PadWidth int `yaml:"padWidth"`

	// Separator between prefix and number (default single space)
	Separator string `yaml:"separator"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string, offset int64) Config {
	return Config{
		Prefix:    prefix,
		Offset:    offset,
		PadWidth:  5,
		Separator: " ",
	}
}

// Key is the sequence key under which the counter of this config is stored.
func (c Config) Key() string {
	return c.Prefix
}

// Format renders the sequence value: <Prefix><Separator><zero-padded offset+seq>.
func (c Config) Format(seq int64) string {
	padWidth := c.PadWidth
	if padWidth <= 0 {
		padWidth = 5
	}
	sep := c.Separator
	if sep == "" {
		sep = " "
	}
	return fmt.Sprintf("%s%s%0*d", c.Prefix, sep, padWidth, c.Offset+seq)
}

// Parse extracts the raw sequence value from a formatted number.
// Returns false if the number was not produced by this config.
func (c Config) Parse(number string) (int64, bool) {
	sep := c.Separator
	if sep == "" {
		sep = " "
	}
	rest, ok := strings.CutPrefix(number, c.Prefix+sep)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || v < c.Offset {
		return 0, false
	}
	return v - c.Offset, true
}
