package numerator

import (
	"context"
)

// Sequence hands out strictly increasing counter values per key.
// This is the domain contract - implementations live in infrastructure layer.
// Every call must be a single atomic increment; values are never derived
// from a count of existing documents.
type Sequence interface {
	// NextValue returns the next counter value for key (first value is 1).
	NextValue(ctx context.Context, key string, opts *Options) (int64, error)

	// SetValue sets the current counter value (for migration purposes).
	// The next NextValue call returns value+1.
	SetValue(ctx context.Context, key string, value int64) error
}

// MockSequence is a test implementation of Sequence.
type MockSequence struct {
	NextValueFunc func(ctx context.Context, key string, opts *Options) (int64, error)
	SetValueFunc  func(ctx context.Context, key string, value int64) error
}

// NextValue implements Sequence.
func (m *MockSequence) NextValue(ctx context.Context, key string, opts *Options) (int64, error) {
	if m.NextValueFunc != nil {
		return m.NextValueFunc(ctx, key, opts)
	}
	return 1, nil
}

// SetValue implements Sequence.
func (m *MockSequence) SetValue(ctx context.Context, key string, value int64) error {
	if m.SetValueFunc != nil {
		return m.SetValueFunc(ctx, key, value)
	}
	return nil
}

// Ensure compile-time interface compliance.
var _ Sequence = (*MockSequence)(nil)
