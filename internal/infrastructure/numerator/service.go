// Package numerator provides implementations of the document sequence contract.
// This is the infrastructure layer - it implements core/numerator.Sequence.
package numerator

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	corenumerator "docledger/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for a call, so increments join the
// caller's transaction when there is one.
type QuerierFunc func(ctx context.Context) Querier

type cachedRange struct {
	mu      sync.Mutex
	current int64
	max     int64
}

// Service provides document sequences backed by the sys_sequences table.
type Service struct {
	querier QuerierFunc

	// rangesMu protects the ranges map only; each range has its own lock.
	rangesMu sync.Mutex
	ranges   map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Sequence = (*Service)(nil)

// New creates a numerator service with a static querier (pool or test double).
func New(querier Querier) *Service {
	return NewWithQuerierFunc(func(context.Context) Querier { return querier })
}

// NewWithQuerierFunc creates a numerator service that resolves its querier per call.
func NewWithQuerierFunc(fn QuerierFunc) *Service {
	return &Service{
		querier: fn,
		ranges:  make(map[string]*cachedRange),
	}
}

// NextValue returns the next counter value for key.
//
// Supports Strict (DB-level) and Cached (Memory-level) strategies.
func (s *Service) NextValue(ctx context.Context, key string, opts *corenumerator.Options) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("numerator service is not initialized")
	}

	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	switch opts.Strategy {
	case corenumerator.StrategyCached:
		return s.nextCached(ctx, key, opts)
	case corenumerator.StrategyStrict:
		fallthrough
	default:
		return s.nextStrict(ctx, key)
	}
}

// nextStrict fetches the next number directly from DB using UPSERT + RETURNING.
// The row lock taken by the UPDATE branch serializes concurrent callers per key.
func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

func (s *Service) rangeFor(key string) *cachedRange {
	s.rangesMu.Lock()
	defer s.rangesMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}
	return rng
}

// nextCached serves numbers from a reserved range, refilling from DB when exhausted.
func (s *Service) nextCached(ctx context.Context, key string, opts *corenumerator.Options) (int64, error) {
	rng := s.rangeFor(key)
	rng.mu.Lock()
	defer rng.mu.Unlock()

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		var newMax int64
		err := s.querier(ctx).QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}

		// Reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetValue sets the current counter value (for migration purposes).
func (s *Service) SetValue(ctx context.Context, key string, value int64) error {
	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	// Drop any reserved range so the next call re-reads the counter.
	s.rangesMu.Lock()
	delete(s.ranges, key)
	s.rangesMu.Unlock()

	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}
