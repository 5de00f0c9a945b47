// Package domain provides types shared by the domain services.
package domain

import (
	"context"
)

// --- Pagination ---

// DefaultLimit is the page size used when a list request names none.
const DefaultLimit = 50

// MaxLimit caps the page size of list requests.
const MaxLimit = 500

// NormalizeLimit applies DefaultLimit and MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Hooks ---

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforeCreate   HookEvent = "before_create"
	AfterCreate    HookEvent = "after_create"
	BeforeUpdate   HookEvent = "before_update"
	AfterUpdate    HookEvent = "after_update"
	BeforeFinalize HookEvent = "before_finalize"
	AfterFinalize  HookEvent = "after_finalize"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry stores lifecycle hooks for an entity type.
// Register hooks at startup; the registry is not safe for concurrent On calls.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes all hooks for the specified event.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// Convenience methods

// OnBeforeCreate registers a hook to run before create.
func (r *HookRegistry[T]) OnBeforeCreate(hook Hook[T]) {
	r.On(BeforeCreate, hook)
}

// OnAfterCreate registers a hook to run after create.
func (r *HookRegistry[T]) OnAfterCreate(hook Hook[T]) {
	r.On(AfterCreate, hook)
}

// OnBeforeUpdate registers a hook to run before update.
func (r *HookRegistry[T]) OnBeforeUpdate(hook Hook[T]) {
	r.On(BeforeUpdate, hook)
}

// OnAfterUpdate registers a hook to run after update.
func (r *HookRegistry[T]) OnAfterUpdate(hook Hook[T]) {
	r.On(AfterUpdate, hook)
}

// OnBeforeFinalize registers a hook to run inside the finalize transaction, before side effects.
func (r *HookRegistry[T]) OnBeforeFinalize(hook Hook[T]) {
	r.On(BeforeFinalize, hook)
}

// OnAfterFinalize registers a hook to run after finalize commits.
func (r *HookRegistry[T]) OnAfterFinalize(hook Hook[T]) {
	r.On(AfterFinalize, hook)
}

// RunBeforeCreate executes all before-create hooks.
func (r *HookRegistry[T]) RunBeforeCreate(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeCreate, entity)
}

// RunAfterCreate executes all after-create hooks.
func (r *HookRegistry[T]) RunAfterCreate(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterCreate, entity)
}

// RunBeforeUpdate executes all before-update hooks.
func (r *HookRegistry[T]) RunBeforeUpdate(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeUpdate, entity)
}

// RunAfterUpdate executes all after-update hooks.
func (r *HookRegistry[T]) RunAfterUpdate(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterUpdate, entity)
}

// RunBeforeFinalize executes all before-finalize hooks.
func (r *HookRegistry[T]) RunBeforeFinalize(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeFinalize, entity)
}

// RunAfterFinalize executes all after-finalize hooks.
func (r *HookRegistry[T]) RunAfterFinalize(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterFinalize, entity)
}
