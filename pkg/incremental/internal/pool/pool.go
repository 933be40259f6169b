// Package pool provides object pooling for the incremental engine's hot
// path: the per-query dependency-cell scratch slice a QueryContext
// accumulates into while its query body runs.
//
// A goroutine's query-call stack (querystack.go) is not pooled by this
// package — it lives for the goroutine's lifetime rather than being
// allocated and discarded once per query, so it has nothing short-lived to
// return to a pool.
//
// Pooling reuses previously allocated slices instead of allocating fresh
// ones, cutting GC pressure for workloads that issue many short-lived
// queries. It is adapted from the same pattern NornicDB uses for its own
// row/node slice pools, generalized to any element type via generics.
package pool

import "sync"

// Config configures pooling behavior.
type Config struct {
	// Enabled controls whether pooling is active. When false, Get always
	// allocates and Put is a no-op.
	Enabled bool

	// InitialCap is the capacity newly allocated slices start with.
	InitialCap int

	// MaxSize is the largest capacity a slice may have for Put to retain it.
	// A slice that grew past this while its query ran is discarded instead
	// of pooled — the same memory-leak-prevention guard the teacher's
	// pkg/pool/pool.go applies in its Put* functions via
	// `cap(x) > globalConfig.MaxSize`.
	MaxSize int
}

var defaultConfig = Config{
	Enabled:    true,
	InitialCap: 8,
	MaxSize:    64,
}

// Configure sets the global pooling configuration. Safe to call at any
// time, including after a SlicePool has already been constructed: Get and
// Put both consult defaultConfig live on every call rather than freezing a
// copy of it at construction time, so a driver's package-level pool
// (necessarily built before its main() can call Configure) still picks up
// the new settings.
func Configure(cfg Config) {
	defaultConfig = cfg
}

// SlicePool pools slices of T.
type SlicePool[T any] struct {
	pool sync.Pool
}

// NewSlicePool creates a pool of []T.
func NewSlicePool[T any]() *SlicePool[T] {
	return &SlicePool[T]{
		pool: sync.Pool{
			New: func() any {
				return make([]T, 0, defaultConfig.InitialCap)
			},
		},
	}
}

// Get returns a zero-length slice, possibly reused from a prior Put.
func (p *SlicePool[T]) Get() []T {
	if !defaultConfig.Enabled {
		return make([]T, 0, defaultConfig.InitialCap)
	}
	return p.pool.Get().([]T)[:0]
}

// Put returns s to the pool for reuse. Callers must not use s after Put. A
// slice whose capacity exceeds the configured MaxSize is discarded instead
// of retained, so one unusually large dependency set cannot pin that much
// memory in the pool forever.
func (p *SlicePool[T]) Put(s []T) {
	if !defaultConfig.Enabled || s == nil {
		return
	}
	if cap(s) > defaultConfig.MaxSize {
		return
	}
	var zero T
	for i := range s {
		s[i] = zero
	}
	p.pool.Put(s[:0])
}
