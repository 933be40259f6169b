// Package incremental implements a revision-tracked, dependency-aware query
// cache: a small "salsa-style" incremental computation engine. Inputs are
// set through a Runtime and stamped with a monotonically increasing
// Revision; queries are memoized in a QueryCache and automatically
// invalidated once any input cell they read has moved past the revision
// they were last computed at.
package incremental

import (
	"sync"

	"github.com/aardwolf-sfl/increcache/pkg/incremental/input"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/revision"
)

// sharedState is the data a family of cloned Runtimes have in common: the
// current revision, the typed input storage group, and the revision each
// input cell was last written at.
type sharedState[G any] struct {
	mu        sync.RWMutex
	rev       revision.Revision
	inputs    G
	inputRevs map[input.Cell]revision.Revision
}

// Runtime is a handle to the engine's input state and in-flight query stack.
//
// The reference implementation keys its query stack off a real thread-local,
// so one Runtime value transparently tracks a different call stack on every
// OS thread. Go has no implicit equivalent: a goroutine has no stable
// identity to hang state off. Runtime makes the split explicit instead —
// Clone shares the input state and the cross-goroutine query lock but
// starts a brand new, empty call stack. Call Clone before handing a Runtime
// to a new goroutine; sharing one Runtime value (and its stack) across
// goroutines is a bug, not a feature, and can corrupt cycle detection.
type Runtime[G any] struct {
	shared    *sharedState[G]
	queryLock *sync.RWMutex
	stack     *queryStack
}

// NewRuntime creates a fresh Runtime at revision 1 over the given storage
// group. inputs must be a usable, ready-to-populate storage group — in
// practice a struct literal of *Table pointers built by NewTable.
func NewRuntime[G any](inputs G) *Runtime[G] {
	return &Runtime[G]{
		shared: &sharedState[G]{
			rev:       revision.New(),
			inputs:    inputs,
			inputRevs: make(map[input.Cell]revision.Revision),
		},
		queryLock: &sync.RWMutex{},
		stack:     newQueryStack(),
	}
}

// Clone returns a new Runtime sharing this one's input state and query lock
// but starting a fresh, empty call stack. Use this, not the same Runtime
// value, when dispatching work to another goroutine.
func (r *Runtime[G]) Clone() *Runtime[G] {
	return &Runtime[G]{
		shared:    r.shared,
		queryLock: r.queryLock,
		stack:     newQueryStack(),
	}
}

// Rev returns the current global revision.
func (r *Runtime[G]) Rev() revision.Revision {
	r.shared.mu.RLock()
	defer r.shared.mu.RUnlock()
	return r.shared.rev
}

// LockReadonly acquires the shared query lock for reading and returns a
// function that releases it. Hold this across a batch of queries (for
// example while taking a consistent snapshot) to guarantee no input changes
// underneath you; release it promptly afterwards, since SetInput and
// RemoveInput both block on the same lock for writing.
func (r *Runtime[G]) LockReadonly() func() {
	r.queryLock.RLock()
	return r.queryLock.RUnlock
}

// getInputCell looks up key in kind's table and, on a hit, also returns the
// Cell coordinate the value lives at — used by UseInput to record a
// dependency without doing the table lookup twice.
func getInputCell[K comparable, V any, G any](rt *Runtime[G], kind input.Kind[K, V, G], key K) (value V, cell input.Cell, ok bool) {
	rt.shared.mu.RLock()
	defer rt.shared.mu.RUnlock()

	tbl := kind.Storage(&rt.shared.inputs)
	v, idx, found := tbl.Get(key)
	if !found {
		return value, input.Cell{}, false
	}
	return v, input.Cell{Input: kind.Index(), Key: idx}, true
}

// GetInput reads key from kind's table without recording a dependency. Use
// this outside a query (for example from driver code setting up a run); use
// UseInput from inside a query body so the engine knows to invalidate the
// query when this cell changes.
func GetInput[K comparable, V any, G any](rt *Runtime[G], kind input.Kind[K, V, G], key K) (V, bool) {
	value, _, ok := getInputCell(rt, kind, key)
	return value, ok
}

// SetInput stores value for key in kind's table and bumps the global
// revision, stamping the affected cell with the new revision. SetInput
// acquires the query lock for writing, so it blocks while any LockReadonly
// guard is held (for example one a driver holds around a query body); a
// query running without such a guard does not hold the lock.
func SetInput[K comparable, V any, G any](rt *Runtime[G], kind input.Kind[K, V, G], key K, value V) {
	rt.queryLock.Lock()
	defer rt.queryLock.Unlock()

	rt.shared.mu.Lock()
	defer rt.shared.mu.Unlock()

	tbl := kind.Storage(&rt.shared.inputs)
	idx := tbl.Set(key, value)
	rt.shared.rev.Increment()
	rt.shared.inputRevs[input.Cell{Input: kind.Index(), Key: idx}] = rt.shared.rev
}

// RemoveInput deletes key from kind's table. If key was present, the global
// revision is bumped and the cell it occupied is stamped with the new
// revision, so any query that read it is invalidated on its next Cached
// check. RemoveInput is a no-op, including no revision bump, if key was
// never set.
func RemoveInput[K comparable, V any, G any](rt *Runtime[G], kind input.Kind[K, V, G], key K) {
	rt.queryLock.Lock()
	defer rt.queryLock.Unlock()

	rt.shared.mu.Lock()
	defer rt.shared.mu.Unlock()

	tbl := kind.Storage(&rt.shared.inputs)
	_, idx, ok := tbl.Remove(key)
	if !ok {
		return
	}
	rt.shared.rev.Increment()
	rt.shared.inputRevs[input.Cell{Input: kind.Index(), Key: idx}] = rt.shared.rev
}

// lastRevOf returns the highest revision among deps, or the initial
// revision if deps is empty (a query with no recorded dependencies — a
// constant — is valid forever once computed).
func (r *Runtime[G]) lastRevOf(deps []input.Cell) revision.Revision {
	r.shared.mu.RLock()
	defer r.shared.mu.RUnlock()

	max := revision.New()
	for _, cell := range deps {
		if rev, ok := r.shared.inputRevs[cell]; ok {
			max = revision.Max(max, rev)
		}
	}
	return max
}
