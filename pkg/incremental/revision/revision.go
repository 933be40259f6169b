// Package revision implements the monotonically increasing logical clock
// that the incremental engine uses to decide whether a cached query result
// is still fresh.
//
// A Revision is never compared across engines: it only has meaning relative
// to the Runtime that produced it. Bumping it is the one operation that must
// happen under the runtime's exclusive write lock, because the revision
// stamped onto a mutated input cell must match the revision observed by any
// query that reads the cell afterwards.
package revision

import "fmt"

// initial is the revision a fresh Runtime starts at. Revisions are strictly
// positive so that a zero Revision can stand in for "never written" without
// colliding with a real value.
const initial uint64 = 1

// Revision is a strictly positive, monotonically increasing integer tagging
// the current version of an entire input store.
type Revision struct {
	raw uint64
}

// New returns the initial revision (1).
func New() Revision {
	return Revision{raw: initial}
}

// Increment bumps the revision in place. Callers are responsible for holding
// whatever lock protects the shared state the Revision lives in; Increment
// itself performs no synchronization, matching the non-atomic field bump of
// the reference implementation (the runtime's write lock makes this safe).
func (r *Revision) Increment() {
	r.raw++
}

// Raw returns the underlying integer, mostly useful for logging and tests.
func (r Revision) Raw() uint64 {
	return r.raw
}

// Before reports whether r is strictly less than other.
func (r Revision) Before(other Revision) bool {
	return r.raw < other.raw
}

// AtMost reports whether r is less than or equal to other. This is the
// freshness check: a cache entry valid at `validAt` is still fresh as long as
// every dependency's last-write revision is `AtMost(validAt)`.
func (r Revision) AtMost(other Revision) bool {
	return r.raw <= other.raw
}

func (r Revision) String() string {
	return fmt.Sprintf("rev(%d)", r.raw)
}

// Max returns the larger of a and b.
func Max(a, b Revision) Revision {
	if a.raw >= b.raw {
		return a
	}
	return b
}
