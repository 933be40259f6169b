package incremental

import (
	"fmt"
	"strings"
)

// Cycle is returned when a query, directly or transitively, tries to call
// itself with the same parameter while it is still running. It implements
// Go's error interface, which is what lets TryInsertWith's error parameter
// stay a plain error instead of needing a trait-bound-style type parameter:
// a caller who wants a domain-specific error type can wrap a Cycle with
// fmt.Errorf("%w", ...) or check for it with errors.As.
type Cycle struct {
	ids []QueryId
}

// QueryIDs returns the ids involved in the cycle, in call order: the
// repeated id appears both first and last.
func (c Cycle) QueryIDs() []QueryId {
	return c.ids
}

// Error renders the cycle using bare ids. Use (*QueryCache[K]).DebugCycle to
// render query names and parameters instead.
func (c Cycle) Error() string {
	parts := make([]string, len(c.ids))
	for i, id := range c.ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return "cycle detected: " + strings.Join(parts, " -> ")
}

// CycleDebug renders a Cycle using the names and parameters registered in a
// QueryCache, for diagnostics. Build one with (*QueryCache[K]).DebugCycle.
type CycleDebug[K comparable] struct {
	cache *QueryCache[K]
	cycle Cycle
}

// Strings renders every id in the cycle, in order, as "Name(param)". A
// repeated id in the cycle (the query that closed the loop) is rendered
// twice, once at each occurrence.
func (d CycleDebug[K]) Strings() []string {
	byID := make(map[QueryId]string, len(d.cycle.ids))
	d.cache.idMap.Range(func(key idKey[K], id QueryId) bool {
		byID[id] = fmt.Sprintf("%s(%v)", queryTypeName(key.qt), key.param)
		return true
	})

	out := make([]string, len(d.cycle.ids))
	for i, id := range d.cycle.ids {
		if s, ok := byID[id]; ok {
			out[i] = s
		} else {
			out[i] = fmt.Sprintf("#%d", id)
		}
	}
	return out
}

// String implements fmt.Stringer, rendering the cycle as a single arrow
// chain, e.g. "bar(2) -> foo(2) -> bar(1) -> baz(1) -> bar(2)".
func (d CycleDebug[K]) String() string {
	return strings.Join(d.Strings(), " -> ")
}
