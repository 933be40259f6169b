package incremental

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/aardwolf-sfl/increcache/pkg/incremental/input"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/internal/pool"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/internal/shardmap"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/revision"
)

// depPool pools the scratch []input.Cell each QueryContext accumulates
// dependencies into while its query body runs. The scratch slice itself
// never reaches a cache entry — dependencies drains it into a freshly
// allocated, right-sized slice for permanent storage in queryData — so the
// backing array is free to go back in the pool the instant the query
// finishes, regardless of how long the resulting cache entry lives.
var depPool = pool.NewSlicePool[input.Cell]()

// QueryId is a runtime-assigned identity for one (query type, parameter)
// pair, minted the first time that pair is seen by a QueryCache and never
// reused for the lifetime of the cache.
type QueryId uint32

// TypeFor returns the identity used for query type Q: a marker type a
// driver declares once per query, analogous to how input.Kind values are
// declared once per input. Go has no per-function TypeId and ordinary
// function values of the same signature all share one reflect.Type, so Q
// plays the role Rust's unique-per-closure type plays automatically.
func TypeFor[Q any]() reflect.Type {
	return reflect.TypeOf((*Q)(nil)).Elem()
}

// queryTypeName renders a query type for diagnostics using its bare local
// name (e.g. "bar", not "somepkg.bar"), so a cycle rendered across several
// query marker types defined in the same package reads the way the
// reference implementation's bare function-name cycle trace does.
func queryTypeName(t reflect.Type) string {
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// idKey is the composite key QueryCache uses to look up a QueryId: a query
// type identity plus the parameter it was called with. The reference
// implementation nests a Map<I, QueryId> inside a Map<QueryType, ...>; since
// one QueryCache[K] is shared by every query type taking parameter type K,
// there is no real per-type sub-map to keep separate, so the two are
// flattened into one composite key over one sharded map.
type idKey[K comparable] struct {
	qt    reflect.Type
	param K
}

type queryData struct {
	output       any
	validAt      revision.Revision
	dependencies []input.Cell
}

// QueryCache memoizes the results of queries sharing parameter type K. A
// program with queries over several distinct parameter types uses one
// QueryCache[K] per parameter type.
type QueryCache[K comparable] struct {
	idMap    *shardmap.Map[idKey[K], QueryId]
	queryMap *shardmap.Map[QueryId, *queryData]
	nextID   atomic.Uint32
}

// NewQueryCache creates an empty cache.
func NewQueryCache[K comparable]() *QueryCache[K] {
	return &QueryCache[K]{
		idMap:    shardmap.New[idKey[K], QueryId](),
		queryMap: shardmap.New[QueryId, *queryData](),
	}
}

// Id returns the QueryId assigned to (Q, param), if that pair has ever been
// looked up or computed.
func Id[Q any, K comparable](c *QueryCache[K], param K) (QueryId, bool) {
	return c.idMap.Get(idKey[K]{qt: TypeFor[Q](), param: param})
}

// Cached returns the memoized result for (Q, param) if one exists and is
// still valid — none of the input cells it depends on have been written
// since it was computed. It never calls into query logic; a miss (whether
// because the pair has never been computed, is mid-computation on another
// goroutine, or is stale) always returns ok=false.
func Cached[Q any, O any, K comparable, G any](c *QueryCache[K], rt *Runtime[G], param K) (O, bool) {
	var zero O

	id, ok := c.idMap.Get(idKey[K]{qt: TypeFor[Q](), param: param})
	if !ok {
		return zero, false
	}

	data, ok := c.queryMap.Get(id)
	if !ok {
		// Registered (an id was minted) but not yet populated, because the
		// query is still running or its body returned an error: treat exactly
		// like a plain miss.
		return zero, false
	}

	lastRev := rt.lastRevOf(data.dependencies)
	if data.validAt.Before(lastRev) {
		return zero, false
	}

	out, ok := data.output.(O)
	if !ok {
		return zero, false
	}
	return out, true
}

// TryInsertWith computes and memoizes (Q, param) by calling f, detecting
// cycles along the way. If (Q, param) is already on the current Runtime's
// call stack — f, directly or transitively, is trying to compute itself
// with the same parameter — f is never called and a Cycle error is
// returned instead. Any other error returned by f propagates without being
// cached, so the next call retries from scratch.
//
// TryInsertWith does not consult the cache first; call Cached before it to
// get memoization. This split (unlike a single do-everything entry point)
// is what lets a driver choose to always recompute, or to recompute only
// after checking Cached itself.
func TryInsertWith[Q any, O any, K comparable, G any](c *QueryCache[K], rt *Runtime[G], param K, f func(param K, ctx *QueryContext[G]) (O, error)) (O, error) {
	var zero O

	key := idKey[K]{qt: TypeFor[Q](), param: param}
	id := c.idMap.GetOrInsertWith(key, func() QueryId {
		return QueryId(c.nextID.Add(1))
	})

	pop, cycle := rt.stack.push(id)
	if cycle != nil {
		return zero, *cycle
	}

	ctx := newQueryContext(rt)
	out, err := f(param, ctx)
	if err != nil {
		pop()
		return zero, err
	}

	validAt := rt.Rev()
	deps := ctx.dependencies()
	pop()

	c.queryMap.Set(id, &queryData{output: out, validAt: validAt, dependencies: deps})
	return out, nil
}

// InsertWith is TryInsertWith for query bodies that never fail on their own
// — only a Cycle can stop them. It panics if a cycle is detected, which is
// appropriate since a cycle signals a bug in how the queries are wired
// together, not a recoverable runtime condition.
func InsertWith[Q any, O any, K comparable, G any](c *QueryCache[K], rt *Runtime[G], param K, f func(param K, ctx *QueryContext[G]) O) O {
	out, err := TryInsertWith[Q, O](c, rt, param, func(p K, ctx *QueryContext[G]) (O, error) {
		return f(p, ctx), nil
	})
	if err != nil {
		panic(err)
	}
	return out
}

// DebugCycle wraps cycle with this cache's registered query names and
// parameters, for diagnostics (logging, test assertions, panic messages).
func (c *QueryCache[K]) DebugCycle(cycle Cycle) CycleDebug[K] {
	return CycleDebug[K]{cache: c, cycle: cycle}
}

// QueryContext is handed to a query body while it runs, giving it access to
// inputs through UseInput (which records a dependency) and to nested
// queries through Cached/TryInsertWith/InsertWith using the same Runtime.
//
// The dependency set doubles as a deduplicating index (seen) over a plain
// slice (cells) drawn from depPool, rather than a concurrent map, because a
// slice is what the cache ultimately wants to store; seen exists only to
// keep a query that reads the same cell twice from recording it twice, per
// Design Note §9 ("using a set eliminates duplicates").
type QueryContext[G any] struct {
	rt    *Runtime[G]
	mu    sync.Mutex
	seen  map[input.Cell]struct{}
	cells []input.Cell
}

func newQueryContext[G any](rt *Runtime[G]) *QueryContext[G] {
	return &QueryContext[G]{
		rt:    rt,
		seen:  make(map[input.Cell]struct{}),
		cells: depPool.Get(),
	}
}

// Runtime returns the Runtime this query is executing under, for passing to
// Cached/TryInsertWith/InsertWith when calling a nested query.
func (ctx *QueryContext[G]) Runtime() *Runtime[G] {
	return ctx.rt
}

// dependencies drains ctx's scratch slice into a freshly allocated,
// right-sized slice for permanent storage in a cache entry, then returns
// the scratch slice to depPool — it must not be called more than once per
// QueryContext.
func (ctx *QueryContext[G]) dependencies() []input.Cell {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	out := make([]input.Cell, len(ctx.cells))
	copy(out, ctx.cells)
	depPool.Put(ctx.cells)
	ctx.cells = nil
	return out
}

// UseInput reads key from kind's table and records it as a dependency of
// the query currently running under ctx. A miss (key was never set) is not
// recorded as a dependency — the query simply observes "this key has no
// value yet", and setting the key afterwards does not invalidate it; only a
// change to an input it did observe does.
func UseInput[K comparable, V any, G any](ctx *QueryContext[G], kind input.Kind[K, V, G], key K) (V, bool) {
	value, cell, ok := getInputCell(ctx.rt, kind, key)
	if !ok {
		return value, false
	}

	ctx.mu.Lock()
	if _, dup := ctx.seen[cell]; !dup {
		ctx.seen[cell] = struct{}{}
		ctx.cells = append(ctx.cells, cell)
	}
	ctx.mu.Unlock()

	return value, true
}
