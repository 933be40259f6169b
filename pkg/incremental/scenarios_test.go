package incremental_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aardwolf-sfl/increcache/pkg/increxample"
	"github.com/aardwolf-sfl/increcache/pkg/incremental"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/internal/rendezvous"
)

type sumQuery struct{}

func sumABC(_ struct{}, ctx *incremental.QueryContext[commonStorage], _ *commonSystem[struct{}]) int {
	return getA(ctx) + getB(ctx) + getC(ctx)
}

// S1 — basic caching.
func TestBasicCaching(t *testing.T) {
	sys := newCommonSystem[struct{}](true)
	setA(sys, 1)
	setB(sys, 2)
	setC(sys, 3)

	first := increxample.Query[sumQuery, int](sys, struct{}{}, sumABC)
	second := increxample.Query[sumQuery, int](sys, struct{}{}, sumABC)

	if first != 6 || second != 6 {
		t.Fatalf("sum = %d, %d; want 6, 6", first, second)
	}

	log := sys.LogBook()
	hits, starts := countCacheEvents(log)
	if hits != 1 {
		t.Fatalf("cache hits = %d, want 1", hits)
	}
	if starts != 1 {
		t.Fatalf("query starts = %d, want 1", starts)
	}
}

// S2 — invalidation on dependency change.
func TestInvalidationOnDependencyChange(t *testing.T) {
	sys := newCommonSystem[struct{}](true)
	setA(sys, 1)
	setB(sys, 2)
	setC(sys, 3)

	increxample.Query[sumQuery, int](sys, struct{}{}, sumABC)
	setB(sys, 6)
	updated := increxample.Query[sumQuery, int](sys, struct{}{}, sumABC)

	if updated != 10 {
		t.Fatalf("updated sum = %d, want 10", updated)
	}

	log := sys.LogBook()
	hits, starts := countCacheEvents(log)
	if hits != 0 {
		t.Fatalf("cache hits = %d, want 0", hits)
	}
	if starts != 2 {
		t.Fatalf("query starts = %d, want 2", starts)
	}
}

// Removing an input a query depended on invalidates that query's cached
// entry exactly like overwriting it: RemoveInput bumps the revision and
// stamps the removed cell's input_revs entry with it (runtime.go's own doc
// comment on RemoveInput), so the next Cached check sees
// last_rev_of(dependencies) > valid_at and recomputes.
func TestInvalidationOnInputRemoval(t *testing.T) {
	sys := newCommonSystem[struct{}](true)
	setA(sys, 1)
	setB(sys, 2)
	setC(sys, 3)

	first := increxample.Query[sumQuery, int](sys, struct{}{}, sumABC)
	if first != 6 {
		t.Fatalf("first = %d, want 6", first)
	}

	removeA(sys)

	second := increxample.Query[sumQuery, int](sys, struct{}{}, sumABC)
	if second != 5 {
		t.Fatalf("second = %d, want 5 (a removed, getA now misses and reads as zero)", second)
	}

	log := sys.LogBook()
	hits, starts := countCacheEvents(log)
	if hits != 0 {
		t.Fatalf("cache hits = %d, want 0 (removal must invalidate the cached entry)", hits)
	}
	if starts != 2 {
		t.Fatalf("query starts = %d, want 2", starts)
	}
}

type optionalProbeQuery struct{}

// optionalProbe reads the optional input through UseInput and reports
// whether it was present, matching the hello_world.rs optional_string
// pattern (no unwrap, no dependency recorded on miss).
func optionalProbe(_ struct{}, ctx *incremental.QueryContext[commonStorage], _ *commonSystem[struct{}]) int {
	v, ok := incremental.UseInput(ctx, optionalInput, struct{}{})
	if !ok {
		return -1
	}
	return v
}

// A miss on an optional input records no dependency (spec §4.5, Design Note
// §9 "Removal and 'became present' asymmetry"): setting the key afterward
// must not invalidate a query that only ever observed it missing.
func TestOptionalInputMissRecordsNoDependency(t *testing.T) {
	sys := newCommonSystem[struct{}](true)

	first := increxample.Query[optionalProbeQuery, int](sys, struct{}{}, optionalProbe)
	if first != -1 {
		t.Fatalf("first = %d, want -1 (optional input unset)", first)
	}

	second := increxample.Query[optionalProbeQuery, int](sys, struct{}{}, optionalProbe)
	if second != -1 {
		t.Fatalf("second = %d, want -1 (cache hit, still unset)", second)
	}

	setOptional(sys, 42)

	third := increxample.Query[optionalProbeQuery, int](sys, struct{}{}, optionalProbe)
	if third != -1 {
		t.Fatalf("third = %d, want -1 (still the cached -1: setting optional after the miss was never an observed dependency)", third)
	}

	log := sys.LogBook()
	hits, starts := countCacheEvents(log)
	if starts != 1 {
		t.Fatalf("query starts = %d, want 1 (setting optional must not invalidate the cached query)", starts)
	}
	if hits != 2 {
		t.Fatalf("cache hits = %d, want 2", hits)
	}
}

type squareQuery struct{}

func square(param Param, ctx *incremental.QueryContext[commonStorage], _ *commonSystem[Param]) int {
	v := getParametrized(ctx, param)
	return v * v
}

// S3 — parametric caching.
func TestParametricCaching(t *testing.T) {
	sys := newCommonSystem[Param](true)
	setParametrized(sys, ParamFoo, 3)
	setParametrized(sys, ParamBar, 5)

	foo1 := increxample.Query[squareQuery, int](sys, ParamFoo, square)
	foo2 := increxample.Query[squareQuery, int](sys, ParamFoo, square)
	bar1 := increxample.Query[squareQuery, int](sys, ParamBar, square)

	if foo1 != 9 || foo2 != 9 || bar1 != 25 {
		t.Fatalf("squares = %d, %d, %d; want 9, 9, 25", foo1, foo2, bar1)
	}

	log := sys.LogBook()
	hits, starts := countCacheEvents(log)
	if hits != 1 {
		t.Fatalf("cache hits = %d, want 1", hits)
	}
	if starts != 2 {
		t.Fatalf("query starts = %d, want 2", starts)
	}
}

func countCacheEvents(log []increxample.LogEntry) (hits, starts int) {
	for _, e := range log {
		if e.IsCacheHit() {
			hits++
		}
		if e.IsQueryStart() {
			starts++
		}
	}
	return hits, starts
}

// S4 — cycle detection.
//
// foo/bar/baz are plain, type-parameter-free marker types so the cycle is
// rendered using their bare names (via reflect.Type.Name()): the bodies
// that compute them are named fooBody/barBody/bazBody to keep the package
// from clashing the function namespace with the type namespace.
type foo struct{}
type bar struct{}
type baz struct{}

type emptyStorage struct{}
type cycleSystem = increxample.System[emptyStorage, int]

func fooBody(n int, _ *incremental.QueryContext[emptyStorage], sys *cycleSystem) (int, error) {
	if n > 1 {
		return increxample.TryQuery[bar, int](sys, n/2, barBody)
	}
	return n, nil
}

func barBody(n int, _ *incremental.QueryContext[emptyStorage], sys *cycleSystem) (int, error) {
	if n%2 == 0 {
		return increxample.TryQuery[foo, int](sys, n, fooBody)
	}
	return increxample.TryQuery[baz, int](sys, n, bazBody)
}

func bazBody(n int, _ *incremental.QueryContext[emptyStorage], sys *cycleSystem) (int, error) {
	return increxample.TryQuery[bar, int](sys, n+1, barBody)
}

func TestCycleDetection(t *testing.T) {
	sys := increxample.New[emptyStorage, int](emptyStorage{}, true)

	_, err := increxample.TryQuery[foo, int](sys, 12, fooBody)
	require.Error(t, err)

	var cyc incremental.Cycle
	require.ErrorAs(t, err, &cyc)

	rendered := sys.Queries.DebugCycle(cyc).Strings()
	assert.Equal(t, []string{"bar(2)", "foo(2)", "bar(1)", "baz(1)", "bar(2)"}, rendered)
}

type longerQuery struct{}

func longer(wait bool, ctx *incremental.QueryContext[commonStorage], _ *commonSystem[bool]) int {
	a := getA(ctx)
	if wait {
		time.Sleep(50 * time.Millisecond)
	}
	b := getB(ctx)
	return a + b
}

// S5 — snapshot consistency under LockReadonly: a concurrent SetInput must
// block until the locked query body finishes, so it never observes a torn
// mix of old and new inputs.
func TestSnapshotWithReadLock(t *testing.T) {
	sys := newCommonSystem[bool](true)
	setA(sys, 3)
	setB(sys, 5)

	ready := make(chan struct{})
	var t1Result int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t1 := sys.Clone()
		t1Result = increxample.Query[longerQuery, int](t1, true, func(wait bool, ctx *incremental.QueryContext[commonStorage], s *commonSystem[bool]) int {
			close(ready)
			return longer(wait, ctx, s)
		})
	}()

	<-ready
	setB(sys, 10)
	require.Equal(t, 13, increxample.Query[longerQuery, int](sys, false, longer))

	wg.Wait()
	require.Equal(t, 8, t1Result)
}

// S6 — without a lock, a concurrent SetInput can land between a query's two
// reads, producing a result that was never valid for any single revision.
// A rendezvous forces exactly that interleaving instead of leaving it to
// chance.
func TestTornReadWithoutLock(t *testing.T) {
	sys := newCommonSystem[bool](false)
	setA(sys, 3)
	setB(sys, 5)

	point := rendezvous.New()
	var t1Result int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t1 := sys.Clone()
		t1Result = increxample.Query[longerQuery, int](t1, true, func(wait bool, ctx *incremental.QueryContext[commonStorage], s *commonSystem[bool]) int {
			a := getA(ctx)
			point.Signal()
			time.Sleep(50 * time.Millisecond)
			b := getB(ctx)
			return a + b
		})
	}()

	point.Wait()
	setB(sys, 10)
	require.Equal(t, 13, increxample.Query[longerQuery, int](sys, false, longer))

	wg.Wait()
	// b already changed to 10 by the time t1 reads it: torn, not 8.
	require.Equal(t, 13, t1Result)
}

// Two queries issued concurrently, both under LockReadonly, actually run in
// parallel rather than being serialized by some hidden global lock: the
// second one must start before the first one finishes.
func TestParallelQueriesRunConcurrently(t *testing.T) {
	sys := newCommonSystem[bool](true)
	setA(sys, 3)
	setB(sys, 5)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			worker := sys.Clone()
			out := increxample.Query[longerQuery, int](worker, true, longer)
			assert.Equal(t, 8, out)
		}()
	}
	wg.Wait()

	log := sys.LogBook()
	latestStart := -1
	for i, e := range log {
		if e.IsQueryStart() {
			latestStart = i
		}
	}
	earliestDone := -1
	for i, e := range log {
		if e.IsQueryDone() {
			earliestDone = i
			break
		}
	}

	require.NotEqual(t, -1, latestStart)
	require.NotEqual(t, -1, earliestDone)
	assert.Less(t, latestStart, earliestDone, "expected the two queries to overlap, not run one after another")
}
