// Package increxample is a small, reusable query-system scaffold built on
// top of pkg/incremental: a System bundles a Runtime, a QueryCache, an
// optional read-lock around query execution, and a log book of cache/query
// lifecycle events for tests and examples to assert against.
//
// It exists because pkg/incremental itself is deliberately unopinionated
// about how a program structures its queries (per-query functions, a
// trait-dispatched database, something else entirely) — System is one
// concrete, reusable answer to that question, not part of the core API.
package increxample

import (
	"sync"

	"github.com/aardwolf-sfl/increcache/pkg/incremental"
)

// LogKind identifies one lifecycle event recorded in a System's log book.
type LogKind int

const (
	CacheHit LogKind = iota
	CacheMiss
	QueryStart
	QueryDone
)

// LogEntry is one recorded event, naming the query type involved.
type LogEntry struct {
	Kind  LogKind
	Query string
}

func (e LogEntry) IsCacheHit() bool   { return e.Kind == CacheHit }
func (e LogEntry) IsCacheMiss() bool  { return e.Kind == CacheMiss }
func (e LogEntry) IsQueryStart() bool { return e.Kind == QueryStart }
func (e LogEntry) IsQueryDone() bool  { return e.Kind == QueryDone }

// log is the shared, lockable event list behind a System and all of its
// Clone()s — shared the same way the reference test harness shares its log
// book via Arc<Mutex<Vec<Log>>> across a RealSystem's clones.
type log struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (l *log) record(kind LogKind, query string) {
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{Kind: kind, Query: query})
	l.mu.Unlock()
}

func (l *log) snapshot() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// System wraps a Runtime and a QueryCache sharing one storage group type G
// and one query parameter type K, plus the bookkeeping (locking, logging)
// every non-trivial driver of the core engine ends up writing by hand.
type System[G any, K comparable] struct {
	Runtime *incremental.Runtime[G]
	Queries *incremental.QueryCache[K]

	// UseLock controls whether query execution takes a read lock on the
	// Runtime for the duration of the query body, guaranteeing every input
	// the query reads is consistent with a single point in time. Without it,
	// a concurrent SetInput can be observed mid-query, producing a result
	// that never corresponded to any single revision.
	UseLock bool

	log *log
}

// New creates a System over a freshly initialized storage group.
func New[G any, K comparable](inputs G, useLock bool) *System[G, K] {
	return &System[G, K]{
		Runtime: incremental.NewRuntime(inputs),
		Queries: incremental.NewQueryCache[K](),
		UseLock: useLock,
		log:     &log{},
	}
}

// Clone returns a System sharing this one's cache, lock setting, and log
// book, but with its own Runtime clone (see (*incremental.Runtime).Clone) —
// a fresh, empty query call stack. Hand a clone, never the original, to a
// new goroutine that will issue queries concurrently with this one.
func (s *System[G, K]) Clone() *System[G, K] {
	return &System[G, K]{
		Runtime: s.Runtime.Clone(),
		Queries: s.Queries,
		UseLock: s.UseLock,
		log:     s.log,
	}
}

// LogBook returns a snapshot of every lifecycle event recorded so far across
// this System and any clones of it.
func (s *System[G, K]) LogBook() []LogEntry {
	return s.log.snapshot()
}

// Query runs f under param, memoizing the result keyed by (Q, param). A
// cache hit skips f entirely. f receives the System itself so it can issue
// nested queries (see TryQuery), the way a query body in the reference
// system receives an AnySystem handle back to its own query system.
func Query[Q any, O any, G any, K comparable](s *System[G, K], param K, f func(param K, ctx *incremental.QueryContext[G], sys *System[G, K]) O) O {
	out, err := TryQuery[Q, O](s, param, func(param K, ctx *incremental.QueryContext[G], sys *System[G, K]) (O, error) {
		return f(param, ctx, sys), nil
	})
	if err != nil {
		panic(err)
	}
	return out
}

// TryQuery is Query for query bodies that can fail — in particular, that
// can return a pkg/incremental.Cycle from a nested call that would
// otherwise recurse into itself.
func TryQuery[Q any, O any, G any, K comparable](s *System[G, K], param K, f func(param K, ctx *incremental.QueryContext[G], sys *System[G, K]) (O, error)) (O, error) {
	name := incremental.TypeFor[Q]().String()

	if out, ok := incremental.Cached[Q, O](s.Queries, s.Runtime, param); ok {
		s.log.record(CacheHit, name)
		return out, nil
	}
	s.log.record(CacheMiss, name)

	var unlock func()
	if s.UseLock {
		unlock = s.Runtime.LockReadonly()
	}

	s.log.record(QueryStart, name)
	out, err := incremental.TryInsertWith[Q, O](s.Queries, s.Runtime, param, func(p K, ctx *incremental.QueryContext[G]) (O, error) {
		return f(p, ctx, s)
	})
	s.log.record(QueryDone, name)

	if unlock != nil {
		unlock()
	}

	return out, err
}
