// Package shardmap provides a small sharded, lock-per-bucket map used by the
// query cache's two hot tables (query-id lookup and query-data storage).
//
// Readers (cache lookups) vastly outnumber writers (new queries, new
// entries), so a single global RWMutex would still serialize every writer
// against every other writer even though writes to unrelated keys have
// nothing to do with each other. Splitting the map into a fixed number of
// independently-locked shards, picked by hashing the key with xxhash, keeps
// unrelated keys out of each other's way while staying a plain map under the
// hood — the same trade-off the reference implementation makes with
// dashmap's sharded buckets.
package shardmap

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shardCount is the number of independent buckets. A power of two so the
// shard index can be taken with a mask instead of a division.
const shardCount = 32

// Map is a sharded map from K to V. The zero value is not usable; use New.
type Map[K comparable, V any] struct {
	shards [shardCount]shard[K, V]
}

type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New creates an empty sharded map.
func New[K comparable, V any]() *Map[K, V] {
	sm := &Map[K, V]{}
	for i := range sm.shards {
		sm.shards[i].m = make(map[K]V)
	}
	return sm
}

// hashable lets a key type provide its own cheap, stable shard key instead
// of paying for fmt.Sprintf's reflection every lookup. Types that don't
// implement it (a driver's own plain parameter type, typically) fall back
// to %v formatting, which is correct for any comparable type but not free.
type hashable interface {
	ShardKey() string
}

func hashKey[K comparable](key K) uint64 {
	if h, ok := any(key).(hashable); ok {
		return xxhash.Sum64String(h.ShardKey())
	}
	return xxhash.Sum64String(fmt.Sprintf("%v", key))
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	h := hashKey(key)
	return &m.shards[h&(shardCount-1)]
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value for key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// GetOrInsertWith returns the existing value for key, or computes and stores
// a new one via make if absent, atomically with respect to other callers
// hashing to the same shard. This backs QueryId minting: two goroutines
// racing to register the same (QueryType, parameter) pair both land on the
// same shard lock and exactly one wins the insert.
func (m *Map[K, V]) GetOrInsertWith(key K, make func() V) V {
	s := m.shardFor(key)

	s.mu.RLock()
	if v, ok := s.m[key]; ok {
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v
	}
	v := make()
	s.m[key] = v
	return v
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Range calls f for every entry in the map. f must not call back into the
// Map. Iteration order is unspecified and shards are visited one at a time,
// so a concurrent writer can cause an entry to be seen, missed, or seen in a
// stale state — acceptable for this map's only consumer, cycle diagnostics.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			if !f(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
