// Package syncmap provides a sharded, string-keyed concurrent map.
//
// The original Rust implementation keyed its file and hash indices with
// dashmap::DashMap. Go has no equivalent in the standard library; this is a
// small fixed-shard map with per-shard RWMutex, which keeps contention low
// without pulling in a generic concurrent-map dependency that none of the
// reference repos use.
package syncmap

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// Map is a concurrent map[string]V sharded across shardCount buckets.
type Map[V any] struct {
	shards [shardCount]*shard[V]
}

type shard[V any] struct {
	mu   sync.RWMutex
	data map[string]V
}

// New creates an empty Map.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i] = &shard[V]{data: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// Get returns the value stored for key, if any.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (m *Map[V]) Set(key string, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key, returning the previous value if present.
func (m *Map[V]) Delete(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	return v, ok
}

// Update atomically applies fn to the current value for key (zero value if
// absent) and stores the result. fn's return bool controls whether the
// entry is kept (true) or deleted (false).
func (m *Map[V]) Update(key string, fn func(V, bool) (V, bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	next, keep := fn(cur, ok)
	if keep {
		s.data[key] = next
	} else if ok {
		delete(s.data, key)
	}
}

// Keys returns a snapshot of all keys currently present.
func (m *Map[V]) Keys() []string {
	var keys []string
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.data {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// KeysWithPrefix returns a snapshot of keys having the given prefix.
func (m *Map[V]) KeysWithPrefix(prefix string) []string {
	var keys []string
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.data {
			if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
	}
	return keys
}

// Len returns the total number of entries across all shards.
func (m *Map[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.data)
		s.mu.RUnlock()
	}
	return n
}
