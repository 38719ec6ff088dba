package coverage

import (
	"hash/fnv"
	"sort"
	"sync"
)

const shardCount = 32

// Map is the shared coverage accumulator, keyed by canonical source path.
// It shards its storage by path hash so that concurrent merges of disjoint
// paths never block each other; a single path's merges are serialized by
// that path's shard lock.
type Map struct {
	shards [shardCount]*shard
}

type shard struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMap creates an empty, ready-to-use coverage map.
func NewMap() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i] = &shard{records: make(map[string]*Record)}
	}
	return m
}

func (m *Map) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// MergeRecord merges rec into the map under the given canonical key,
// creating the entry if absent.
func (m *Map) MergeRecord(key string, rec *Record) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[key]
	if !ok {
		s.records[key] = rec
		return
	}
	s.records[key] = Merge(existing, rec)
}

// Get returns the record for a key and whether it was present.
func (m *Map) Get(key string) (*Record, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok
}

// Delete removes a key from the map.
func (m *Map) Delete(key string) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// Rename moves the record at oldKey to newKey, merging if newKey is
// already occupied. Used by the post-processor's path rewriting step.
func (m *Map) Rename(oldKey, newKey string) {
	if oldKey == newKey {
		return
	}
	old, ok := m.Get(oldKey)
	if !ok {
		return
	}
	m.Delete(oldKey)
	m.MergeRecord(newKey, old)
}

// Keys returns all keys currently in the map, sorted lexicographically —
// the stable order the Emitter walks the map in.
func (m *Map) Keys() []string {
	var keys []string
	for _, s := range m.shards {
		s.mu.Lock()
		for k := range s.records {
			keys = append(keys, k)
		}
		s.mu.Unlock()
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.Lock()
		total += len(s.records)
		s.mu.Unlock()
	}
	return total
}

// Range walks every key/record pair in sorted key order. The callback must
// not mutate the map.
func (m *Map) Range(fn func(key string, rec *Record)) {
	for _, key := range m.Keys() {
		if rec, ok := m.Get(key); ok {
			fn(key, rec)
		}
	}
}
