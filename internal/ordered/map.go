// Package ordered provides an insertion-ordered map.
package ordered

import "iter"

// Map is a key/value store that remembers insertion order. Iteration
// always yields entries in the order their keys were first stored.
// Map is not safe for concurrent use.
type Map[K comparable, V any] struct {
	index map[K]int
	keys  []K
	vals  []V
}

// NewMap returns an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]int)}
}

// Store sets the value for key. A new key is appended to the end; an
// existing key keeps its position.
func (m *Map[K, V]) Store(key K, val V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = val
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

// StoreIfAbsent stores val only if key is not present yet and reports
// whether it did.
func (m *Map[K, V]) StoreIfAbsent(key K, val V) bool {
	if _, ok := m.index[key]; ok {
		return false
	}
	m.Store(key, val)
	return true
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	i, ok := m.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.index[key]
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// All iterates entries in insertion order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, k := range m.keys {
			if !yield(k, m.vals[i]) {
				return
			}
		}
	}
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.index = make(map[K]int)
	m.keys = nil
	m.vals = nil
}
