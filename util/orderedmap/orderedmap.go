// Package orderedmap implements a map that remembers the insertion order of its keys, so
// that ranging over it is deterministic.
package orderedmap

import "iter"

// OrderedMap is a map whose iteration order is the order in which keys were first stored.
type OrderedMap[K comparable, V any] struct {
	inner map[K]V
	keys  []K
}

// New returns an empty ordered map.
func New[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored under key and whether it exists.
func (m *OrderedMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Value returns the value stored under key, or the zero value.
func (m *OrderedMap[K, V]) Value(key K) V {
	return m.inner[key]
}

// Store sets the value for key. Overwriting keeps the original position of the key.
func (m *OrderedMap[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = value
}

// Len returns the number of keys.
func (m *OrderedMap[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (m *OrderedMap[K, V]) Keys() []K {
	return m.keys
}

// OrderedRange calls f for each pair in insertion order until f returns false.
func (m *OrderedMap[K, V]) OrderedRange(f func(key K, value V) bool) {
	for _, k := range m.keys {
		if !f(k, m.inner[k]) {
			return
		}
	}
}

// All returns an iterator over the pairs in insertion order.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return m.OrderedRange
}
