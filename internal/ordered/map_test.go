package ordered

import (
	"slices"
	"testing"
)

func TestMap(t *testing.T) {
	t.Parallel()

	t.Run("iterates in insertion order", func(t *testing.T) {
		t.Parallel()

		m := NewMap[string, int]()
		m.Store("c", 3)
		m.Store("a", 1)
		m.Store("b", 2)

		var keys []string
		for k := range m.All() {
			keys = append(keys, k)
		}
		if !slices.Equal(keys, []string{"c", "a", "b"}) {
			t.Errorf("unexpected order: %v", keys)
		}
	})

	t.Run("overwriting keeps position", func(t *testing.T) {
		t.Parallel()

		m := NewMap[string, int]()
		m.Store("a", 1)
		m.Store("b", 2)
		m.Store("a", 10)

		if !slices.Equal(m.Keys(), []string{"a", "b"}) {
			t.Errorf("unexpected keys: %v", m.Keys())
		}
		if v, _ := m.Get("a"); v != 10 {
			t.Errorf("expected 10, got %d", v)
		}
	})

	t.Run("StoreIfAbsent keeps the first value", func(t *testing.T) {
		t.Parallel()

		m := NewMap[string, string]()
		if !m.StoreIfAbsent("k", "first") {
			t.Fatal("expected first store to succeed")
		}
		if m.StoreIfAbsent("k", "second") {
			t.Fatal("expected second store to be rejected")
		}
		if v, _ := m.Get("k"); v != "first" {
			t.Errorf("expected first, got %q", v)
		}
		if m.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", m.Len())
		}
	})

	t.Run("early break stops iteration", func(t *testing.T) {
		t.Parallel()

		m := NewMap[int, int]()
		for i := range 5 {
			m.Store(i, i)
		}
		count := 0
		for range m.All() {
			count++
			if count == 2 {
				break
			}
		}
		if count != 2 {
			t.Errorf("expected 2 iterations, got %d", count)
		}
	})

	t.Run("Clear empties the map", func(t *testing.T) {
		t.Parallel()

		m := NewMap[string, int]()
		m.Store("a", 1)
		m.Clear()
		if m.Len() != 0 || m.Has("a") {
			t.Error("expected empty map after Clear")
		}
		m.Store("b", 2)
		if !slices.Equal(m.Keys(), []string{"b"}) {
			t.Errorf("unexpected keys after reuse: %v", m.Keys())
		}
	})
}
