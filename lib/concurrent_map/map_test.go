package concurrent_map

import "testing"

func TestMap(t *testing.T) {
	m := NewMap[string, int]()

	if !m.SetIfAbsent("a", 1) {
		t.Fatal("expected first SetIfAbsent to store")
	}
	if m.SetIfAbsent("a", 2) {
		t.Fatal("expected second SetIfAbsent to be rejected")
	}

	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Errorf("expected 1, got %d (%v)", v, ok)
	}

	m.Set("b", 3)
	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 4 {
		t.Errorf("expected sum 4, got %d", sum)
	}

	if v, ok := m.Delete("a"); !ok || v != 1 {
		t.Errorf("expected to delete 1, got %d (%v)", v, ok)
	}
	if _, ok := m.Get("a"); ok {
		t.Error("deleted key still present")
	}
}
