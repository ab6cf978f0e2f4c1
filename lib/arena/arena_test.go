package arena

import (
	"errors"
	"testing"
)

type item struct {
	n    int
	tags []string
}

func TestArena_AllocUntilExhausted(t *testing.T) {
	a := New[item](3)

	var handles []Handle
	for i := 0; i < 3; i++ {
		h, v, ok := a.Alloc()
		if !ok {
			t.Fatalf("alloc %d failed", i)
		}
		v.n = i
		handles = append(handles, h)
	}

	if _, _, ok := a.Alloc(); ok {
		t.Fatal("expected exhausted arena")
	}
	if a.Available() != 0 || a.InUse() != 3 {
		t.Errorf("unexpected counts: available=%d inuse=%d", a.Available(), a.InUse())
	}

	for i, h := range handles {
		v, ok := a.Get(h)
		if !ok {
			t.Fatalf("handle %d did not resolve", i)
		}
		if v.n != i {
			t.Errorf("expected %d, got %d", i, v.n)
		}
	}
}

func TestArena_StaleHandle(t *testing.T) {
	a := New[item](1)

	h1, v, _ := a.Alloc()
	v.tags = append(v.tags, "first")

	if err := a.Free(h1); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(h1); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected ErrStaleHandle on double free, got %v", err)
	}

	h2, v2, ok := a.Alloc()
	if !ok {
		t.Fatal("alloc after free failed")
	}
	if h2.Index() != h1.Index() {
		t.Errorf("expected slot reuse, got %d and %d", h1.Index(), h2.Index())
	}
	if len(v2.tags) != 0 {
		t.Errorf("expected zeroed slot, got %v", v2.tags)
	}
	if _, ok := a.Get(h1); ok {
		t.Error("stale handle resolved after reuse")
	}
	if _, ok := a.Get(h2); !ok {
		t.Error("fresh handle did not resolve")
	}
}

func TestArena_ZeroHandle(t *testing.T) {
	a := New[item](2)

	var h Handle
	if !h.IsZero() {
		t.Fatal("zero handle reports non-zero")
	}
	if _, ok := a.Get(h); ok {
		t.Error("zero handle resolved")
	}
	if err := a.Free(h); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected ErrStaleHandle, got %v", err)
	}

	h, _, _ = a.Alloc()
	if h.IsZero() {
		t.Error("allocated handle is zero")
	}
}

func TestArena_HandleFromOtherArena(t *testing.T) {
	old := New[item](2)
	h, _, _ := old.Alloc()

	fresh := New[item](2)
	nh, v, _ := fresh.Alloc()
	v.n = 42

	if h.Index() != nh.Index() {
		t.Fatalf("expected both arenas to hand out slot %d first", h.Index())
	}

	if _, ok := fresh.Get(h); ok {
		t.Error("handle of a previous arena resolved in a new one")
	}
	if err := fresh.Free(h); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected ErrStaleHandle, got %v", err)
	}

	if got, ok := fresh.Get(nh); !ok || got.n != 42 {
		t.Error("own handle no longer resolves")
	}
}
