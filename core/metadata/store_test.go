package metadata

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pyropy/softraid/core/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testGeometry(name string) model.Geometry {
	geo := model.NewGeometry(name, model.KindConcat, 512, []model.Chunk{
		{Blocks: 100, Device: "mem:"},
		{Blocks: 50, Device: "file:/tmp/c1"},
	})
	geo.Size = 150

	return geo
}

func TestStore_CreateGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	geo := testGeometry("vol0")
	if err := s.Create(ctx, geo); err != nil {
		t.Fatal(err)
	}

	if err := s.Create(ctx, geo); !errors.Is(err, ErrVolumeExists) {
		t.Fatalf("expected ErrVolumeExists, got %v", err)
	}

	got, err := s.Get(ctx, "vol0")
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != geo.ID || got.Discipline != model.KindConcat || got.Size != 150 {
		t.Errorf("unexpected geometry %+v", got)
	}
	if len(got.Chunks) != 2 || got.Chunks[1].Device != "file:/tmp/c1" || got.Chunks[1].Index != 1 {
		t.Errorf("unexpected chunks %+v", got.Chunks)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrVolumeNotFound) {
		t.Errorf("expected ErrVolumeNotFound, got %v", err)
	}
}

func TestStore_SetChunkState(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testGeometry("vol0")); err != nil {
		t.Fatal(err)
	}

	if err := s.SetChunkState(ctx, "vol0", 1, model.ChunkFailed); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "vol0")
	if err != nil {
		t.Fatal(err)
	}
	if got.Chunks[0].State != model.ChunkOnline || got.Chunks[1].State != model.ChunkFailed {
		t.Errorf("unexpected chunk states %s, %s", got.Chunks[0].State, got.Chunks[1].State)
	}

	if err := s.SetChunkState(ctx, "vol0", 2, model.ChunkOnline); !errors.Is(err, ErrNoSuchChunk) {
		t.Errorf("expected ErrNoSuchChunk, got %v", err)
	}
}

func TestStore_AllDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := s.Create(ctx, testGeometry(name)); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "b"); !errors.Is(err, ErrVolumeNotFound) {
		t.Errorf("expected ErrVolumeNotFound, got %v", err)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, geo := range all {
		names[geo.Name] = true
	}
	if len(all) != 2 || !names["a"] || !names["c"] {
		t.Errorf("unexpected volumes %v", names)
	}
}

func TestStore_ConcurrentChunkStates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const chunks = 8
	specs := make([]model.Chunk, chunks)
	for i := range specs {
		specs[i] = model.Chunk{Blocks: 10, Device: "mem:"}
	}

	geo := model.NewGeometry("wide", model.KindConcat, 512, specs)
	geo.Size = chunks * 10

	for round := 0; round < 20; round++ {
		if err := s.Put(ctx, geo); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		for i := 0; i < chunks; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.SetChunkState(ctx, "wide", i, model.ChunkFailed); err != nil {
					t.Error(err)
				}
			}(i)
		}
		wg.Wait()

		got, err := s.Get(ctx, "wide")
		if err != nil {
			t.Fatal(err)
		}
		for i, chunk := range got.Chunks {
			if chunk.State != model.ChunkFailed {
				t.Fatalf("round %d: update of chunk %d was lost", round, i)
			}
		}
	}
}

func TestStore_SetChunkStates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testGeometry("vol0")); err != nil {
		t.Fatal(err)
	}

	states := []model.ChunkState{model.ChunkOffline, model.ChunkFailed}
	if err := s.SetChunkStates(ctx, "vol0", states); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "vol0")
	if err != nil {
		t.Fatal(err)
	}
	if got.Chunks[0].State != model.ChunkOffline || got.Chunks[1].State != model.ChunkFailed {
		t.Errorf("unexpected chunk states %s, %s", got.Chunks[0].State, got.Chunks[1].State)
	}

	if err := s.SetChunkStates(ctx, "vol0", states[:1]); !errors.Is(err, ErrNoSuchChunk) {
		t.Errorf("expected ErrNoSuchChunk, got %v", err)
	}
}
