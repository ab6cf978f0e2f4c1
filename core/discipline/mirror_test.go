package discipline

import (
	"errors"
	"testing"

	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/model"
)

func TestMirror_Split(t *testing.T) {
	geo := newGeometry(t, model.KindMirror, 1000, 800, 900)
	m := &Mirror{}

	if geo.Size != 800 {
		t.Fatalf("expected size of smallest mirror 800, got %d", geo.Size)
	}

	spans, err := m.Split(geo, 10, 20, device.OpWrite)
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 3 {
		t.Fatalf("expected one write span per mirror, got %+v", spans)
	}
	for i, span := range spans {
		if span.Chunk != i || span.Blk != 10 || span.NBlks != 20 || span.Offset != 0 {
			t.Errorf("unexpected span %+v", span)
		}
	}

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		spans, err := m.Split(geo, 10, 20, device.OpRead)
		if err != nil {
			t.Fatal(err)
		}
		if len(spans) != 1 {
			t.Fatalf("expected a single read span, got %+v", spans)
		}
		seen[spans[0].Chunk] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected reads to rotate over all mirrors, got %v", seen)
	}
}

func TestMirror_Degraded(t *testing.T) {
	geo := newGeometry(t, model.KindMirror, 100, 100)
	m := &Mirror{}

	geo.Chunks[0].State = model.ChunkFailed
	if m.VolState(geo.Chunks) != model.VolDegraded {
		t.Error("expected degraded volume")
	}

	for i := 0; i < 4; i++ {
		spans, err := m.Split(geo, 0, 10, device.OpRead)
		if err != nil {
			t.Fatal(err)
		}
		if spans[0].Chunk != 1 {
			t.Errorf("read issued to failed mirror: %+v", spans)
		}
	}

	geo.Chunks[1].State = model.ChunkOffline
	if m.VolState(geo.Chunks) != model.VolOffline {
		t.Error("expected offline volume")
	}
	if _, err := m.Split(geo, 0, 10, device.OpWrite); !errors.Is(err, ErrChunkOffline) {
		t.Errorf("expected ErrChunkOffline, got %v", err)
	}
}

func TestMirror_Outcome(t *testing.T) {
	m := &Mirror{}
	spans := []Span{
		{Chunk: 0, Offset: 0}, {Chunk: 1, Offset: 0},
		{Chunk: 0, Offset: 128}, {Chunk: 1, Offset: 128},
	}

	tests := []struct {
		name     string
		ok       []bool
		expected model.WUState
	}{
		{"all ok", []bool{true, true, true, true}, model.WUOK},
		{"one mirror failed", []bool{false, true, false, true}, model.WUPartiallyFailed},
		{"piece lost", []bool{true, true, false, false}, model.WUFailed},
		{"all failed", []bool{false, false, false, false}, model.WUFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Outcome(spans, tt.ok); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
