package discipline

import (
	"fmt"

	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/model"
)

// Mirror keeps an identical copy of the volume on every chunk (RAID 1).
// Writes go to every online chunk, reads to one online chunk picked
// round-robin.
type Mirror struct {
	next int
}

func (m *Mirror) Kind() model.Kind {
	return model.KindMirror
}

func (m *Mirror) Create(geo *model.Geometry) error {
	if err := validate(geo, 2); err != nil {
		return err
	}

	geo.StripBlocks = 0
	geo.Size = m.Size(geo)
	return nil
}

func (m *Mirror) Assemble(geo *model.Geometry) error {
	if err := validate(geo, 2); err != nil {
		return err
	}

	return assemble(m, geo)
}

func (m *Mirror) Size(geo *model.Geometry) int64 {
	if len(geo.Chunks) == 0 {
		return 0
	}

	smallest := geo.Chunks[0].Blocks
	for _, chunk := range geo.Chunks[1:] {
		smallest = min64(smallest, chunk.Blocks)
	}

	return smallest
}

func (m *Mirror) Fanout(geo *model.Geometry, maxBlocks int64) int {
	return int(ceilDiv(maxBlocks, maxTransferBlocks(geo))) * len(geo.Chunks)
}

func (m *Mirror) Split(geo *model.Geometry, blk, nblks int64, op device.Op) ([]Span, error) {
	if err := checkRange(geo, blk, nblks); err != nil {
		return nil, err
	}

	online := make([]int, 0, len(geo.Chunks))
	for i, chunk := range geo.Chunks {
		if chunk.Online() {
			online = append(online, i)
		}
	}

	if len(online) == 0 {
		return nil, fmt.Errorf("%w: no mirror online", ErrChunkOffline)
	}

	targets := online
	if op == device.OpRead {
		targets = online[m.next%len(online) : m.next%len(online)+1]
		m.next++
	}

	maxBlocks := maxTransferBlocks(geo)
	spans := make([]Span, 0, ceilDiv(nblks, maxBlocks)*int64(len(targets)))

	for off := int64(0); off < nblks; off += maxBlocks {
		length := min64(nblks-off, maxBlocks)
		for _, chunk := range targets {
			spans = append(spans, Span{
				Chunk:  chunk,
				Blk:    blk + off,
				NBlks:  length,
				Offset: off,
			})
		}
	}

	return spans, nil
}

// Outcome succeeds as long as every piece of the request reached at least one
// mirror.
func (m *Mirror) Outcome(spans []Span, ok []bool) model.WUState {
	covered := make(map[int64]bool, len(spans))
	failed := false

	for i, span := range spans {
		if ok[i] {
			covered[span.Offset] = true
		} else {
			failed = true
			if _, seen := covered[span.Offset]; !seen {
				covered[span.Offset] = false
			}
		}
	}

	for _, c := range covered {
		if !c {
			return model.WUFailed
		}
	}

	if failed {
		return model.WUPartiallyFailed
	}

	return model.WUOK
}

func (m *Mirror) VolState(chunks []model.Chunk) model.VolState {
	online := 0
	for _, chunk := range chunks {
		if chunk.Online() {
			online++
		}
	}

	switch {
	case online == len(chunks):
		return model.VolOnline
	case online == 0:
		return model.VolOffline
	default:
		return model.VolDegraded
	}
}
