package discipline

import (
	"fmt"

	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/model"
)

// Concat appends the address space of each chunk to the previous one.
type Concat struct{}

func (c *Concat) Kind() model.Kind {
	return model.KindConcat
}

func (c *Concat) Create(geo *model.Geometry) error {
	if err := validate(geo, 1); err != nil {
		return err
	}

	geo.StripBlocks = 0
	geo.Size = c.Size(geo)
	return nil
}

func (c *Concat) Assemble(geo *model.Geometry) error {
	if err := validate(geo, 1); err != nil {
		return err
	}

	return assemble(c, geo)
}

func (c *Concat) Size(geo *model.Geometry) int64 {
	var size int64
	for _, chunk := range geo.Chunks {
		size += chunk.Blocks
	}

	return size
}

// Fanout allows one extra span for every chunk boundary a request can cross.
func (c *Concat) Fanout(geo *model.Geometry, maxBlocks int64) int {
	return int(ceilDiv(maxBlocks, maxTransferBlocks(geo))) + len(geo.Chunks) - 1
}

func (c *Concat) Split(geo *model.Geometry, blk, nblks int64, _ device.Op) ([]Span, error) {
	if err := checkRange(geo, blk, nblks); err != nil {
		return nil, err
	}

	maxBlocks := maxTransferBlocks(geo)
	spans := make([]Span, 0, 2)

	lbaoffs := blk
	leftover := nblks
	i := 0
	chunkend := geo.Chunks[0].Blocks

	for leftover > 0 {
		for lbaoffs >= chunkend {
			i++
			if i >= len(geo.Chunks) {
				return nil, fmt.Errorf("%w: block %d", ErrOutOfRange, lbaoffs)
			}
			chunkend += geo.Chunks[i].Blocks
		}

		chunk := geo.Chunks[i]
		if !chunk.Online() {
			return nil, fmt.Errorf("%w: chunk %d is %s", ErrChunkOffline, i, chunk.State)
		}

		length := min64(leftover, chunkend-lbaoffs, maxBlocks)
		spans = append(spans, Span{
			Chunk:  i,
			Blk:    lbaoffs - (chunkend - chunk.Blocks),
			NBlks:  length,
			Offset: lbaoffs - blk,
		})

		lbaoffs += length
		leftover -= length
	}

	return spans, nil
}

func (c *Concat) Outcome(_ []Span, ok []bool) model.WUState {
	return allOK(ok)
}

func (c *Concat) VolState(chunks []model.Chunk) model.VolState {
	return allOnline(chunks)
}
