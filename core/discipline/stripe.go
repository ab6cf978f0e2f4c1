package discipline

import (
	"fmt"

	"github.com/pyropy/softraid/core/constants"
	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/model"
)

// Stripe distributes fixed size strips round-robin over the chunks (RAID 0).
type Stripe struct{}

func (s *Stripe) Kind() model.Kind {
	return model.KindStripe
}

func (s *Stripe) Create(geo *model.Geometry) error {
	if geo.StripBlocks == 0 {
		geo.StripBlocks = constants.DEFAULT_STRIP_BLOCKS
	}

	if err := s.validate(geo); err != nil {
		return err
	}

	geo.Size = s.Size(geo)
	return nil
}

func (s *Stripe) Assemble(geo *model.Geometry) error {
	if err := s.validate(geo); err != nil {
		return err
	}

	return assemble(s, geo)
}

func (s *Stripe) validate(geo *model.Geometry) error {
	if err := validate(geo, 2); err != nil {
		return err
	}

	if geo.StripBlocks <= 0 {
		return fmt.Errorf("%w: strip size %d", ErrInvalidGeometry, geo.StripBlocks)
	}

	for i, chunk := range geo.Chunks {
		if chunk.Blocks < geo.StripBlocks {
			return fmt.Errorf("%w: chunk %d smaller than one strip", ErrInvalidGeometry, i)
		}
	}

	return nil
}

// Size uses the smallest chunk, rounded down to whole strips, on every chunk.
func (s *Stripe) Size(geo *model.Geometry) int64 {
	if len(geo.Chunks) == 0 || geo.StripBlocks <= 0 {
		return 0
	}

	smallest := geo.Chunks[0].Blocks
	for _, chunk := range geo.Chunks[1:] {
		smallest = min64(smallest, chunk.Blocks)
	}

	return smallest / geo.StripBlocks * geo.StripBlocks * int64(len(geo.Chunks))
}

// Fanout counts every strip a request can touch, each cut into as many
// transfers as a whole strip needs.
func (s *Stripe) Fanout(geo *model.Geometry, maxBlocks int64) int {
	strips := ceilDiv(maxBlocks, geo.StripBlocks) + 1
	return int(strips * ceilDiv(geo.StripBlocks, maxTransferBlocks(geo)))
}

func (s *Stripe) Split(geo *model.Geometry, blk, nblks int64, _ device.Op) ([]Span, error) {
	if err := checkRange(geo, blk, nblks); err != nil {
		return nil, err
	}

	n := int64(len(geo.Chunks))
	strip := geo.StripBlocks
	maxBlocks := maxTransferBlocks(geo)
	spans := make([]Span, 0, ceilDiv(nblks, strip)+1)

	lbaoffs := blk
	leftover := nblks

	for leftover > 0 {
		stripNo := lbaoffs / strip
		inStrip := lbaoffs % strip
		chunk := int(stripNo % n)

		if !geo.Chunks[chunk].Online() {
			return nil, fmt.Errorf("%w: chunk %d is %s", ErrChunkOffline, chunk, geo.Chunks[chunk].State)
		}

		length := min64(leftover, strip-inStrip, maxBlocks)
		spans = append(spans, Span{
			Chunk:  chunk,
			Blk:    stripNo/n*strip + inStrip,
			NBlks:  length,
			Offset: lbaoffs - blk,
		})

		lbaoffs += length
		leftover -= length
	}

	return spans, nil
}

func (s *Stripe) Outcome(_ []Span, ok []bool) model.WUState {
	return allOK(ok)
}

func (s *Stripe) VolState(chunks []model.Chunk) model.VolState {
	return allOnline(chunks)
}
