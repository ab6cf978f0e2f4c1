// Package discipline holds the RAID disciplines a volume can run under.
//
// A Discipline maps a logical block range onto chunk-relative spans and
// decides how many failed sub-I/Os a request tolerates. It carries no I/O
// state of its own; the volume engine calls it under the volume lock.
package discipline

import (
	"errors"
	"fmt"

	"github.com/pyropy/softraid/core/constants"
	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/model"
)

var (
	ErrUnsupportedDiscipline = errors.New("unsupported discipline")
	ErrOutOfRange            = errors.New("request beyond end of volume")
	ErrChunkOffline          = errors.New("chunk not online")
	ErrTooFewChunks          = errors.New("too few chunks for discipline")
	ErrInvalidGeometry       = errors.New("invalid volume geometry")
	ErrGeometryMismatch      = errors.New("volume size does not match chunk geometry")
)

// Span is one contiguous piece of a request on a single chunk.
type Span struct {
	Chunk  int   // chunk index
	Blk    int64 // first block relative to the chunk data area
	NBlks  int64
	Offset int64 // block offset of the span within the request
}

type Discipline interface {
	Kind() model.Kind
	// Create validates a fresh geometry and fills in derived fields.
	Create(geo *model.Geometry) error
	// Assemble validates a geometry loaded from metadata.
	Assemble(geo *model.Geometry) error
	// Size returns the usable volume size in blocks.
	Size(geo *model.Geometry) int64
	// Fanout bounds the number of spans a request of maxBlocks can produce.
	Fanout(geo *model.Geometry, maxBlocks int64) int
	Split(geo *model.Geometry, blk, nblks int64, op device.Op) ([]Span, error)
	// Outcome classifies a finished request from the result of each span.
	Outcome(spans []Span, ok []bool) model.WUState
	VolState(chunks []model.Chunk) model.VolState
}

func New(kind model.Kind) (Discipline, error) {
	switch kind {
	case model.KindConcat:
		return &Concat{}, nil
	case model.KindStripe:
		return &Stripe{}, nil
	case model.KindMirror:
		return &Mirror{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDiscipline, kind)
	}
}

func validate(geo *model.Geometry, minChunks int) error {
	if len(geo.Chunks) < minChunks {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrTooFewChunks, geo.Discipline, minChunks, len(geo.Chunks))
	}

	if geo.BlockSize <= 0 || geo.BlockSize > constants.MAX_TRANSFER {
		return fmt.Errorf("%w: block size %d", ErrInvalidGeometry, geo.BlockSize)
	}

	for i, chunk := range geo.Chunks {
		if chunk.Index != i {
			return fmt.Errorf("%w: chunk %d recorded at index %d", ErrInvalidGeometry, chunk.Index, i)
		}
		if chunk.Blocks <= 0 || chunk.DataOffset < 0 {
			return fmt.Errorf("%w: chunk %d has %d blocks at data offset %d", ErrInvalidGeometry, i, chunk.Blocks, chunk.DataOffset)
		}
		if !chunk.State.Valid() {
			return fmt.Errorf("%w: chunk %d state %s", ErrInvalidGeometry, i, chunk.State)
		}
	}

	return nil
}

func assemble(d Discipline, geo *model.Geometry) error {
	if geo.Discipline != d.Kind() {
		return fmt.Errorf("%w: geometry is %s, discipline is %s", ErrInvalidGeometry, geo.Discipline, d.Kind())
	}

	if size := d.Size(geo); geo.Size != size {
		return fmt.Errorf("%w: recorded %d, chunks provide %d", ErrGeometryMismatch, geo.Size, size)
	}

	return nil
}

func checkRange(geo *model.Geometry, blk, nblks int64) error {
	if blk < 0 || nblks <= 0 || blk > geo.Size || nblks > geo.Size-blk {
		return fmt.Errorf("%w: blocks [%d, %d) on volume of %d", ErrOutOfRange, blk, blk+nblks, geo.Size)
	}

	return nil
}

// maxTransferBlocks is the span length limit imposed by the transport.
func maxTransferBlocks(geo *model.Geometry) int64 {
	n := int64(constants.MAX_TRANSFER / geo.BlockSize)
	if n < 1 {
		return 1
	}

	return n
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

func min64(values ...int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}

	return m
}

// allOK fails the request on any failed span; disciplines without redundancy use it.
func allOK(ok []bool) model.WUState {
	for _, o := range ok {
		if !o {
			return model.WUFailed
		}
	}

	return model.WUOK
}

// allOnline takes the volume offline as soon as one chunk is gone.
func allOnline(chunks []model.Chunk) model.VolState {
	for _, chunk := range chunks {
		if !chunk.Online() {
			return model.VolOffline
		}
	}

	return model.VolOnline
}
