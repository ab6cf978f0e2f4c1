package volume

import (
	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/discipline"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/lib/arena"
)

// WorkUnit tracks one client request and the sub-I/Os issued for it.
type WorkUnit struct {
	blkStart int64
	blkEnd   int64
	op       device.Op
	buf      []byte

	spans []discipline.Span
	ccbs  []arena.Handle

	issued    int
	complete  int
	succeeded int
	failed    int

	state model.WUState
	err   error // first sub-I/O error

	done func(Result)
}

// overlaps reports whether the two block ranges intersect.
func (wu *WorkUnit) overlaps(other *WorkUnit) bool {
	return wu.blkStart < other.blkEnd && other.blkStart < wu.blkEnd
}

// conflicts reports whether wu has to wait for other. Readers share a range.
func (wu *WorkUnit) conflicts(other *WorkUnit) bool {
	if wu.op == device.OpRead && other.op == device.OpRead {
		return false
	}

	return wu.overlaps(other)
}

// CCB is one physical sub-I/O against a single chunk.
type CCB struct {
	wu    arena.Handle
	chunk int
	blk   int64 // chunk relative
	nblks int64
	off   int64 // byte offset on the device
	buf   []byte
	op    device.Op
	state model.CCBState
	err   error
}

// Result is delivered to the submitter once every sub-I/O has finished.
type Result struct {
	Handle    arena.Handle
	State     model.WUState
	Bytes     int64 // bytes transferred
	Issued    int
	Succeeded int
	Failed    int
	Err       error
}

type submission struct {
	ccb arena.Handle
	dev device.Device
	op  device.Op
	off int64
	buf []byte
}

type completion struct {
	done func(Result)
	res  Result
}

// batch collects the side effects produced under the volume lock so they can
// run after it is released.
type batch struct {
	changes []ChunkStateChange
	results []completion
	submits []submission
}
