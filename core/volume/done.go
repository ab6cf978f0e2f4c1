package volume

import (
	"fmt"

	"github.com/pyropy/softraid/core/discipline"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/lib/arena"
	"github.com/pyropy/softraid/lib/utils"
)

var errChunkOffline = discipline.ErrChunkOffline

// ccbDone is the completion callback handed to the device with each CCB.
func (v *Volume) ccbDone(ch arena.Handle, err error) {
	v.mu.Lock()

	var ccb *CCB
	ok := false
	if v.ccbs != nil {
		ccb, ok = v.ccbs.Get(ch)
	}

	if !ok || ccb.state != model.CCBInProgress {
		v.stats.Spurious++
		v.mu.Unlock()
		v.log.Warnw("completion", "status", "ignoring spurious completion", "ccb", ch.Index(), "error", err)
		return
	}

	wu, _ := v.wus.Get(ccb.wu)

	var b batch
	if err != nil {
		ccb.state = model.CCBFailed
		ccb.err = err
		v.log.Warnw("completion", "status", "sub-I/O failed", "chunk", ccb.chunk, "op", ccb.op,
			"blk", ccb.blk, "nblks", ccb.nblks, "error", err)
		v.setChunkStateLocked(ccb.chunk, model.ChunkFailed, &b)
	} else {
		ccb.state = model.CCBOK
	}

	countLocked(wu, ccb)
	if wu.complete == wu.issued {
		v.finishLocked(ccb.wu, wu, &b)
	}

	v.mu.Unlock()
	v.flush(&b)
}

func countLocked(wu *WorkUnit, ccb *CCB) {
	wu.complete++

	if ccb.state == model.CCBOK {
		wu.succeeded++
		return
	}

	wu.failed++
	if wu.err == nil {
		wu.err = ccb.err
	}
}

// finishLocked classifies a work unit whose CCBs have all completed, queues
// its result, returns it and its CCBs to the pools and re-admits deferred
// work.
func (v *Volume) finishLocked(h arena.Handle, wu *WorkUnit, b *batch) {
	ok := make([]bool, len(wu.ccbs))
	for i, ch := range wu.ccbs {
		ccb, _ := v.ccbs.Get(ch)
		ok[i] = ccb.state == model.CCBOK
	}

	wu.state = v.disc.Outcome(wu.spans, ok)

	res := Result{
		Handle:    h,
		State:     wu.state,
		Bytes:     v.transferred(wu.spans, ok),
		Issued:    wu.issued,
		Succeeded: wu.succeeded,
		Failed:    wu.failed,
	}

	switch wu.state {
	case model.WUFailed:
		res.Err = fmt.Errorf("%w: %w", ErrIOFailed, wu.err)
		v.stats.Failed++
	case model.WUPartiallyFailed:
		v.stats.PartiallyFailed++
	}
	v.stats.Completed++

	for _, ch := range wu.ccbs {
		if err := v.ccbs.Free(ch); err != nil {
			v.log.Errorw("completion", "error", err, "ccb", ch.Index())
		}
	}

	v.pending = utils.RemoveFirst(v.pending, h)
	b.results = append(b.results, completion{done: wu.done, res: res})

	if err := v.wus.Free(h); err != nil {
		v.log.Errorw("completion", "error", err, "workUnit", h.Index())
	}

	if len(v.deferred) > 0 {
		v.releaseLocked(b)
	}

	if v.wus.InUse() == 0 {
		for _, idle := range v.waiters {
			close(idle)
		}
		v.waiters = nil
	}
}

// transferred counts each piece of the request once, however many copies of
// it were written.
func (v *Volume) transferred(spans []discipline.Span, ok []bool) int64 {
	done := make(map[int64]int64, len(spans))
	for i, span := range spans {
		if ok[i] {
			done[span.Offset] = span.NBlks
		}
	}

	var blocks int64
	for _, n := range done {
		blocks += n
	}

	return blocks * int64(v.geo.BlockSize)
}
