package volume

import (
	"context"
	"fmt"

	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/lib/arena"
)

// SubmitRW starts a transfer of nblks blocks at logical block blk. buf must
// hold exactly nblks blocks and stays borrowed until done runs.
//
// Range errors and pool exhaustion are returned synchronously and leave no
// state behind. Otherwise done is called exactly once, possibly before
// SubmitRW returns.
func (v *Volume) SubmitRW(blk, nblks int64, op device.Op, buf []byte, done func(Result)) (arena.Handle, error) {
	if op != device.OpRead && op != device.OpWrite {
		return arena.Handle{}, fmt.Errorf("%w: op %s", ErrInvalidRequest, op)
	}

	bs := int64(v.geo.BlockSize)
	if nblks <= 0 || int64(len(buf)) != nblks*bs {
		return arena.Handle{}, fmt.Errorf("%w: %d blocks with a buffer of %d bytes", ErrInvalidRequest, nblks, len(buf))
	}

	if nblks > v.maxRequestBlocks {
		return arena.Handle{}, fmt.Errorf("%w: %d blocks, limit %d", ErrRequestTooLarge, nblks, v.maxRequestBlocks)
	}

	v.mu.Lock()

	h, err := v.constructLocked(blk, nblks, op, buf, done)
	if err != nil {
		v.stats.Rejected++
		v.mu.Unlock()
		return arena.Handle{}, err
	}

	var b batch
	wu, _ := v.wus.Get(h)
	v.admitLocked(h, wu, &b)
	v.mu.Unlock()

	v.flush(&b)
	return h, nil
}

// constructLocked splits the request and takes a work unit and one CCB per
// span. Nothing is allocated unless every allocation can succeed.
func (v *Volume) constructLocked(blk, nblks int64, op device.Op, buf []byte, done func(Result)) (arena.Handle, error) {
	if v.closed {
		return arena.Handle{}, ErrVolumeClosed
	}

	if v.wus == nil {
		return arena.Handle{}, fmt.Errorf("%w: resources not allocated", ErrResourceExhausted)
	}

	spans, err := v.disc.Split(&v.geo, blk, nblks, op)
	if err != nil {
		return arena.Handle{}, err
	}

	if v.ccbs.Available() < len(spans) {
		return arena.Handle{}, fmt.Errorf("%w: need %d ccbs, %d free", ErrResourceExhausted, len(spans), v.ccbs.Available())
	}

	h, wu, ok := v.wus.Alloc()
	if !ok {
		return arena.Handle{}, fmt.Errorf("%w: no free work unit", ErrResourceExhausted)
	}

	bs := int64(v.geo.BlockSize)

	wu.blkStart = blk
	wu.blkEnd = blk + nblks
	wu.op = op
	wu.buf = buf
	wu.spans = spans
	wu.ccbs = make([]arena.Handle, 0, len(spans))
	wu.done = done

	for _, span := range spans {
		ch, ccb, _ := v.ccbs.Alloc()

		ccb.wu = h
		ccb.chunk = span.Chunk
		ccb.blk = span.Blk
		ccb.nblks = span.NBlks
		ccb.off = (v.geo.Chunks[span.Chunk].DataOffset + span.Blk) * bs
		ccb.buf = buf[span.Offset*bs : (span.Offset+span.NBlks)*bs]
		ccb.op = op
		ccb.state = model.CCBFree

		wu.ccbs = append(wu.ccbs, ch)
	}

	// counted before anything is dispatched
	wu.issued = len(wu.ccbs)
	wu.state = model.WUConstructed
	v.stats.Submitted++

	return h, nil
}

// startLocked moves an admitted work unit in flight. CCBs whose chunk left
// the online state while the work unit was deferred fail without being
// submitted.
func (v *Volume) startLocked(h arena.Handle, wu *WorkUnit, b *batch) {
	wu.state = model.WUInProgress

	for _, ch := range wu.ccbs {
		ccb, _ := v.ccbs.Get(ch)

		chunk := v.geo.Chunks[ccb.chunk]
		if !chunk.Online() {
			ccb.state = model.CCBFailed
			ccb.err = fmt.Errorf("%w: chunk %d is %s", errChunkOffline, ccb.chunk, chunk.State)
			countLocked(wu, ccb)
			continue
		}

		ccb.state = model.CCBInProgress
		b.submits = append(b.submits, submission{
			ccb: ch,
			dev: v.devices[ccb.chunk],
			op:  ccb.op,
			off: ccb.off,
			buf: ccb.buf,
		})
	}

	if wu.complete == wu.issued {
		v.finishLocked(h, wu, b)
	}
}

// flush runs the side effects collected under the lock: state listeners,
// result callbacks, then device submissions.
func (v *Volume) flush(b *batch) {
	if v.listener != nil {
		for _, change := range b.changes {
			v.listener(change)
		}
	}

	for _, c := range b.results {
		if c.done != nil {
			c.done(c.res)
		}
	}

	for _, s := range b.submits {
		ch := s.ccb
		s.dev.Submit(s.op, s.off, s.buf, func(err error) {
			v.ccbDone(ch, err)
		})
	}
}

// Do submits a request covering buf and waits for its result. If ctx ends
// first the request keeps running and buf stays borrowed until it finishes.
func (v *Volume) Do(ctx context.Context, blk int64, op device.Op, buf []byte) (Result, error) {
	if len(buf)%v.geo.BlockSize != 0 {
		return Result{}, fmt.Errorf("%w: buffer of %d bytes is not a whole number of blocks", ErrInvalidRequest, len(buf))
	}

	results := make(chan Result, 1)
	_, err := v.SubmitRW(blk, int64(len(buf)/v.geo.BlockSize), op, buf, func(r Result) {
		results <- r
	})
	if err != nil {
		return Result{}, err
	}

	select {
	case r := <-results:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
