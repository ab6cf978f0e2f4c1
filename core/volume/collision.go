package volume

import (
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/lib/arena"
)

// admitLocked starts a new work unit, or defers it when it conflicts with a
// work unit in flight or with one deferred before it. Deferred work units
// keep arrival order, so overlapping requests run strictly in the order
// they were submitted.
func (v *Volume) admitLocked(h arena.Handle, wu *WorkUnit, b *batch) {
	if blocker, ok := v.collisionLocked(wu, v.deferred); ok {
		wu.state = model.WUDeferred
		v.deferred = append(v.deferred, h)
		v.stats.Deferred++

		v.log.Debugw("collision", "status", "deferred", "blkStart", wu.blkStart, "blkEnd", wu.blkEnd, "blocker", blocker.Index())
		return
	}

	v.pending = append(v.pending, h)
	v.startLocked(h, wu, b)
}

// collisionLocked returns the first work unit wu has to wait for: any
// pending one it conflicts with, or any of the earlier deferred ones.
func (v *Volume) collisionLocked(wu *WorkUnit, earlier []arena.Handle) (arena.Handle, bool) {
	for _, queue := range [][]arena.Handle{v.pending, earlier} {
		for _, oh := range queue {
			other, ok := v.wus.Get(oh)
			if !ok {
				continue
			}

			if wu.conflicts(other) {
				return oh, true
			}
		}
	}

	return arena.Handle{}, false
}

// releaseLocked starts every deferred work unit that no longer conflicts
// with anything in flight or ahead of it. A work unit finishing while the
// queue is being walked triggers another walk instead of a nested one.
func (v *Volume) releaseLocked(b *batch) {
	if v.releasing {
		v.rescan = true
		return
	}

	v.releasing = true
	defer func() { v.releasing = false }()

	for {
		v.rescan = false
		v.admitDeferredLocked(b)

		if !v.rescan {
			return
		}
	}
}

func (v *Volume) admitDeferredLocked(b *batch) {
	i := 0
	for i < len(v.deferred) {
		h := v.deferred[i]

		wu, ok := v.wus.Get(h)
		if !ok {
			v.log.Errorw("collision", "error", "deferred work unit vanished", "handle", h.Index())
			v.deferred = append(v.deferred[:i], v.deferred[i+1:]...)
			continue
		}

		if _, blocked := v.collisionLocked(wu, v.deferred[:i]); blocked {
			i++
			continue
		}

		v.deferred = append(v.deferred[:i], v.deferred[i+1:]...)
		v.pending = append(v.pending, h)
		v.startLocked(h, wu, b)
	}
}
