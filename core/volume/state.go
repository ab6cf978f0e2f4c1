package volume

import (
	"fmt"

	"github.com/pyropy/softraid/core/model"
)

func (v *Volume) ChunkState(i int) (model.ChunkState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if i < 0 || i >= len(v.geo.Chunks) {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchChunk, i)
	}

	return v.geo.Chunks[i].State, nil
}

// SetChunkState is the administrative chunk state transition. It is
// serialized with request splitting and completion processing.
func (v *Volume) SetChunkState(i int, state model.ChunkState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: chunk state %s", ErrInvalidRequest, state)
	}

	v.mu.Lock()
	if i < 0 || i >= len(v.geo.Chunks) {
		v.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchChunk, i)
	}

	var b batch
	v.setChunkStateLocked(i, state, &b)
	v.mu.Unlock()

	v.flush(&b)
	return nil
}

func (v *Volume) VolState() model.VolState {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.volState
}

func (v *Volume) setChunkStateLocked(i int, state model.ChunkState, b *batch) {
	from := v.geo.Chunks[i].State
	if from == state {
		return
	}

	v.geo.Chunks[i].State = state
	v.volState = v.disc.VolState(v.geo.Chunks)
	v.stateSeq++

	states := make([]model.ChunkState, len(v.geo.Chunks))
	for j, chunk := range v.geo.Chunks {
		states[j] = chunk.State
	}

	v.log.Warnw("chunk", "status", "state changed", "chunk", i, "from", from, "to", state, "volState", v.volState)

	b.changes = append(b.changes, ChunkStateChange{
		Volume:   v.geo.ID,
		Seq:      v.stateSeq,
		Chunk:    i,
		From:     from,
		To:       state,
		States:   states,
		VolState: v.volState,
	})
}
