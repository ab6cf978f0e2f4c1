package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type ChunkState int

const (
	ChunkOnline ChunkState = iota
	ChunkOffline
	ChunkFailed
)

var chunkStateNames = map[ChunkState]string{
	ChunkOnline:  "online",
	ChunkOffline: "offline",
	ChunkFailed:  "failed",
}

func (s ChunkState) String() string {
	if name, ok := chunkStateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ChunkState(%d)", int(s))
}

func (s ChunkState) Valid() bool {
	_, ok := chunkStateNames[s]
	return ok
}

// ParseChunkState parses the lower case state name used by String.
func ParseChunkState(name string) (ChunkState, error) {
	for s, n := range chunkStateNames {
		if n == name {
			return s, nil
		}
	}

	return 0, fmt.Errorf("unknown chunk state %q", name)
}

func (s ChunkState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ChunkState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}

	parsed, err := ParseChunkState(name)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// Chunk is one backing extent of a volume.
type Chunk struct {
	ID         uuid.UUID
	Index      int
	Blocks     int64  // usable capacity in blocks
	DataOffset int64  // blocks reserved in front of the data area
	Device     string // device descriptor, see device.Open
	State      ChunkState
}

func (c Chunk) Online() bool {
	return c.State == ChunkOnline
}
