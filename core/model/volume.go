package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind names a discipline. The set is closed.
type Kind int

const (
	KindConcat Kind = iota
	KindStripe
	KindMirror
	KindParity
	KindCache
)

var kindNames = map[Kind]string{
	KindConcat: "concat",
	KindStripe: "raid0",
	KindMirror: "raid1",
	KindParity: "raid5",
	KindCache:  "cache",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown discipline %q", name)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}

	parsed, err := ParseKind(name)
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

type VolState int

const (
	VolOnline VolState = iota
	VolDegraded
	VolOffline
)

func (s VolState) String() string {
	switch s {
	case VolOnline:
		return "online"
	case VolDegraded:
		return "degraded"
	case VolOffline:
		return "offline"
	default:
		return fmt.Sprintf("VolState(%d)", int(s))
	}
}

// Geometry describes a volume as supplied by the metadata layer.
type Geometry struct {
	ID          uuid.UUID
	Name        string
	Discipline  Kind
	BlockSize   int   // bytes
	StripBlocks int64 // strip size, striped volumes only
	Size        int64 // usable size in blocks
	Chunks      []Chunk
}

func NewGeometry(name string, kind Kind, blockSize int, chunks []Chunk) Geometry {
	for i := range chunks {
		chunks[i].Index = i
		if chunks[i].ID == uuid.Nil {
			chunks[i].ID = uuid.New()
		}
	}

	return Geometry{
		ID:         uuid.New(),
		Name:       name,
		Discipline: kind,
		BlockSize:  blockSize,
		Chunks:     chunks,
	}
}

// Clone returns a copy that shares nothing with g.
func (g Geometry) Clone() Geometry {
	c := g
	c.Chunks = append([]Chunk(nil), g.Chunks...)
	return c
}
