package chunkserver

import (
	"github.com/google/uuid"
	"github.com/pyropy/softraid/lib/checksum"
)

// ChunkServer exports the chunks of a ChunkService as block devices.
type ChunkServer struct {
	*ChunkService

	Cfg *Config
}

func NewChunkServer(cfg *Config) *ChunkServer {
	return &ChunkServer{
		Cfg:          cfg,
		ChunkService: NewChunkService(cfg),
	}
}

// WriteBlocks verifies the transferred payload before it touches the chunk.
func (c *ChunkServer) WriteBlocks(chunkID uuid.UUID, data []byte, sum int, offset int64) (int, error) {
	if err := checksum.Verify(data, sum); err != nil {
		log.Warnw("write", "error", err, "chunkID", chunkID, "offset", offset)
		return 0, err
	}

	return c.WriteChunkBytes(chunkID, data, offset)
}

// ReadBlocks returns the requested range and its checksum.
func (c *ChunkServer) ReadBlocks(chunkID uuid.UUID, offset int64, length int) ([]byte, int, error) {
	data, err := c.ReadChunk(chunkID, offset, length)
	if err != nil {
		return nil, 0, err
	}

	return data, checksum.CalculateCheckSum(data), nil
}
