package chunkserver

import (
	"github.com/google/uuid"
)

type HealthCheckArgs struct {
}

type HealthCheckReply struct {
	Status int
	Chunks []Chunk
}

type Chunk struct {
	ID   uuid.UUID
	Size int64
}

type CreateChunkRequest struct {
	ChunkID   uuid.UUID
	ChunkSize int64
}

type CreateChunkReply struct {
	ChunkID   uuid.UUID
	ChunkSize int64
}

type DeleteChunkRequest struct {
	ChunkID uuid.UUID
}

type DeleteChunkReply struct {
}

type ReadBlocksArgs struct {
	ChunkID uuid.UUID
	Offset  int64
	Length  int
}

type ReadBlocksReply struct {
	Data     []byte
	CheckSum int
}

type WriteBlocksArgs struct {
	ChunkID  uuid.UUID
	Offset   int64
	Data     []byte
	CheckSum int
}

type WriteBlocksReply struct {
	BytesWritten int
}

type IChunkServer interface {
	HealthCheck(args *HealthCheckArgs, reply *HealthCheckReply) error
	CreateChunk(args *CreateChunkRequest, reply *CreateChunkReply) error
	DeleteChunk(args *DeleteChunkRequest, reply *DeleteChunkReply) error
	ReadBlocks(args *ReadBlocksArgs, reply *ReadBlocksReply) error
	WriteBlocks(args *WriteBlocksArgs, reply *WriteBlocksReply) error
}
