package chunkserver

import (
	"net/http"

	rpc "github.com/pyropy/softraid/rpc/chunkserver"
)

// ChunkServerAPI is the net/rpc receiver registered by the chunk server.
type ChunkServerAPI struct {
	server *ChunkServer
}

func NewChunkServerAPI(chunkServer *ChunkServer) *ChunkServerAPI {
	return &ChunkServerAPI{
		server: chunkServer,
	}
}

// HealthCheck ...
func (a *ChunkServerAPI) HealthCheck(_ *rpc.HealthCheckArgs, reply *rpc.HealthCheckReply) error {
	reply.Status = http.StatusOK

	for _, chunk := range a.server.GetAllChunks() {
		reply.Chunks = append(reply.Chunks, rpc.Chunk{ID: chunk.ID, Size: chunk.Size})
	}

	return nil
}

// CreateChunk ...
func (a *ChunkServerAPI) CreateChunk(args *rpc.CreateChunkRequest, reply *rpc.CreateChunkReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.CreateChunk", "args", args)

	size, err := a.server.CreateChunk(args.ChunkID, args.ChunkSize)
	if err != nil {
		return err
	}

	reply.ChunkID = args.ChunkID
	reply.ChunkSize = size

	return nil
}

// DeleteChunk ...
func (a *ChunkServerAPI) DeleteChunk(args *rpc.DeleteChunkRequest, _ *rpc.DeleteChunkReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.DeleteChunk", "args", args)
	return a.server.DeleteChunk(args.ChunkID)
}

func (a *ChunkServerAPI) ReadBlocks(args *rpc.ReadBlocksArgs, reply *rpc.ReadBlocksReply) error {
	log.Debugw("rpc", "event", "ChunkServerAPI.ReadBlocks", "chunkID", args.ChunkID, "offset", args.Offset, "length", args.Length)

	data, sum, err := a.server.ReadBlocks(args.ChunkID, args.Offset, args.Length)
	if err != nil {
		return err
	}

	reply.Data = data
	reply.CheckSum = sum

	return nil
}

func (a *ChunkServerAPI) WriteBlocks(args *rpc.WriteBlocksArgs, reply *rpc.WriteBlocksReply) error {
	log.Debugw("rpc", "event", "ChunkServerAPI.WriteBlocks", "chunkID", args.ChunkID, "offset", args.Offset, "length", len(args.Data))

	bytesWritten, err := a.server.WriteBlocks(args.ChunkID, args.Data, args.CheckSum, args.Offset)
	if err != nil {
		return err
	}

	reply.BytesWritten = bytesWritten

	return nil
}

var _ rpc.IChunkServer = (*ChunkServerAPI)(nil)
