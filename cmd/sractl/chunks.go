package main

import (
	"errors"
	"fmt"
	"net/rpc"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/lib/utils"
	rpcChunkServer "github.com/pyropy/softraid/rpc/chunkserver"
)

var (
	ErrInvalidChunkSpec = errors.New("invalid chunk spec")
	ErrVolatileDevice   = errors.New("memory devices do not keep data between runs")
)

// parseChunkSpec parses "<descriptor>@<blocks>", for example
// "file:/var/lib/raid/c0@2048".
func parseChunkSpec(spec string) (model.Chunk, error) {
	i := strings.LastIndex(spec, "@")
	if i <= 0 || i == len(spec)-1 {
		return model.Chunk{}, fmt.Errorf("%w: %q", ErrInvalidChunkSpec, spec)
	}

	blocks, err := strconv.ParseInt(spec[i+1:], 10, 64)
	if err != nil || blocks <= 0 {
		return model.Chunk{}, fmt.Errorf("%w: %q", ErrInvalidChunkSpec, spec)
	}

	return model.Chunk{
		ID:     uuid.New(),
		Device: spec[:i],
		Blocks: blocks,
	}, nil
}

// checkChunkDevices rejects devices a recorded volume cannot be assembled
// from again.
func checkChunkDevices(chunks []model.Chunk) error {
	var seen []string
	for _, chunk := range chunks {
		if strings.HasPrefix(chunk.Device, "mem:") {
			return fmt.Errorf("%w: chunk %s", ErrVolatileDevice, chunk.Device)
		}

		if utils.Contains(seen, chunk.Device) {
			return fmt.Errorf("%w: %s used twice", ErrInvalidChunkSpec, chunk.Device)
		}
		seen = append(seen, chunk.Device)
	}

	return nil
}

// provisionRemote creates the backing chunk on a chunk server for
// descriptors naming only the server ("rpc://host:port") and rewrites the
// descriptor to address the new chunk.
func provisionRemote(chunk *model.Chunk, size int64) error {
	if !strings.HasPrefix(chunk.Device, "rpc://") {
		return nil
	}

	addr := strings.TrimPrefix(chunk.Device, "rpc://")
	if strings.Contains(addr, "/") {
		return nil
	}

	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return err
	}
	defer client.Close()

	args := &rpcChunkServer.CreateChunkRequest{ChunkID: chunk.ID, ChunkSize: size}
	reply := &rpcChunkServer.CreateChunkReply{}
	if err := client.Call("ChunkServerAPI.CreateChunk", args, reply); err != nil {
		return err
	}

	chunk.Device = fmt.Sprintf("rpc://%s/%s", addr, reply.ChunkID)
	log.Infow("create", "status", "provisioned remote chunk", "chunk", reply.ChunkID, "server", addr, "size", reply.ChunkSize)

	return nil
}

func chunkBytes(geo *model.Geometry, chunk model.Chunk) int64 {
	return (chunk.DataOffset + chunk.Blocks) * int64(geo.BlockSize)
}
