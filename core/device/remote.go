package device

import (
	"errors"
	"fmt"
	"net/rpc"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pyropy/softraid/lib/checksum"
	rpcChunkServer "github.com/pyropy/softraid/rpc/chunkserver"
)

var (
	ErrShortRead    = errors.New("chunk server returned short read")
	ErrChunkMissing = errors.New("chunk server does not hold chunk")
)

// Remote is a chunk served by a chunk server over net/rpc.
type Remote struct {
	addr    string
	chunkID uuid.UUID

	mu     sync.RWMutex
	client *rpc.Client
	wg     sync.WaitGroup
	closed bool
}

// DialRemote connects to "host:port/<chunk-id>".
func DialRemote(target string) (*Remote, error) {
	addr, id, ok := strings.Cut(target, "/")
	if !ok {
		return nil, fmt.Errorf("%w: missing chunk id in %q", ErrUnknownDescriptor, target)
	}

	chunkID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}

	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		log.Errorw("remote", "error", "unreachable", "address", addr)
		return nil, err
	}

	r := &Remote{
		addr:    addr,
		chunkID: chunkID,
		client:  client,
	}

	reply, err := r.HealthCheck()
	if err != nil {
		client.Close()
		return nil, err
	}

	for _, chunk := range reply.Chunks {
		if chunk.ID == chunkID {
			return r, nil
		}
	}

	client.Close()
	return nil, fmt.Errorf("%w: %s at %s", ErrChunkMissing, chunkID, addr)
}

func (r *Remote) Submit(op Op, off int64, buf []byte, done func(error)) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		done(ErrDeviceClosed)
		return
	}
	r.wg.Add(1)
	client := r.client
	r.mu.RUnlock()

	var call *rpc.Call
	if op == OpWrite {
		args := &rpcChunkServer.WriteBlocksArgs{
			ChunkID:  r.chunkID,
			Offset:   off,
			Data:     buf,
			CheckSum: checksum.CalculateCheckSum(buf),
		}
		call = client.Go("ChunkServerAPI.WriteBlocks", args, &rpcChunkServer.WriteBlocksReply{}, make(chan *rpc.Call, 1))
	} else {
		args := &rpcChunkServer.ReadBlocksArgs{
			ChunkID: r.chunkID,
			Offset:  off,
			Length:  len(buf),
		}
		call = client.Go("ChunkServerAPI.ReadBlocks", args, &rpcChunkServer.ReadBlocksReply{}, make(chan *rpc.Call, 1))
	}

	go func() {
		defer r.wg.Done()

		<-call.Done
		done(r.finish(call, buf))
	}()
}

func (r *Remote) finish(call *rpc.Call, buf []byte) error {
	if call.Error != nil {
		return call.Error
	}

	reply, ok := call.Reply.(*rpcChunkServer.ReadBlocksReply)
	if !ok {
		return nil
	}

	if err := checksum.Verify(reply.Data, reply.CheckSum); err != nil {
		return err
	}

	if len(reply.Data) != len(buf) {
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, len(reply.Data), len(buf))
	}

	copy(buf, reply.Data)
	return nil
}

// HealthCheck asks the chunk server whether it still serves this chunk.
func (r *Remote) HealthCheck() (*rpcChunkServer.HealthCheckReply, error) {
	var reply rpcChunkServer.HealthCheckReply
	err := r.client.Call("ChunkServerAPI.HealthCheck", &rpcChunkServer.HealthCheckArgs{}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
	return r.client.Close()
}
