package chunkserver

import (
	"errors"
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"sync"

	"github.com/google/uuid"
	concurrentMap "github.com/pyropy/softraid/lib/concurrent_map"
	"github.com/pyropy/softraid/lib/logger"
	"go.uber.org/multierr"
)

var log, _ = logger.New("chunk-service")

var (
	ErrChunkAlreadyExists = errors.New("chunk already exists")
	ErrChunkDoesNotExist  = errors.New("chunk does not exist")
	ErrOutOfRange         = errors.New("transfer beyond end of chunk")
)

type chunkFile struct {
	mu   sync.RWMutex
	id   uuid.UUID
	path string
	size int64
	f    *os.File
}

// ChunkService serves the chunk files stored below one directory.
type ChunkService struct {
	dir    string
	Chunks *concurrentMap.Map[uuid.UUID, *chunkFile]
}

func NewChunkService(cfg *Config) *ChunkService {
	return &ChunkService{
		dir:    cfg.Chunks.Path,
		Chunks: concurrentMap.NewMap[uuid.UUID, *chunkFile](),
	}
}

func GetChunkFilename(id uuid.UUID) string {
	return fmt.Sprintf("%s.chunk", id)
}

func (cs *ChunkService) GetChunkPath(id uuid.UUID) string {
	return fp.Join(cs.dir, GetChunkFilename(id))
}

// Load opens every chunk file already present in the chunk directory.
func (cs *ChunkService) Load() error {
	err := os.MkdirAll(cs.dir, 0750)
	if err != nil && !os.IsExist(err) {
		return err
	}

	matches, err := fp.Glob(fp.Join(cs.dir, "*.chunk"))
	if err != nil {
		return err
	}

	for _, path := range matches {
		name := fp.Base(path)
		id, err := uuid.Parse(name[:len(name)-len(".chunk")])
		if err != nil {
			log.Warnw("load", "status", "skipping foreign file", "path", path)
			continue
		}

		f, err := os.OpenFile(path, os.O_RDWR, 0644)
		if err != nil {
			return err
		}

		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}

		cs.Chunks.Set(id, &chunkFile{id: id, path: path, size: fi.Size(), f: f})
		log.Infow("load", "status", "chunk loaded", "chunkID", id, "size", fi.Size())
	}

	return nil
}

func (cs *ChunkService) CreateChunk(id uuid.UUID, size int64) (int64, error) {
	if _, exists := cs.Chunks.Get(id); exists {
		return 0, ErrChunkAlreadyExists
	}

	err := os.MkdirAll(cs.dir, 0750)
	if err != nil && !os.IsExist(err) {
		return 0, err
	}

	path := cs.GetChunkPath(id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, err
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		return 0, err
	}

	chunk := &chunkFile{id: id, path: path, size: size, f: f}
	if !cs.Chunks.SetIfAbsent(id, chunk) {
		f.Close()
		return 0, ErrChunkAlreadyExists
	}

	return size, nil
}

func (cs *ChunkService) DeleteChunk(id uuid.UUID) error {
	chunk, exists := cs.Chunks.Delete(id)
	if !exists {
		return ErrChunkDoesNotExist
	}

	chunk.mu.Lock()
	defer chunk.mu.Unlock()

	return multierr.Append(chunk.f.Close(), os.Remove(chunk.path))
}

func (cs *ChunkService) ReadChunk(id uuid.UUID, offset int64, length int) ([]byte, error) {
	chunk, exists := cs.Chunks.Get(id)
	if !exists {
		return nil, ErrChunkDoesNotExist
	}

	chunk.mu.RLock()
	defer chunk.mu.RUnlock()

	if offset < 0 || length < 0 || offset+int64(length) > chunk.size {
		return nil, ErrOutOfRange
	}

	data := make([]byte, length)
	_, err := chunk.f.ReadAt(data, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return data, nil
}

func (cs *ChunkService) WriteChunkBytes(id uuid.UUID, data []byte, offset int64) (int, error) {
	chunk, exists := cs.Chunks.Get(id)
	if !exists {
		return 0, ErrChunkDoesNotExist
	}

	chunk.mu.Lock()
	defer chunk.mu.Unlock()

	if offset < 0 || offset+int64(len(data)) > chunk.size {
		return 0, ErrOutOfRange
	}

	return chunk.f.WriteAt(data, offset)
}

type ChunkInfo struct {
	ID   uuid.UUID
	Size int64
}

func (cs *ChunkService) GetAllChunks() []ChunkInfo {
	chunks := make([]ChunkInfo, 0)

	cs.Chunks.Range(func(id uuid.UUID, chunk *chunkFile) bool {
		chunks = append(chunks, ChunkInfo{ID: id, Size: chunk.size})
		return true
	})

	return chunks
}

func (cs *ChunkService) Close() error {
	var err error

	cs.Chunks.Range(func(id uuid.UUID, chunk *chunkFile) bool {
		chunk.mu.Lock()
		err = multierr.Append(err, chunk.f.Close())
		chunk.mu.Unlock()
		cs.Chunks.Delete(id)
		return true
	})

	return err
}
