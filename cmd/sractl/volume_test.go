package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"net/rpc"
	"strings"
	"sync"
	"testing"

	"github.com/pyropy/softraid/core/chunkserver"
	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/metadata"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/core/volume"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{}
	cfg.Store.Path = t.TempDir()
	cfg.Volume.MaxRequests = 8
	cfg.Volume.MaxRequestBytes = 64 * 1024
	cfg.Volume.BlockSize = 512
	cfg.Device.Workers = 2

	return cfg
}

func startChunkServer(t *testing.T) string {
	t.Helper()

	cfg := &chunkserver.Config{}
	cfg.Chunks.Path = t.TempDir()

	server := chunkserver.NewChunkServer(cfg)
	t.Cleanup(func() { server.Close() })

	rpcServer := rpc.NewServer()
	if err := rpcServer.Register(chunkserver.NewChunkServerAPI(server)); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(rpcServer)
	t.Cleanup(ts.Close)

	return strings.TrimPrefix(ts.URL, "http://")
}

func TestOpenVolume_RemoteAndFileChunks(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	addr := startChunkServer(t)

	store, err := metadata.NewStore(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	specs := []string{
		"rpc://" + addr + "@64",
		"file:" + t.TempDir() + "/c1@32",
	}

	var chunks []model.Chunk
	for _, spec := range specs {
		chunk, err := parseChunkSpec(spec)
		if err != nil {
			t.Fatal(err)
		}
		chunks = append(chunks, chunk)
	}

	geo := model.NewGeometry("vol0", model.KindConcat, cfg.Volume.BlockSize, chunks)
	for i := range geo.Chunks {
		if err := provisionRemote(&geo.Chunks[i], chunkBytes(&geo, geo.Chunks[i])); err != nil {
			t.Fatal(err)
		}
	}

	if want := "rpc://" + addr + "/" + geo.Chunks[0].ID.String(); geo.Chunks[0].Device != want {
		t.Fatalf("expected descriptor %q, got %q", want, geo.Chunks[0].Device)
	}

	geo.Size = 96
	if err := store.Create(ctx, geo); err != nil {
		t.Fatal(err)
	}

	vol, err := openVolume(ctx, cfg, store, "vol0")
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("softraid"), 40*512/8)
	if _, err := transfer(ctx, vol, device.OpWrite, 40, payload, cfg.Volume.MaxRequestBytes); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, len(payload))
	if _, err := transfer(ctx, vol, device.OpRead, 40, got, 4096); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("data read back across chunks does not match")
	}

	if err := vol.SetChunkState(1, model.ChunkOffline); err != nil {
		t.Fatal(err)
	}
	if err := vol.Close(); err != nil {
		t.Fatal(err)
	}

	stored, err := store.Get(ctx, "vol0")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Chunks[1].State != model.ChunkOffline {
		t.Errorf("chunk state change was not persisted, got %s", stored.Chunks[1].State)
	}
}

// brokenDevice fails every transfer before Submit returns.
type brokenDevice struct{}

func (brokenDevice) Submit(_ device.Op, _ int64, _ []byte, done func(error)) {
	done(errors.New("medium error"))
}

func (brokenDevice) Close() error {
	return nil
}

func TestStatePersister_ConcurrentFailures(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := metadata.NewStore(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	const chunks = 8
	specs := make([]model.Chunk, chunks)
	devices := make([]device.Device, chunks)
	for i := range specs {
		specs[i] = model.Chunk{Blocks: 16, Device: "file:/unused"}
		devices[i] = brokenDevice{}
	}

	geo := model.NewGeometry("wide", model.KindConcat, cfg.Volume.BlockSize, specs)
	vol, err := volume.Create(geo, devices, volumeOptions(cfg, store, "wide"))
	if err != nil {
		t.Fatal(err)
	}
	defer vol.Close()

	if err := store.Create(ctx, vol.Geometry()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < chunks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf := make([]byte, cfg.Volume.BlockSize)
			if _, err := vol.Do(ctx, int64(i*16), device.OpWrite, buf); !errors.Is(err, volume.ErrIOFailed) {
				t.Errorf("chunk %d: expected ErrIOFailed, got %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := store.Get(ctx, "wide")
	if err != nil {
		t.Fatal(err)
	}
	for i, chunk := range stored.Chunks {
		if chunk.State != model.ChunkFailed {
			t.Errorf("chunk %d persisted as %s", i, chunk.State)
		}
	}
}

func TestStatePersister_DropsOlderSnapshot(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := metadata.NewStore(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	geo := model.NewGeometry("vol0", model.KindConcat, cfg.Volume.BlockSize, []model.Chunk{{Blocks: 16}})
	geo.Size = 16
	if err := store.Create(ctx, geo); err != nil {
		t.Fatal(err)
	}

	p := &statePersister{store: store, name: "vol0"}

	// online again after a failure, delivered in reverse
	p.record(volume.ChunkStateChange{Seq: 2, To: model.ChunkOnline, States: []model.ChunkState{model.ChunkOnline}})
	p.record(volume.ChunkStateChange{Seq: 1, To: model.ChunkFailed, States: []model.ChunkState{model.ChunkFailed}})

	stored, err := store.Get(ctx, "vol0")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Chunks[0].State != model.ChunkOnline {
		t.Errorf("older snapshot overwrote newer one: %s", stored.Chunks[0].State)
	}
}
