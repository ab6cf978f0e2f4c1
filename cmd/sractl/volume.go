package main

import (
	"context"
	"sync"

	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/metadata"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/core/volume"
	"go.uber.org/multierr"
)

func openDevices(cfg *Config, geo *model.Geometry) ([]device.Device, error) {
	devices := make([]device.Device, 0, len(geo.Chunks))

	for _, chunk := range geo.Chunks {
		dev, err := device.Open(chunk.Device, chunkBytes(geo, chunk), cfg.Device.Workers)
		if err != nil {
			for _, d := range devices {
				err = multierr.Append(err, d.Close())
			}
			return nil, err
		}

		devices = append(devices, dev)
	}

	return devices, nil
}

// statePersister writes chunk state snapshots of one open volume to the
// store. Changes arrive from device completion goroutines in any order;
// a snapshot older than the last one written is dropped.
type statePersister struct {
	mu    sync.Mutex
	last  uint64
	store *metadata.Store
	name  string
}

func (p *statePersister) record(c volume.ChunkStateChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.Seq <= p.last {
		return
	}

	err := p.store.SetChunkStates(context.Background(), p.name, c.States)
	if err != nil {
		log.Errorw("chunk", "error", err, "volume", p.name, "chunk", c.Chunk)
		return
	}

	p.last = c.Seq
}

func volumeOptions(cfg *Config, store *metadata.Store, name string) volume.Options {
	p := &statePersister{store: store, name: name}

	return volume.Options{
		MaxRequests:     cfg.Volume.MaxRequests,
		MaxRequestBytes: cfg.Volume.MaxRequestBytes,
		StateListener:   p.record,
	}
}

// openVolume assembles a recorded volume. Chunk state changes are written
// back to the store as they happen.
func openVolume(ctx context.Context, cfg *Config, store *metadata.Store, name string) (*volume.Volume, error) {
	geo, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	devices, err := openDevices(cfg, &geo)
	if err != nil {
		return nil, err
	}

	vol, err := volume.Assemble(geo, devices, volumeOptions(cfg, store, name))
	if err != nil {
		for _, d := range devices {
			err = multierr.Append(err, d.Close())
		}
		return nil, err
	}

	return vol, nil
}
