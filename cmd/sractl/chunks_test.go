package main

import (
	"errors"
	"testing"

	"github.com/pyropy/softraid/core/model"
)

func TestParseChunkSpec(t *testing.T) {
	tests := []struct {
		spec   string
		device string
		blocks int64
		err    error
	}{
		{spec: "file:/var/lib/raid/c0@2048", device: "file:/var/lib/raid/c0", blocks: 2048},
		{spec: "mem:@100", device: "mem:", blocks: 100},
		{spec: "rpc://localhost:9000@64", device: "rpc://localhost:9000", blocks: 64},
		{spec: "file:/a@b@16", device: "file:/a@b", blocks: 16},
		{spec: "mem:", err: ErrInvalidChunkSpec},
		{spec: "mem:@", err: ErrInvalidChunkSpec},
		{spec: "@100", err: ErrInvalidChunkSpec},
		{spec: "mem:@-5", err: ErrInvalidChunkSpec},
		{spec: "mem:@ten", err: ErrInvalidChunkSpec},
	}

	for _, tt := range tests {
		chunk, err := parseChunkSpec(tt.spec)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("%q: expected %v, got %v", tt.spec, tt.err, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("%q: %v", tt.spec, err)
			continue
		}

		if chunk.Device != tt.device || chunk.Blocks != tt.blocks {
			t.Errorf("%q: got %q with %d blocks", tt.spec, chunk.Device, chunk.Blocks)
		}
	}
}

func TestCheckChunkDevices(t *testing.T) {
	tests := []struct {
		devices []string
		err     error
	}{
		{devices: []string{"file:/a", "file:/b", "rpc://host:1/x"}},
		{devices: []string{"file:/a", "mem:"}, err: ErrVolatileDevice},
		{devices: []string{"file:/a", "file:/a"}, err: ErrInvalidChunkSpec},
	}

	for _, tt := range tests {
		var chunks []model.Chunk
		for _, dev := range tt.devices {
			chunks = append(chunks, model.Chunk{Device: dev, Blocks: 1})
		}

		err := checkChunkDevices(chunks)
		if tt.err == nil && err != nil {
			t.Errorf("%v: %v", tt.devices, err)
		}
		if tt.err != nil && !errors.Is(err, tt.err) {
			t.Errorf("%v: expected %v, got %v", tt.devices, tt.err, err)
		}
	}
}
