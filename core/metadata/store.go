// Package metadata keeps volume geometry in a leveldb datastore so volumes
// can be assembled again after a restart.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"
	"github.com/pyropy/softraid/core/model"
)

const volumesPrefix = "/volumes"

var (
	ErrVolumeNotFound = errors.New("volume not found")
	ErrVolumeExists   = errors.New("volume already exists")
	ErrNoSuchChunk    = errors.New("no such chunk")
)

// Store serializes its writes so read-modify-write updates of one volume
// never interleave.
type Store struct {
	mu      sync.Mutex
	Volumes *dslvl.Datastore
}

func NewStore(dsPath string) (*Store, error) {
	p := fmt.Sprintf("%s/volumes", dsPath)
	store, err := dslvl.NewDatastore(p, nil)
	if err != nil {
		return nil, err
	}

	return &Store{
		Volumes: store,
	}, nil
}

func volumeKey(name string) ds.Key {
	return ds.NewKey(volumesPrefix).ChildString(name)
}

// Create records the geometry of a new volume.
func (s *Store) Create(ctx context.Context, geo model.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.Volumes.Has(ctx, volumeKey(geo.Name))
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf("%w: %s", ErrVolumeExists, geo.Name)
	}

	return s.put(ctx, geo)
}

// Put stores geo, replacing any previous record of the same name.
func (s *Store) Put(ctx context.Context, geo model.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(ctx, geo)
}

func (s *Store) put(ctx context.Context, geo model.Geometry) error {
	b, err := json.Marshal(geo)
	if err != nil {
		return err
	}

	return s.Volumes.Put(ctx, volumeKey(geo.Name), b)
}

func (s *Store) Get(ctx context.Context, name string) (model.Geometry, error) {
	var geo model.Geometry

	b, err := s.Volumes.Get(ctx, volumeKey(name))
	if errors.Is(err, ds.ErrNotFound) {
		return geo, fmt.Errorf("%w: %s", ErrVolumeNotFound, name)
	}
	if err != nil {
		return geo, err
	}

	err = json.Unmarshal(b, &geo)
	return geo, err
}

func (s *Store) All(ctx context.Context) ([]model.Geometry, error) {
	q := dsq.Query{Prefix: volumesPrefix}
	volumes := make([]model.Geometry, 0)

	res, err := s.Volumes.Query(ctx, q)
	if err != nil {
		return volumes, err
	}
	defer res.Close()

	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}

		if r.Error != nil {
			return volumes, r.Error
		}

		var geo model.Geometry
		if err := json.Unmarshal(r.Value, &geo); err != nil {
			return volumes, err
		}
		volumes = append(volumes, geo)
	}

	return volumes, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.Volumes.Has(ctx, volumeKey(name))
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrVolumeNotFound, name)
	}

	return s.Volumes.Delete(ctx, volumeKey(name))
}

// SetChunkState records the state of one chunk of a volume.
func (s *Store) SetChunkState(ctx context.Context, name string, chunk int, state model.ChunkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	geo, err := s.Get(ctx, name)
	if err != nil {
		return err
	}

	if chunk < 0 || chunk >= len(geo.Chunks) {
		return fmt.Errorf("%w: %s chunk %d", ErrNoSuchChunk, name, chunk)
	}

	geo.Chunks[chunk].State = state
	return s.put(ctx, geo)
}

// SetChunkStates replaces the state of every chunk of a volume.
func (s *Store) SetChunkStates(ctx context.Context, name string, states []model.ChunkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	geo, err := s.Get(ctx, name)
	if err != nil {
		return err
	}

	if len(states) != len(geo.Chunks) {
		return fmt.Errorf("%w: %s has %d chunks, got %d states", ErrNoSuchChunk, name, len(geo.Chunks), len(states))
	}

	for i, state := range states {
		geo.Chunks[i].State = state
	}

	return s.put(ctx, geo)
}

func (s *Store) Close() error {
	return s.Volumes.Close()
}
