// Package volume implements the engine that runs a discipline over a set of
// chunk devices: resource pools, request admission, collision handling and
// completion aggregation.
//
// All engine state of a volume is guarded by a single mutex. Device
// submissions, result callbacks and state listeners run after the mutex is
// released, so any of them may re-enter the volume.
package volume

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pyropy/softraid/core/constants"
	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/discipline"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/lib/arena"
	"github.com/pyropy/softraid/lib/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var log, _ = logger.New("volume")

var (
	ErrResourceExhausted = errors.New("work unit or ccb pool exhausted")
	ErrVolumeClosed      = errors.New("volume closed")
	ErrBusy              = errors.New("volume has outstanding requests")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrRequestTooLarge   = errors.New("request exceeds maximum request size")
	ErrIOFailed          = errors.New("sub-I/O failed")
	ErrNoSuchChunk       = errors.New("no such chunk")
	ErrDeviceMismatch    = errors.New("device count does not match chunk count")
)

// ChunkStateChange is reported to the StateListener after every chunk state
// transition. Listeners run on whichever goroutine caused the change, so
// they may observe changes out of order; Seq orders them and States holds
// every chunk state as of that change.
type ChunkStateChange struct {
	Volume   uuid.UUID
	Seq      uint64
	Chunk    int
	From     model.ChunkState
	To       model.ChunkState
	States   []model.ChunkState
	VolState model.VolState
}

type Options struct {
	MaxRequests     int // concurrently outstanding requests
	MaxRequestBytes int
	Logger          *zap.SugaredLogger
	StateListener   func(ChunkStateChange)
}

func (o Options) withDefaults() Options {
	if o.MaxRequests <= 0 {
		o.MaxRequests = constants.DEFAULT_MAX_REQUESTS
	}
	if o.MaxRequestBytes <= 0 {
		o.MaxRequestBytes = constants.MAX_REQUEST
	}
	if o.Logger == nil {
		o.Logger = log
	}

	return o
}

type Stats struct {
	Submitted       uint64
	Completed       uint64
	Failed          uint64
	PartiallyFailed uint64
	Deferred        uint64
	Rejected        uint64
	Spurious        uint64

	Pending     int
	Waiting     int
	WorkUnits   int
	CCBs        int
	CCBCapacity int
}

type Volume struct {
	mu sync.Mutex

	geo      model.Geometry
	disc     discipline.Discipline
	devices  []device.Device
	volState model.VolState
	stateSeq uint64

	maxRequestBlocks int64

	wus      *arena.Arena[WorkUnit]
	ccbs     *arena.Arena[CCB]
	pending  []arena.Handle
	deferred []arena.Handle
	waiters  []chan struct{}
	closed   bool

	releasing bool
	rescan    bool
	stats    Stats

	log      *zap.SugaredLogger
	listener func(ChunkStateChange)
}

// Create lays out a new volume over devices and fills in the derived fields
// of geo.
func Create(geo model.Geometry, devices []device.Device, opts Options) (*Volume, error) {
	disc, err := discipline.New(geo.Discipline)
	if err != nil {
		return nil, err
	}

	geo = geo.Clone()
	if err := disc.Create(&geo); err != nil {
		return nil, err
	}

	return newVolume(geo, disc, devices, opts)
}

// Assemble brings up a volume from previously recorded geometry.
func Assemble(geo model.Geometry, devices []device.Device, opts Options) (*Volume, error) {
	disc, err := discipline.New(geo.Discipline)
	if err != nil {
		return nil, err
	}

	geo = geo.Clone()
	if err := disc.Assemble(&geo); err != nil {
		return nil, err
	}

	return newVolume(geo, disc, devices, opts)
}

func newVolume(geo model.Geometry, disc discipline.Discipline, devices []device.Device, opts Options) (*Volume, error) {
	if len(devices) != len(geo.Chunks) {
		return nil, fmt.Errorf("%w: %d devices for %d chunks", ErrDeviceMismatch, len(devices), len(geo.Chunks))
	}

	opts = opts.withDefaults()

	v := &Volume{
		geo:              geo,
		disc:             disc,
		devices:          devices,
		volState:         disc.VolState(geo.Chunks),
		maxRequestBlocks: int64(opts.MaxRequestBytes / geo.BlockSize),
		log:              opts.Logger.With("volume", geo.Name),
		listener:         opts.StateListener,
	}

	if v.maxRequestBlocks < 1 {
		v.maxRequestBlocks = 1
	}

	if err := v.AllocResources(opts.MaxRequests); err != nil {
		return nil, err
	}

	v.log.Infow("assemble", "status", "volume assembled", "discipline", geo.Discipline,
		"chunks", len(geo.Chunks), "size", geo.Size, "state", v.volState)

	return v, nil
}

// AllocResources sizes the work unit and CCB pools for maxRequests
// outstanding requests.
func (v *Volume) AllocResources(maxRequests int) error {
	if maxRequests <= 0 {
		return fmt.Errorf("%w: max requests %d", ErrInvalidRequest, maxRequests)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.wus != nil && v.wus.InUse() > 0 {
		return ErrBusy
	}

	fanout := v.disc.Fanout(&v.geo, v.maxRequestBlocks)
	v.wus = arena.New[WorkUnit](maxRequests)
	v.ccbs = arena.New[CCB](fanout * maxRequests)

	v.log.Debugw("resources", "workUnits", maxRequests, "ccbs", fanout*maxRequests, "fanout", fanout)
	return nil
}

// FreeResources releases the pools. The volume rejects requests until
// AllocResources is called again.
func (v *Volume) FreeResources() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.wus != nil && v.wus.InUse() > 0 {
		return ErrBusy
	}

	v.wus = nil
	v.ccbs = nil
	return nil
}

func (v *Volume) ID() uuid.UUID {
	return v.geo.ID
}

func (v *Volume) Name() string {
	return v.geo.Name
}

func (v *Volume) BlockSize() int {
	return v.geo.BlockSize
}

// Size returns the volume size in blocks.
func (v *Volume) Size() int64 {
	return v.geo.Size
}

// Geometry returns a snapshot of the volume geometry including chunk states.
func (v *Volume) Geometry() model.Geometry {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.geo.Clone()
}

func (v *Volume) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.stats
	s.Pending = len(v.pending)
	s.Waiting = len(v.deferred)
	if v.wus != nil {
		s.WorkUnits = v.wus.InUse()
		s.CCBs = v.ccbs.InUse()
		s.CCBCapacity = v.ccbs.Cap()
	}

	return s
}

// Quiesce blocks until no request is outstanding or ctx is done.
func (v *Volume) Quiesce(ctx context.Context) error {
	v.mu.Lock()
	if v.wus == nil || v.wus.InUse() == 0 {
		v.mu.Unlock()
		return nil
	}

	idle := make(chan struct{})
	v.waiters = append(v.waiters, idle)
	v.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects new requests, waits for outstanding ones and closes the
// chunk devices.
func (v *Volume) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	err := v.Quiesce(context.Background())

	for _, dev := range v.devices {
		err = multierr.Append(err, dev.Close())
	}

	err = multierr.Append(err, v.FreeResources())

	v.log.Infow("shutdown", "status", "volume closed")
	return err
}
