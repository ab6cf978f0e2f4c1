package device

import (
	"io"
	"os"
	"sync"

	"github.com/pyropy/softraid/core/constants"
)

// File is a chunk backed by a regular file. At most workers transfers run
// against the file at once.
type File struct {
	f    *os.File
	path string
	size int64

	mu     sync.RWMutex
	closed bool
	sema   chan struct{}
	wg     sync.WaitGroup
}

// OpenFile opens or creates the file at path and grows it to size bytes.
func OpenFile(path string, size int64, workers int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if fi.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}

	if workers <= 0 {
		workers = constants.DEFAULT_DEVICE_WORKERS
	}

	return &File{
		f:    f,
		path: path,
		size: size,
		sema: make(chan struct{}, workers),
	}, nil
}

func (d *File) Submit(op Op, off int64, buf []byte, done func(error)) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		done(ErrDeviceClosed)
		return
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	go func() {
		defer d.wg.Done()

		d.sema <- struct{}{}
		err := d.transfer(op, off, buf)
		<-d.sema

		// the slot is released first so done may submit again
		done(err)
	}()
}

func (d *File) transfer(op Op, off int64, buf []byte) error {
	if err := checkBounds(off, len(buf), d.size); err != nil {
		return err
	}

	if op == OpWrite {
		_, err := d.f.WriteAt(buf, off)
		return err
	}

	n, err := d.f.ReadAt(buf, off)
	if err == io.EOF {
		// unwritten tail of a sparse chunk reads as zeroes
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	}

	return err
}

func (d *File) Path() string {
	return d.path
}

// Close waits for submitted transfers, syncs and closes the file.
func (d *File) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()

	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return err
	}

	return d.f.Close()
}
