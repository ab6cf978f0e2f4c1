// Package device implements the block transports backing volume chunks.
//
// A Device accepts one physical transfer at a time per Submit call and
// reports the outcome exactly once through the done callback, either before
// Submit returns or later from another goroutine. Devices only borrow the
// buffer for the duration of the transfer.
package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pyropy/softraid/lib/logger"
)

type Op int

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

type Device interface {
	// Submit transfers len(buf) bytes at byte offset off.
	Submit(op Op, off int64, buf []byte, done func(error))
	Close() error
}

var (
	ErrDeviceClosed      = errors.New("device closed")
	ErrBeyondEnd         = errors.New("transfer beyond end of device")
	ErrUnknownDescriptor = errors.New("unknown device descriptor")
)

var log, _ = logger.New("device")

// Open opens the device named by desc:
//
//	mem:                        in-memory device of size bytes
//	file:/path/to/chunk         file backed device, created and grown to size bytes
//	rpc://host:port/<chunk-id>  chunk served by a chunk server
func Open(desc string, size int64, workers int) (Device, error) {
	scheme, rest, ok := strings.Cut(desc, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, desc)
	}

	switch scheme {
	case "mem":
		return NewMemory(size), nil
	case "file":
		return OpenFile(rest, size, workers)
	case "rpc":
		return DialRemote(strings.TrimPrefix(rest, "//"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, desc)
	}
}

func checkBounds(off int64, n int, size int64) error {
	if off < 0 || off+int64(n) > size {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrBeyondEnd, off, n, size)
	}

	return nil
}
