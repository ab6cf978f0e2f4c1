package device

import "sync"

// Memory is a RAM backed device. Transfers complete asynchronously.
type Memory struct {
	mu     sync.RWMutex
	data   []byte
	closed bool
}

func NewMemory(size int64) *Memory {
	return &Memory{
		data: make([]byte, size),
	}
}

func (m *Memory) Submit(op Op, off int64, buf []byte, done func(error)) {
	go func() {
		done(m.transfer(op, off, buf))
	}()
}

func (m *Memory) transfer(op Op, off int64, buf []byte) error {
	if op == OpWrite {
		m.mu.Lock()
		defer m.mu.Unlock()
	} else {
		m.mu.RLock()
		defer m.mu.RUnlock()
	}

	if m.closed {
		return ErrDeviceClosed
	}

	if err := checkBounds(off, len(buf), int64(len(m.data))); err != nil {
		return err
	}

	if op == OpWrite {
		copy(m.data[off:], buf)
	} else {
		copy(buf, m.data[off:off+int64(len(buf))])
	}

	return nil
}

func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.data))
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}
