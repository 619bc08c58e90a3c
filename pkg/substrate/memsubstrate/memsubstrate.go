// Package memsubstrate is an in-memory substrate.Substrate, the natural
// test fixture for the rolling storage core: the same blob semantics as
// a disk-backed substrate, with the file system replaced by a map
// guarded by a single mutex.
package memsubstrate

import (
	"fmt"
	"sync"

	"github.com/downfa11-org/rollstore/pkg/substrate"
)

type blob struct {
	data   []byte
	sealed bool
	exists bool
}

// MemSubstrate is a substrate.Substrate backed entirely by process
// memory. It is not durable across restarts; it exists to exercise the
// rolling core's crash-remnant and fencing logic deterministically in
// tests.
type MemSubstrate struct {
	mu    sync.Mutex
	blobs map[string]*blob
}

// New creates an empty MemSubstrate.
func New() *MemSubstrate {
	return &MemSubstrate{blobs: make(map[string]*blob)}
}

type handle struct {
	name string
}

func (h *handle) Name() string { return h.name }

func (m *MemSubstrate) Create(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.blobs[name]; ok && b.exists {
		return fmt.Errorf("%w: %s", substrate.ErrAlreadyExists, name)
	}
	m.blobs[name] = &blob{data: []byte{}, exists: true}
	return nil
}

func (m *MemSubstrate) OpenRead(name string) (substrate.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.blobs[name]; !ok || !b.exists {
		return nil, fmt.Errorf("%w: %s", substrate.ErrNotExists, name)
	}
	return &handle{name: name}, nil
}

func (m *MemSubstrate) OpenWrite(name string) (substrate.Handle, error) {
	return m.OpenRead(name)
}

func (m *MemSubstrate) Read(h substrate.Handle, offset int64, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[h.Name()]
	if !ok || !b.exists {
		return 0, fmt.Errorf("%w: %s", substrate.ErrNotExists, h.Name())
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", substrate.ErrBadOffset)
	}
	if offset >= int64(len(b.data)) {
		return 0, nil
	}
	n := copy(buf, b.data[offset:])
	return n, nil
}

func (m *MemSubstrate) Write(h substrate.Handle, offset int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[h.Name()]
	if !ok || !b.exists {
		return fmt.Errorf("%w: %s", substrate.ErrNotExists, h.Name())
	}
	if b.sealed {
		return fmt.Errorf("%w: %s", substrate.ErrSealed, h.Name())
	}
	if offset != int64(len(b.data)) {
		return fmt.Errorf("%w: %s expected %d got %d", substrate.ErrBadOffset, h.Name(), len(b.data), offset)
	}
	b.data = append(b.data, data...)
	return nil
}

func (m *MemSubstrate) Seal(h substrate.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[h.Name()]
	if !ok || !b.exists {
		return fmt.Errorf("%w: %s", substrate.ErrNotExists, h.Name())
	}
	b.sealed = true
	return nil
}

func (m *MemSubstrate) Concat(target substrate.Handle, offset int64, sourceName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.blobs[target.Name()]
	if !ok || !t.exists {
		return fmt.Errorf("%w: %s", substrate.ErrNotExists, target.Name())
	}
	s, ok := m.blobs[sourceName]
	if !ok || !s.exists {
		return fmt.Errorf("%w: %s", substrate.ErrNotExists, sourceName)
	}
	if t.sealed {
		return fmt.Errorf("%w: %s", substrate.ErrSealed, target.Name())
	}
	if offset != int64(len(t.data)) {
		return fmt.Errorf("%w: %s expected %d got %d", substrate.ErrBadOffset, target.Name(), len(t.data), offset)
	}
	t.data = append(t.data, s.data...)
	s.exists = false
	s.data = nil
	return nil
}

func (m *MemSubstrate) Delete(h substrate.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[h.Name()]
	if !ok || !b.exists {
		return fmt.Errorf("%w: %s", substrate.ErrNotExists, h.Name())
	}
	b.exists = false
	b.data = nil
	return nil
}

func (m *MemSubstrate) Exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	return ok && b.exists, nil
}

func (m *MemSubstrate) Stat(name string) (substrate.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[name]
	if !ok || !b.exists {
		return substrate.BlobInfo{}, fmt.Errorf("%w: %s", substrate.ErrNotExists, name)
	}
	return substrate.BlobInfo{Name: name, Length: int64(len(b.data)), Sealed: b.sealed}, nil
}
