//go:build unix

package tensor

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// MmapAllocator backs storage with anonymous private memory mappings.
// Large buffers go straight to the kernel and are returned to it on release
// instead of waiting for the garbage collector.
type MmapAllocator struct {
	MaxBytes int64

	live atomic.Int64
}

// NewMmapAllocator creates an mmap allocator capped at maxBytes live bytes (0 = unlimited).
func NewMmapAllocator(maxBytes int64) *MmapAllocator {
	return &MmapAllocator{MaxBytes: maxBytes}
}

// Name returns the allocator name.
func (m *MmapAllocator) Name() string { return "mmap" }

// LiveBytes returns the number of bytes currently mapped.
func (m *MmapAllocator) LiveBytes() int64 { return m.live.Load() }

// Alloc maps size zeroed bytes.
func (m *MmapAllocator) Alloc(size int) ([]byte, error) {
	if err := reserve(&m.live, m.MaxBytes, size); err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		m.live.Add(-int64(size))
		return nil, err
	}
	return data, nil
}

// Free unmaps data.
func (m *MmapAllocator) Free(data []byte) error {
	m.live.Add(-int64(len(data)))
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
