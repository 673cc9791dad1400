package tensor

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Allocator provides the backing store for buffer storage.
// Free is called exactly once per successful Alloc, when the last
// buffer referencing the storage is released.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(data []byte) error
	Name() string
}

// HeapAllocator allocates from the Go heap.
// A positive MaxBytes caps the number of live bytes.
type HeapAllocator struct {
	MaxBytes int64

	live atomic.Int64
}

// NewHeapAllocator creates a heap allocator capped at maxBytes live bytes (0 = unlimited).
func NewHeapAllocator(maxBytes int64) *HeapAllocator {
	return &HeapAllocator{MaxBytes: maxBytes}
}

// Name returns the allocator name.
func (h *HeapAllocator) Name() string { return "heap" }

// LiveBytes returns the number of bytes currently allocated.
func (h *HeapAllocator) LiveBytes() int64 { return h.live.Load() }

// Alloc returns size zeroed bytes, 8-byte aligned so every element type can be
// addressed in place.
func (h *HeapAllocator) Alloc(size int) (data []byte, err error) {
	if err := reserve(&h.live, h.MaxBytes, size); err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			h.live.Add(-int64(size))
			data, err = nil, fmt.Errorf("%d bytes: %v", size, r)
		}
	}()
	words := make([]uint64, (size+7)/8)
	//nolint:gosec // unsafe.Slice over a freshly allocated word slice, length checked above
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size), nil
}

// Free releases the accounting for data; the memory itself is reclaimed by the GC.
func (h *HeapAllocator) Free(data []byte) error {
	h.live.Add(-int64(len(data)))
	return nil
}

// reserve adds size to live unless that would exceed limit (when positive).
func reserve(live *atomic.Int64, limit int64, size int) error {
	if size < 0 {
		return fmt.Errorf("negative size %d", size)
	}
	for {
		cur := live.Load()
		next := cur + int64(size)
		if limit > 0 && next > limit {
			return fmt.Errorf("%d bytes requested, %d of %d bytes in use", size, cur, limit)
		}
		if live.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

var defaultAllocator Allocator = NewHeapAllocator(0)

// DefaultAllocator returns the shared unlimited heap allocator.
func DefaultAllocator() Allocator {
	return defaultAllocator
}
