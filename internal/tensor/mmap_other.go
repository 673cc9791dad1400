//go:build !unix

package tensor

// MmapAllocator falls back to the Go heap where anonymous mappings are unavailable.
type MmapAllocator struct {
	HeapAllocator
}

// NewMmapAllocator creates an allocator capped at maxBytes live bytes (0 = unlimited).
func NewMmapAllocator(maxBytes int64) *MmapAllocator {
	return &MmapAllocator{HeapAllocator: HeapAllocator{MaxBytes: maxBytes}}
}

// Name returns the allocator name.
func (m *MmapAllocator) Name() string { return "mmap(heap)" }
