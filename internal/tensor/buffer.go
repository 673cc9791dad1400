package tensor

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"k8s.io/klog/v2"
)

// storage is the reference-counted backing store shared by a buffer and all of its views.
// Numeric types live in data; String elements live in strs.
type storage struct {
	data     []byte
	strs     []string
	alloc    Allocator
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// addRef increments the reference count.
func (s *storage) addRef() {
	s.refCount.Add(1)
}

// release decrements the reference count and frees the store when it reaches 0.
func (s *storage) release() {
	if s.refCount.Add(-1) != 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil && s.alloc != nil {
		if err := s.alloc.Free(s.data); err != nil {
			klog.Warningf("failed to free %d bytes from %s allocator: %v", len(s.data), s.alloc.Name(), err)
		}
	}
	s.data = nil
	s.strs = nil
}

// Buffer is a flat, typed block of elements: the ownership unit for tensor storage.
//
// A buffer returned by Allocate owns its storage. ViewOf, Share and Reinterpret
// return handles that share the storage; the storage is freed when the last
// handle is released, so a view never outlives the memory it addresses.
type Buffer struct {
	st       *storage
	dtype    DataType
	offset   int // Element offset into st
	length   int // Element count
	view     bool
	released atomic.Bool
}

// MaxAllocBytes bounds the byte size of a single buffer. Larger requests fail
// with ErrAllocation instead of reaching make.
const MaxAllocBytes = min(1<<40, math.MaxInt)

// Allocate creates a zero-filled buffer of length elements on the default heap allocator.
func Allocate(dtype DataType, length int) (*Buffer, error) {
	return AllocateWith(DefaultAllocator(), dtype, length)
}

// AllocateWith creates a zero-filled buffer of length elements using alloc.
func AllocateWith(alloc Allocator, dtype DataType, length int) (*Buffer, error) {
	if !dtype.Valid() {
		return nil, Errorf("allocate", ErrAllocation, "invalid data type %d", int(dtype))
	}
	if length < 0 {
		return nil, Errorf("allocate", ErrAllocation, "negative length %d", length)
	}

	size := dtype.Size()
	if length > MaxAllocBytes/size {
		return nil, Errorf("allocate", ErrAllocation, "%d %s elements exceed the %d byte allocation limit", length, dtype, MaxAllocBytes)
	}

	st := &storage{alloc: alloc}
	if dtype == String {
		st.strs = make([]string, length)
		st.alloc = nil
	} else {
		data, err := alloc.Alloc(length * size)
		if err != nil {
			return nil, WrapError("allocate", ErrAllocation, fmt.Errorf("%s allocator: %w", alloc.Name(), err))
		}
		st.data = data
	}
	st.refCount.Store(1)

	return &Buffer{
		st:     st,
		dtype:  dtype,
		length: length,
	}, nil
}

// ViewOf returns a sub-view of length elements of src starting at offset.
// The view shares src's storage and must be released independently.
func ViewOf(src *Buffer, offset, length int) (*Buffer, error) {
	if offset < 0 || length < 0 || offset > src.length-length {
		return nil, Errorf("view", ErrRange, "offset %d + length %d exceeds buffer length %d", offset, length, src.length)
	}
	src.st.addRef()
	return &Buffer{
		st:     src.st,
		dtype:  src.dtype,
		offset: src.offset + offset,
		length: length,
		view:   true,
	}, nil
}

// Share returns a new handle on the same elements, holding its own reference.
func (b *Buffer) Share() *Buffer {
	b.st.addRef()
	return &Buffer{
		st:     b.st,
		dtype:  b.dtype,
		offset: b.offset,
		length: b.length,
		view:   b.view,
	}
}

// Reinterpret returns a handle that reads the same bytes as another data type of
// the same element size (for example Float32 bits as Uint32).
func (b *Buffer) Reinterpret(dtype DataType) (*Buffer, error) {
	if !dtype.Valid() {
		return nil, Errorf("reinterpret", ErrUnsupportedConversion, "invalid data type %d", int(dtype))
	}
	if b.dtype == String || dtype == String {
		return nil, Errorf("reinterpret", ErrUnsupportedConversion, "%s buffer cannot be read as %s", b.dtype, dtype)
	}
	if b.dtype.Size() != dtype.Size() {
		return nil, Errorf("reinterpret", ErrShape, "element size %d of %s differs from %d of %s",
			b.dtype.Size(), b.dtype, dtype.Size(), dtype)
	}
	r := b.Share()
	r.dtype = dtype
	r.view = true
	return r, nil
}

// DType returns the buffer's data type.
func (b *Buffer) DType() DataType { return b.dtype }

// Len returns the number of elements.
func (b *Buffer) Len() int { return b.length }

// ElementSize returns the size in bytes of one element.
func (b *Buffer) ElementSize() int { return b.dtype.Size() }

// ByteSize returns Len() * ElementSize().
func (b *Buffer) ByteSize() int { return b.length * b.dtype.Size() }

// Offset returns the element offset of this handle into the shared storage.
func (b *Buffer) Offset() int { return b.offset }

// IsView reports whether the buffer was created as a view of another buffer.
func (b *Buffer) IsView() bool { return b.view }

// Allocator returns the allocator that owns the backing store (nil for String buffers).
func (b *Buffer) Allocator() Allocator { return b.st.alloc }

// RefCount returns the number of live handles on the storage.
func (b *Buffer) RefCount() int { return int(b.st.refCount.Load()) }

// SharesStorage reports whether b and other address the same backing store.
func (b *Buffer) SharesStorage(other *Buffer) bool { return b.st == other.st }

// Release drops this handle's reference. Releasing a handle twice is a no-op.
func (b *Buffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.st.release()
	}
}

// Bytes returns the raw bytes addressed by this handle.
// WARNING: Direct access to underlying memory. Panics for String buffers.
func (b *Buffer) Bytes() []byte {
	if b.dtype == String {
		panic("tensor: string buffer has no byte representation")
	}
	size := b.dtype.Size()
	return b.st.data[b.offset*size : (b.offset+b.length)*size]
}

// Strings returns the elements of a String buffer (zero-copy).
func (b *Buffer) Strings() []string {
	if b.dtype != String {
		panic(fmt.Sprintf("tensor: buffer dtype is %s, not string", b.dtype))
	}
	return b.st.strs[b.offset : b.offset+b.length]
}

// Data interprets the buffer as []T without copying.
// Panics if T is not the native host type of the buffer's dtype.
//
// WARNING: Modifications to the returned slice modify the buffer.
func Data[T HostType](b *Buffer) []T {
	if dt := hostDataType[T](); dt != b.dtype {
		panic(fmt.Sprintf("tensor: buffer dtype is %s, not %s", b.dtype, dt))
	}
	if b.dtype == String {
		return any(b.Strings()).([]T)
	}
	if b.length == 0 {
		return []T{}
	}
	data := b.Bytes()
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by Bytes()
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), b.length)
}

// checkIndex panics if i is outside the buffer.
func (b *Buffer) checkIndex(i int) {
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("index %d out of bounds for buffer of length %d", i, b.length))
	}
}

// Float64 returns element i converted to float64.
func (b *Buffer) Float64(i int) float64 {
	b.checkIndex(i)
	return codecFor(b.dtype).loadF(b.st.data, b.offset+i)
}

// SetFloat64 stores v at element i using the float conversion rules of the buffer's dtype.
func (b *Buffer) SetFloat64(i int, v float64) {
	b.checkIndex(i)
	codecFor(b.dtype).storeF(b.st.data, b.offset+i, v)
}

// Int64 returns element i converted to int64.
func (b *Buffer) Int64(i int) int64 {
	b.checkIndex(i)
	return codecFor(b.dtype).loadI(b.st.data, b.offset+i)
}

// SetInt64 stores v at element i using the integer conversion rules of the buffer's dtype.
func (b *Buffer) SetInt64(i int, v int64) {
	b.checkIndex(i)
	codecFor(b.dtype).storeI(b.st.data, b.offset+i, v)
}

// Text returns element i of a String buffer.
func (b *Buffer) Text(i int) string {
	b.checkIndex(i)
	return b.Strings()[i]
}

// SetText stores s at element i of a String buffer.
func (b *Buffer) SetText(i int, s string) {
	b.checkIndex(i)
	b.Strings()[i] = s
}

// String returns a human-readable description of the buffer.
func (b *Buffer) String() string {
	kind := "owned"
	if b.view {
		kind = "view"
	}
	return fmt.Sprintf("Buffer[%s](len=%d, offset=%d, %s)", b.dtype, b.length, b.offset, kind)
}
