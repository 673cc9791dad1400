// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/ndbuf/internal/tensor"
)

// Type aliases for public API

// DataType represents the element type of a buffer.
type DataType = tensor.DataType

// Data type constants.
const (
	Bool     DataType = tensor.Bool
	Int8     DataType = tensor.Int8
	Int16    DataType = tensor.Int16
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Uint8    DataType = tensor.Uint8
	Uint16   DataType = tensor.Uint16
	Uint32   DataType = tensor.Uint32
	Uint64   DataType = tensor.Uint64
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	String   DataType = tensor.String
)

// HostType is the set of Go element types accepted at the host array boundary.
type HostType = tensor.HostType

// F16 and BF16 are the raw bits of half-precision values.
type (
	F16  = tensor.F16
	BF16 = tensor.BF16
)

// Shape represents the dimensions of a view.
// Example: Shape{2, 3, 4} represents a 3D view with dimensions 2×3×4.
type Shape = tensor.Shape

// Order is the memory ordering of a view (RowMajor or ColumnMajor).
type Order = tensor.Order

// Memory orders.
const (
	RowMajor    Order = tensor.RowMajor
	ColumnMajor Order = tensor.ColumnMajor
)

// MaxAllocBytes bounds the byte size of a single buffer.
const MaxAllocBytes = tensor.MaxAllocBytes

// Buffer is a reference-counted, typed, contiguous element store.
type Buffer = tensor.Buffer

// View is an N-dimensional strided window onto a Buffer.
type View = tensor.View

// Allocator provides the backing store of buffers.
type Allocator = tensor.Allocator

// Config carries the default float type, allocator and parallelism.
type Config = tensor.Config

// Error is the error type returned by every operation.
type Error = tensor.Error

// Error kinds, matched with errors.Is.
var (
	ErrAllocation            = tensor.ErrAllocation
	ErrRange                 = tensor.ErrRange
	ErrShape                 = tensor.ErrShape
	ErrUnsupportedConversion = tensor.ErrUnsupportedConversion
	ErrTransfer              = tensor.ErrTransfer
)

// DefaultConfig returns Float32, the shared heap allocator and CPU-count parallelism.
func DefaultConfig() Config {
	return tensor.DefaultConfig()
}

// ParseDataType parses a data type name such as "float32" or "int64".
func ParseDataType(name string) (DataType, error) {
	return tensor.ParseDataType(name)
}

// Allocators

// DefaultAllocator returns the shared unlimited heap allocator.
func DefaultAllocator() Allocator {
	return tensor.DefaultAllocator()
}

// NewHeapAllocator creates a heap allocator capped at maxBytes live bytes (0 = unlimited).
func NewHeapAllocator(maxBytes int64) *tensor.HeapAllocator {
	return tensor.NewHeapAllocator(maxBytes)
}

// NewMmapAllocator creates an allocator backed by anonymous memory mappings
// where the platform supports them.
func NewMmapAllocator(maxBytes int64) *tensor.MmapAllocator {
	return tensor.NewMmapAllocator(maxBytes)
}

// Buffer creation

// Allocate creates a zero-filled buffer of length elements.
func Allocate(dtype DataType, length int) (*Buffer, error) {
	return tensor.Allocate(dtype, length)
}

// AllocateWith creates a zero-filled buffer using alloc.
func AllocateWith(alloc Allocator, dtype DataType, length int) (*Buffer, error) {
	return tensor.AllocateWith(alloc, dtype, length)
}

// ViewOf returns a sub-view of length elements of src starting at offset.
func ViewOf(src *Buffer, offset, length int) (*Buffer, error) {
	return tensor.ViewOf(src, offset, length)
}

// FromArray allocates a buffer of type dtype holding src converted element by element.
//
// Example:
//
//	buf, err := tensor.FromArray(tensor.Float16, []float64{0.5, 1, 2})
func FromArray[T HostType](dtype DataType, src []T) (*Buffer, error) {
	return tensor.FromArray(dtype, src)
}

// AsArray returns a new host slice holding buf's elements converted to T.
func AsArray[T HostType](buf *Buffer) ([]T, error) {
	return tensor.AsArray[T](buf)
}

// SetFrom copies src into buf, converting every element to buf's data type.
func SetFrom[T HostType](buf *Buffer, src []T) error {
	return tensor.SetFrom(buf, src)
}

// Data interprets the buffer as []T without copying.
// Panics if T is not the native host type of the buffer's dtype.
func Data[T HostType](buf *Buffer) []T {
	return tensor.Data[T](buf)
}

// Views

// NewView wraps buf in a view with default strides for shape in order.
func NewView(buf *Buffer, shape Shape, order Order) (*View, error) {
	return tensor.NewView(buf, shape, order)
}

// NewStridedView wraps buf in a view with explicit strides and offset.
func NewStridedView(buf *Buffer, shape Shape, strides []int, offset int, order Order) (*View, error) {
	return tensor.NewStridedView(buf, shape, strides, offset, order)
}

// FromSlice allocates a view of dtype holding data laid out in order.
//
// Example:
//
//	x, err := tensor.FromSlice(cfg, tensor.Int32, []int32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.RowMajor)
func FromSlice[T HostType](cfg Config, dtype DataType, data []T, shape Shape, order Order) (*View, error) {
	return tensor.FromSlice(cfg, dtype, data, shape, order)
}

// Values returns v's elements in row-major order, converted to T.
func Values[T HostType](v *View) ([]T, error) {
	return tensor.Values[T](v)
}

// InversePermutation returns the permutation undoing axes.
func InversePermutation(axes []int) ([]int, error) {
	return tensor.InversePermutation(axes)
}
