// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API of the ndbuf runtime: typed buffers,
// strided views, device mirrors and sorting of sparse coordinate sets.
//
// # Overview
//
// This package re-exports the internal packages:
//   - Buffer: a reference-counted, typed, contiguous element store
//   - View: an N-dimensional strided window onto a Buffer
//   - Mirror: a Buffer kept coherent with a copy in accelerator memory
//   - COO: a sparse coordinate set whose indices can be sorted in place
//
// # Basic Usage
//
//	import "github.com/born-ml/ndbuf/tensor"
//
//	func main() {
//	    cfg := tensor.DefaultConfig()
//
//	    // A 2x3 row-major view
//	    x, _ := cfg.FromFloat64s([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.RowMajor)
//	    defer x.Release()
//
//	    // Layout changes share the buffer
//	    y := x.Transpose()
//	    defer y.Release()
//
//	    // Reshape copies only when strides cannot express the result
//	    z, _ := y.Reshape(tensor.Shape{6}, tensor.RowMajor)
//	    defer z.Release()
//	}
//
// # Supported Data Types
//
// Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float16,
// BFloat16, Float32, Float64 and String. Every numeric type converts to every
// other numeric type; String converts only to itself.
//
// # Memory Management
//
// Buffers and views hold references on shared storage. Call Release on every
// handle you create; the storage is returned to its Allocator when the last
// handle is released.
//
// # Errors
//
// Failures are *Error values. Use errors.Is with ErrAllocation, ErrRange,
// ErrShape, ErrUnsupportedConversion or ErrTransfer to test the kind.
package tensor
