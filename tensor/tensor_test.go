// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/born-ml/ndbuf/tensor"
)

// TestBufferAPI verifies buffer creation, conversion and sharing through the public API.
func TestBufferAPI(t *testing.T) {
	buf, err := tensor.FromArray(tensor.BFloat16, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("FromArray failed: %v", err)
	}
	defer buf.Release()

	if buf.Len() != 4 || buf.ByteSize() != 8 {
		t.Errorf("Len/ByteSize = %d/%d, want 4/8", buf.Len(), buf.ByteSize())
	}

	sub, err := tensor.ViewOf(buf, 1, 2)
	if err != nil {
		t.Fatalf("ViewOf failed: %v", err)
	}
	defer sub.Release()
	if !sub.SharesStorage(buf) {
		t.Error("sub-view should share storage")
	}

	got, err := tensor.AsArray[int32](sub)
	if err != nil {
		t.Fatalf("AsArray failed: %v", err)
	}
	if !slices.Equal(got, []int32{2, 3}) {
		t.Errorf("AsArray = %v, want [2 3]", got)
	}
}

// TestViewAPI verifies layout operations share the buffer.
func TestViewAPI(t *testing.T) {
	cfg := tensor.DefaultConfig()
	x, err := tensor.FromSlice(cfg, tensor.Int64, []int64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.RowMajor)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	defer x.Release()

	y := x.Transpose()
	defer y.Release()
	if !y.SharesBuffer(x) {
		t.Error("Transpose should share the buffer")
	}

	z, err := y.Reshape(tensor.Shape{6}, tensor.RowMajor)
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	defer z.Release()

	got, err := tensor.Values[int64](z)
	if err != nil {
		t.Fatalf("Values failed: %v", err)
	}
	if !slices.Equal(got, []int64{1, 4, 2, 5, 3, 6}) {
		t.Errorf("Values = %v, want [1 4 2 5 3 6]", got)
	}
}

// TestErrorKinds verifies errors match the exported kinds.
func TestErrorKinds(t *testing.T) {
	if _, err := tensor.Allocate(tensor.Float32, -1); !errors.Is(err, tensor.ErrAllocation) {
		t.Errorf("Allocate(-1): expected ErrAllocation, got %v", err)
	}

	buf, err := tensor.Allocate(tensor.Float32, 2)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer buf.Release()
	if _, err := tensor.NewView(buf, tensor.Shape{3}, tensor.RowMajor); !errors.Is(err, tensor.ErrRange) {
		t.Errorf("NewView: expected ErrRange, got %v", err)
	}
	var e *tensor.Error
	if _, err := tensor.AsArray[string](buf); !errors.As(err, &e) || !errors.Is(err, tensor.ErrUnsupportedConversion) {
		t.Errorf("AsArray[string]: expected *Error of kind ErrUnsupportedConversion, got %v", err)
	}
}

// TestSortIndicesAPI runs the documented example.
func TestSortIndicesAPI(t *testing.T) {
	indices, err := tensor.FromArray(tensor.Int64, []int64{1, 0, 0, 0, 1, 1, 0, 1, 0, 1, 1, 1})
	if err != nil {
		t.Fatalf("FromArray failed: %v", err)
	}
	defer indices.Release()
	values, err := tensor.FromArray(tensor.Float32, []float32{2, 1, 0, 3})
	if err != nil {
		t.Fatalf("FromArray failed: %v", err)
	}
	defer values.Release()

	if err := tensor.SortIndices(indices, values, 4, 3); err != nil {
		t.Fatalf("SortIndices failed: %v", err)
	}
	if got := tensor.Data[int64](indices); !slices.Equal(got, []int64{0, 1, 0, 0, 1, 1, 1, 0, 0, 1, 1, 1}) {
		t.Errorf("indices = %v", got)
	}
	if got := tensor.Data[float32](values); !slices.Equal(got, []float32{0, 1, 2, 3}) {
		t.Errorf("values = %v", got)
	}
}

// TestMirrorAPI verifies a round trip through the simulated device.
func TestMirrorAPI(t *testing.T) {
	ctx := context.Background()
	buf, err := tensor.FromArray(tensor.Uint8, []uint8{1, 2, 3})
	if err != nil {
		t.Fatalf("FromArray failed: %v", err)
	}
	defer buf.Release()

	sim := tensor.NewHostSim(tensor.DefaultHostSimConfig())
	m, err := tensor.NewMirror(buf, sim)
	if err != nil {
		t.Fatalf("NewMirror failed: %v", err)
	}
	defer m.Release()

	if err := m.EnsureDeviceCurrent(ctx); err != nil {
		t.Fatalf("EnsureDeviceCurrent failed: %v", err)
	}
	if m.State() != tensor.BothCurrent {
		t.Errorf("State = %v, want %v", m.State(), tensor.BothCurrent)
	}

	copy(tensor.Data[uint8](buf), []uint8{0, 0, 0})
	m.MarkDeviceWritten()
	tr := m.EnsureHostCurrentAsync(ctx)
	if err := tr.Wait(ctx); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if m.State() != tensor.BothCurrent {
		t.Errorf("State after download = %v, want %v", m.State(), tensor.BothCurrent)
	}
	if got := tensor.Data[uint8](buf); !slices.Equal(got, []uint8{1, 2, 3}) {
		t.Errorf("host after download = %v, want [1 2 3]", got)
	}
}
