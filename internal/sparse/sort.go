// Package sparse holds coordinate-format (COO) sparse sets and sorts their indices.
package sparse

import (
	"context"
	"sort"

	"k8s.io/klog/v2"

	"github.com/born-ml/ndbuf/internal/device"
	"github.com/born-ml/ndbuf/internal/tensor"
)

// SortIndices sorts nnz coordinate rows of length rank into lexicographic order
// (dimension 0 most significant) in place, applying the same permutation to
// values.
//
// indices is a flat row-major Int32 or Int64 buffer of nnz*rank coordinates and
// values holds nnz elements of any data type. The sort is not stable: rows with
// equal coordinates end up adjacent, each with its own value, in no particular
// order. All arguments are validated before anything is moved. nnz == 0 is a
// no-op.
func SortIndices(indices, values *tensor.Buffer, nnz, rank int) error {
	if nnz == 0 {
		return nil
	}
	if err := validate(indices, values, nnz, rank); err != nil {
		return err
	}
	klog.V(4).Infof("sparse: sorting %d entries of rank %d", nnz, rank)

	swap := valueSwapper(values)
	switch indices.DType() {
	case tensor.Int32:
		sort.Sort(&rows[int32]{idx: tensor.Data[int32](indices), rank: rank, swapValues: swap})
	case tensor.Int64:
		sort.Sort(&rows[int64]{idx: tensor.Data[int64](indices), rank: rank, swapValues: swap})
	}
	return nil
}

func validate(indices, values *tensor.Buffer, nnz, rank int) error {
	if nnz < 0 {
		return tensor.Errorf("sort", tensor.ErrShape, "negative entry count %d", nnz)
	}
	if rank < 1 {
		return tensor.Errorf("sort", tensor.ErrShape, "rank %d must be at least 1", rank)
	}
	if dt := indices.DType(); dt != tensor.Int32 && dt != tensor.Int64 {
		return tensor.Errorf("sort", tensor.ErrUnsupportedConversion, "indices must be int32 or int64, got %s", dt)
	}
	if indices.Len() != nnz*rank {
		return tensor.Errorf("sort", tensor.ErrShape, "%d indices for %d entries of rank %d", indices.Len(), nnz, rank)
	}
	if values.Len() != nnz {
		return tensor.Errorf("sort", tensor.ErrShape, "%d values for %d entries", values.Len(), nnz)
	}
	if i := firstNegative(indices); i >= 0 {
		return tensor.Errorf("sort", tensor.ErrShape, "negative coordinate %d in entry %d", indices.Int64(i), i/rank)
	}
	return nil
}

// firstNegative returns the position of the first negative coordinate, or -1.
func firstNegative(indices *tensor.Buffer) int {
	for i := 0; i < indices.Len(); i++ {
		if indices.Int64(i) < 0 {
			return i
		}
	}
	return -1
}

// rows is a sort.Interface over coordinate rows that carries values along.
type rows[I int32 | int64] struct {
	idx        []I
	rank       int
	swapValues func(i, j int)
}

func (r *rows[I]) Len() int { return len(r.idx) / r.rank }

func (r *rows[I]) Less(i, j int) bool {
	a := r.idx[i*r.rank : (i+1)*r.rank]
	b := r.idx[j*r.rank : (j+1)*r.rank]
	for d := range a {
		if a[d] != b[d] {
			return a[d] < b[d]
		}
	}
	return false
}

func (r *rows[I]) Swap(i, j int) {
	a := r.idx[i*r.rank : (i+1)*r.rank]
	b := r.idx[j*r.rank : (j+1)*r.rank]
	for d := range a {
		a[d], b[d] = b[d], a[d]
	}
	r.swapValues(i, j)
}

// valueSwapper returns a function exchanging two elements of values, whatever
// their width.
func valueSwapper(values *tensor.Buffer) func(i, j int) {
	if values.DType() == tensor.String {
		strs := values.Strings()
		return func(i, j int) { strs[i], strs[j] = strs[j], strs[i] }
	}
	data, w := values.Bytes(), values.ElementSize()
	return func(i, j int) {
		a := data[i*w : (i+1)*w]
		b := data[j*w : (j+1)*w]
		for k := range a {
			a[k], b[k] = b[k], a[k]
		}
	}
}

// IsSorted reports whether the rank-length rows of indices are in non-decreasing
// lexicographic order.
func IsSorted(indices *tensor.Buffer, rank int) (bool, error) {
	if rank < 1 || indices.Len()%rank != 0 {
		return false, tensor.Errorf("is sorted", tensor.ErrShape, "%d indices do not form rows of rank %d", indices.Len(), rank)
	}
	switch indices.DType() {
	case tensor.Int32:
		return sort.IsSorted(&rows[int32]{idx: tensor.Data[int32](indices), rank: rank}), nil
	case tensor.Int64:
		return sort.IsSorted(&rows[int64]{idx: tensor.Data[int64](indices), rank: rank}), nil
	default:
		return false, tensor.Errorf("is sorted", tensor.ErrUnsupportedConversion, "indices must be int32 or int64, got %s", indices.DType())
	}
}

// SortMirrored sorts index and value buffers that live in device mirrors: both
// host copies are made current, sorted, and marked as written so the next
// EnsureDeviceCurrent uploads the sorted data.
func SortMirrored(ctx context.Context, indices, values *device.Mirror, nnz, rank int) error {
	if nnz == 0 {
		return nil
	}
	for _, m := range []*device.Mirror{indices, values} {
		if err := m.EnsureHostCurrent(ctx); err != nil {
			return err
		}
		if !m.State().HostValid() {
			return tensor.Errorf("sort", tensor.ErrTransfer, "no current copy of %v", m)
		}
	}
	if err := SortIndices(indices.Host(), values.Host(), nnz, rank); err != nil {
		return err
	}
	indices.MarkHostWritten()
	values.MarkHostWritten()
	return nil
}
