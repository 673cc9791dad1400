package tensor

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Reshape returns a view of newShape whose elements, read in order, are the
// view's elements read in order.
//
// When that sequence can be addressed with strides over the current buffer the
// result aliases it; otherwise the data is first duplicated into a fresh buffer
// laid out in order, and the result aliases the duplicate.
func (v *View) Reshape(newShape Shape, order Order) (*View, error) {
	if !order.Valid() {
		return nil, Errorf("reshape", ErrShape, "invalid order %v", order)
	}
	if err := newShape.Validate(); err != nil {
		return nil, WrapError("reshape", ErrShape, err)
	}
	if newShape.NumElements() != v.NumElements() {
		return nil, Errorf("reshape", ErrShape, "cannot reshape %v (%d elements) to %v (%d elements)",
			v.shape, v.NumElements(), newShape, newShape.NumElements())
	}

	if newShape.IsEmpty() || v.shape.IsEmpty() {
		return v.derive(newShape.Clone(), newShape.ComputeStrides(order), v.offset, order), nil
	}
	if strides, ok := noCopyStrides(v.shape, v.strides, newShape, order); ok {
		return v.derive(newShape.Clone(), strides, v.offset, order), nil
	}

	klog.V(2).Infof("reshape %v strides %v to %v (%s) needs a duplicate", v.shape, v.strides, newShape, order)
	dup, err := v.Dup(order)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	defer dup.Release()
	return dup.derive(newShape.Clone(), newShape.ComputeStrides(order), 0, order), nil
}

// noCopyStrides computes strides that let newShape address the elements of
// (oldShape, oldStrides) in the given order without moving data. Runs of old
// axes are matched against runs of new axes with the same element count; each
// run of old axes must itself be contiguous in order.
func noCopyStrides(oldShape Shape, oldStrides []int, newShape Shape, order Order) ([]int, bool) {
	var dims, strides []int
	for i, d := range oldShape {
		if d != 1 {
			dims = append(dims, d)
			strides = append(strides, oldStrides[i])
		}
	}

	newStrides := make([]int, len(newShape))
	oi, oj := 0, 1
	ni, nj := 0, 1
	for ni < len(newShape) && oi < len(dims) {
		np, op := newShape[ni], dims[oi]
		for np != op {
			if np < op {
				if nj >= len(newShape) {
					return nil, false
				}
				np *= newShape[nj]
				nj++
			} else {
				if oj >= len(dims) {
					return nil, false
				}
				op *= dims[oj]
				oj++
			}
		}

		for k := oi; k < oj-1; k++ {
			if order == ColumnMajor {
				if strides[k+1] != dims[k]*strides[k] {
					return nil, false
				}
			} else if strides[k] != dims[k+1]*strides[k+1] {
				return nil, false
			}
		}

		if order == ColumnMajor {
			newStrides[ni] = strides[oi]
			for k := ni + 1; k < nj; k++ {
				newStrides[k] = newStrides[k-1] * newShape[k-1]
			}
		} else {
			newStrides[nj-1] = strides[oj-1]
			for k := nj - 1; k > ni; k-- {
				newStrides[k-1] = newStrides[k] * newShape[k]
			}
		}
		ni, nj = nj, nj+1
		oi, oj = oj, oj+1
	}

	// Remaining new axes have size 1; give them the stride that follows the last axis.
	last := 1
	if ni >= 1 {
		last = newStrides[ni-1]
		if order == ColumnMajor {
			last *= newShape[ni-1]
		}
	}
	for k := ni; k < len(newShape); k++ {
		newStrides[k] = last
	}
	return newStrides, true
}

// Permute reorders the axes: axis i of the result is axis axes[i] of v.
// Never copies.
func (v *View) Permute(axes ...int) (*View, error) {
	if !isPermutation(axes, v.Rank()) {
		return nil, Errorf("permute", ErrShape, "axes %v are not a permutation of [0, %d)", axes, v.Rank())
	}
	shape := make(Shape, len(axes))
	strides := make([]int, len(axes))
	for i, a := range axes {
		shape[i] = v.shape[a]
		strides[i] = v.strides[a]
	}
	return v.derive(shape, strides, v.offset, v.order), nil
}

// Transpose reverses the order of all axes.
func (v *View) Transpose() *View {
	axes := make([]int, v.Rank())
	for i := range axes {
		axes[i] = len(axes) - 1 - i
	}
	t, err := v.Permute(axes...)
	if err != nil {
		panic(err) // unreachable: axes is always a permutation
	}
	return t
}

// InversePermutation returns the permutation that undoes axes.
func InversePermutation(axes []int) ([]int, error) {
	if !isPermutation(axes, len(axes)) {
		return nil, Errorf("permute", ErrShape, "axes %v are not a permutation", axes)
	}
	inv := make([]int, len(axes))
	for i, a := range axes {
		inv[a] = i
	}
	return inv, nil
}

// Reverse returns a view whose elements along axis are in reverse order.
// The result aliases v (negative stride); all other axes keep their order.
func (v *View) Reverse(axis int) (*View, error) {
	if axis < 0 || axis >= v.Rank() {
		return nil, Errorf("reverse", ErrShape, "axis %d out of range for rank %d", axis, v.Rank())
	}
	strides := append([]int(nil), v.strides...)
	if v.shape.IsEmpty() {
		return v.derive(v.shape.Clone(), strides, v.offset, v.order), nil
	}
	offset := v.offset + (v.shape[axis]-1)*strides[axis]
	strides[axis] = -strides[axis]
	return v.derive(v.shape.Clone(), strides, offset, v.order), nil
}

// Select fixes axis at index and returns the remaining rank-1 dimensional view.
// Never copies.
func (v *View) Select(axis, index int) (*View, error) {
	if axis < 0 || axis >= v.Rank() {
		return nil, Errorf("select", ErrShape, "axis %d out of range for rank %d", axis, v.Rank())
	}
	if index < 0 || index >= v.shape[axis] {
		return nil, Errorf("select", ErrRange, "index %d out of range for dimension %d (size %d)", index, axis, v.shape[axis])
	}
	shape := make(Shape, 0, v.Rank()-1)
	strides := make([]int, 0, v.Rank()-1)
	for i := range v.shape {
		if i != axis {
			shape = append(shape, v.shape[i])
			strides = append(strides, v.strides[i])
		}
	}
	return v.derive(shape, strides, v.offset+index*v.strides[axis], v.order), nil
}

// Reinterpret returns a view that reads the same bytes as dtype.
// This is the only way to obtain a view whose dtype differs from the data
// written into the buffer; element sizes must match.
func (v *View) Reinterpret(dtype DataType) (*View, error) {
	buf, err := v.buf.Reinterpret(dtype)
	if err != nil {
		return nil, err
	}
	r := &View{
		buf:     buf,
		shape:   v.shape.Clone(),
		strides: append([]int(nil), v.strides...),
		offset:  v.offset,
		order:   v.order,
		par:     v.par,
	}
	return r, nil
}
