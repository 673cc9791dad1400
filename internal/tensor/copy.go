package tensor

import (
	"github.com/born-ml/ndbuf/internal/parallel"
)

// region addresses the elements of a view inside its storage: absolute element
// positions are base + sum(idx[i] * strides[i]).
type region struct {
	st      *storage
	dtype   DataType
	shape   Shape
	strides []int
	base    int
}

func (v *View) region() region {
	return region{
		st:      v.buf.st,
		dtype:   v.buf.dtype,
		shape:   v.shape,
		strides: v.strides,
		base:    v.buf.offset + v.offset,
	}
}

// copyRegion copies every logical element of src into the same logical position
// of dst, converting between data types. Shapes must be equal and the
// conversion must be defined. Rows along the last axis are the unit of work
// handed to parallel.Range.
func copyRegion(dst, src region, par parallel.Config) {
	n := src.shape.NumElements()
	if n == 0 {
		return
	}
	rank := len(src.shape)
	if rank == 0 {
		copyRun(dst, dst.base, 0, src, src.base, 0, 1)
		return
	}

	inner := src.shape[rank-1]
	rows := n / inner
	dStride, sStride := dst.strides[rank-1], src.strides[rank-1]
	outer := src.shape[:rank-1]

	parallel.Range(rows, func(start, end int) {
		idx := make([]int, len(outer))
		unravel(start, outer, idx)
		for r := start; r < end; r++ {
			dPos, sPos := dst.base, src.base
			for i, x := range idx {
				dPos += x * dst.strides[i]
				sPos += x * src.strides[i]
			}
			copyRun(dst, dPos, dStride, src, sPos, sStride, inner)
			increment(idx, outer)
		}
	}, par)
}

// copyRun copies n elements starting at absolute positions dPos/sPos, stepping by the given strides.
func copyRun(dst region, dPos, dStride int, src region, sPos, sStride, n int) {
	if src.dtype == String {
		for j := 0; j < n; j++ {
			dst.st.strs[dPos+j*dStride] = src.st.strs[sPos+j*sStride]
		}
		return
	}
	if dStride == 1 && sStride == 1 {
		convertElements(dst.st.data, dst.dtype, dPos, src.st.data, src.dtype, sPos, n)
		return
	}
	for j := 0; j < n; j++ {
		convertElements(dst.st.data, dst.dtype, dPos+j*dStride, src.st.data, src.dtype, sPos+j*sStride, 1)
	}
}

// unravel writes the row-major multi-index of flat position pos over shape into idx.
func unravel(pos int, shape Shape, idx []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		idx[i] = pos % shape[i]
		pos /= shape[i]
	}
}

// increment advances idx to the next row-major multi-index over shape.
func increment(idx []int, shape Shape) {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < shape[i] {
			return
		}
		idx[i] = 0
	}
}

// Dup copies the view into a fresh buffer from the same allocator, laid out with
// default strides in order. The result never aliases v.
func (v *View) Dup(order Order) (*View, error) {
	if !order.Valid() {
		return nil, Errorf("dup", ErrShape, "invalid order %v", order)
	}
	alloc := v.buf.st.alloc
	if alloc == nil {
		alloc = DefaultAllocator()
	}
	buf, err := AllocateWith(alloc, v.DType(), v.NumElements())
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	out, err := newStridedView(buf, v.shape, v.shape.ComputeStrides(order), 0, order, v.par)
	if err != nil {
		return nil, err
	}
	copyRegion(out.region(), v.region(), v.par)
	return out, nil
}

// CopyFrom copies src into v element by element, converting to v's data type.
// Shapes must match. Overlapping views produce unspecified results.
func (v *View) CopyFrom(src *View) error {
	if !v.shape.Equal(src.shape) {
		return Errorf("copy", ErrShape, "destination %v, source %v", v.shape, src.shape)
	}
	if !Convertible(src.DType(), v.DType()) {
		return Errorf("copy", ErrUnsupportedConversion, "%s to %s", src.DType(), v.DType())
	}
	copyRegion(v.region(), src.region(), v.par)
	return nil
}

// Values returns the view's elements in row-major order, converted to T.
func Values[T HostType](v *View) ([]T, error) {
	dt := hostDataType[T]()
	if !Convertible(v.DType(), dt) {
		return nil, Errorf("values", ErrUnsupportedConversion, "%s to %s", v.DType(), dt)
	}
	out := make([]T, v.NumElements())
	st := &storage{}
	if dt == String {
		st.strs = any(out).([]string)
	} else {
		st.data = hostBytes(out)
	}
	dst := region{
		st:      st,
		dtype:   dt,
		shape:   v.shape,
		strides: v.shape.ComputeStrides(RowMajor),
	}
	copyRegion(dst, v.region(), v.par)
	return out, nil
}
