package tensor

import (
	"fmt"

	"github.com/born-ml/ndbuf/internal/parallel"
)

// View is a logical N-dimensional array: shape, element strides, ordering and an
// element offset into a Buffer.
//
// Many views may alias one buffer. Each view holds its own reference on the
// buffer's storage, so the storage lives until the last view (or buffer handle)
// is released. Strides may be negative (see Reverse).
type View struct {
	buf     *Buffer
	shape   Shape
	strides []int
	offset  int
	order   Order
	par     parallel.Config
}

// NewView wraps buf in a view with default strides for shape in order, at offset 0.
// The view takes its own reference on buf's storage.
func NewView(buf *Buffer, shape Shape, order Order) (*View, error) {
	return DefaultConfig().newView(buf, shape, order)
}

func (c Config) newView(buf *Buffer, shape Shape, order Order) (*View, error) {
	if !order.Valid() {
		return nil, Errorf("view", ErrShape, "invalid order %v", order)
	}
	return newStridedView(buf, shape, shape.ComputeStrides(order), 0, order, c.Parallel)
}

// NewStridedView wraps buf in a view with explicit strides and offset.
// Every element reachable through the view must lie inside buf.
func NewStridedView(buf *Buffer, shape Shape, strides []int, offset int, order Order) (*View, error) {
	if !order.Valid() {
		return nil, Errorf("view", ErrShape, "invalid order %v", order)
	}
	return newStridedView(buf, shape, strides, offset, order, DefaultConfig().Parallel)
}

func newStridedView(buf *Buffer, shape Shape, strides []int, offset int, order Order, par parallel.Config) (*View, error) {
	if err := shape.Validate(); err != nil {
		return nil, WrapError("view", ErrShape, err)
	}
	if len(strides) != len(shape) {
		return nil, Errorf("view", ErrShape, "%d strides for rank %d", len(strides), len(shape))
	}
	if shape.IsEmpty() {
		if offset < 0 || offset > buf.Len() {
			return nil, Errorf("view", ErrRange, "offset %d outside buffer of length %d", offset, buf.Len())
		}
	} else if lo, hi := extent(shape, strides, offset); lo < 0 || hi >= buf.Len() {
		return nil, Errorf("view", ErrRange, "shape %v strides %v offset %d reach elements [%d, %d] of a buffer of length %d",
			shape, strides, offset, lo, hi, buf.Len())
	}
	return &View{
		buf:     buf.Share(),
		shape:   shape.Clone(),
		strides: append([]int(nil), strides...),
		offset:  offset,
		order:   order,
		par:     par,
	}, nil
}

// extent returns the lowest and highest element index reachable through shape and strides.
func extent(shape Shape, strides []int, offset int) (lo, hi int) {
	lo, hi = offset, offset
	for i, dim := range shape {
		span := (dim - 1) * strides[i]
		if span < 0 {
			lo += span
		} else {
			hi += span
		}
	}
	return lo, hi
}

// derive returns a view over the same buffer with new geometry.
func (v *View) derive(shape Shape, strides []int, offset int, order Order) *View {
	return &View{
		buf:     v.buf.Share(),
		shape:   shape,
		strides: strides,
		offset:  offset,
		order:   order,
		par:     v.par,
	}
}

// Shape returns the view's shape.
func (v *View) Shape() Shape { return v.shape }

// Strides returns the view's element strides.
func (v *View) Strides() []int { return v.strides }

// Offset returns the element offset into the backing buffer.
func (v *View) Offset() int { return v.offset }

// Order returns the view's ordering tag.
func (v *View) Order() Order { return v.order }

// DType returns the element data type.
func (v *View) DType() DataType { return v.buf.dtype }

// Rank returns the number of dimensions.
func (v *View) Rank() int { return len(v.shape) }

// NumElements returns the number of logical elements.
func (v *View) NumElements() int { return v.shape.NumElements() }

// Buffer returns the backing buffer handle owned by the view.
// The handle stays valid until the view is released.
func (v *View) Buffer() *Buffer { return v.buf }

// SharesBuffer reports whether v and other alias the same storage.
func (v *View) SharesBuffer(other *View) bool { return v.buf.SharesStorage(other.buf) }

// Release drops the view's reference on the backing storage.
func (v *View) Release() { v.buf.Release() }

// HasDefaultStrides reports whether the strides are the defaults for the view's
// shape and ordering. Views without default strides may need a duplicate before
// operations that require contiguity.
func (v *View) HasDefaultStrides() bool {
	return v.IsContiguous(v.order)
}

// IsContiguous reports whether the view's elements occupy consecutive buffer
// positions laid out in the given order.
func (v *View) IsContiguous(order Order) bool {
	return stridesMatch(v.shape, v.strides, v.shape.ComputeStrides(order))
}

// Index returns the buffer element index addressed by idx.
// Panics if the number of indices or any index is out of bounds.
func (v *View) Index(idx ...int) int {
	if len(idx) != len(v.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(v.shape), len(idx)))
	}
	pos := v.offset
	for i, x := range idx {
		if x < 0 || x >= v.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", x, i, v.shape[i]))
		}
		pos += x * v.strides[i]
	}
	return pos
}

// Float64At returns the element at idx converted to float64.
func (v *View) Float64At(idx ...int) float64 {
	return v.buf.Float64(v.Index(idx...))
}

// SetFloat64At stores x at idx.
func (v *View) SetFloat64At(x float64, idx ...int) {
	v.buf.SetFloat64(v.Index(idx...), x)
}

// Int64At returns the element at idx converted to int64.
func (v *View) Int64At(idx ...int) int64 {
	return v.buf.Int64(v.Index(idx...))
}

// SetInt64At stores x at idx.
func (v *View) SetInt64At(x int64, idx ...int) {
	v.buf.SetInt64(v.Index(idx...), x)
}

// TextAt returns the element at idx of a String view.
func (v *View) TextAt(idx ...int) string {
	return v.buf.Text(v.Index(idx...))
}

// SetTextAt stores s at idx of a String view.
func (v *View) SetTextAt(s string, idx ...int) {
	v.buf.SetText(v.Index(idx...), s)
}

// String returns a human-readable representation of the view.
func (v *View) String() string {
	return fmt.Sprintf("View[%s]%v strides=%v offset=%d order=%s", v.DType(), v.shape, v.strides, v.offset, v.order)
}
