package sparse

import (
	"fmt"

	"github.com/born-ml/ndbuf/internal/tensor"
)

// COO is a sparse array in coordinate format: entry k has coordinates
// Indices[k*rank : (k+1)*rank] and value Values[k].
type COO struct {
	Indices    *tensor.Buffer // Int32 or Int64, nnz*rank elements
	Values     *tensor.Buffer // nnz elements of any data type
	DenseShape tensor.Shape   // Shape of the dense array; never changed by sorting
}

// NewCOO checks that indices and values describe entries of denseShape and
// returns a set holding its own references on both buffers.
func NewCOO(indices, values *tensor.Buffer, denseShape tensor.Shape) (*COO, error) {
	rank := len(denseShape)
	if err := denseShape.Validate(); err != nil {
		return nil, tensor.WrapError("coo", tensor.ErrShape, err)
	}
	if rank < 1 {
		return nil, tensor.Errorf("coo", tensor.ErrShape, "dense shape must have at least one dimension")
	}
	if dt := indices.DType(); dt != tensor.Int32 && dt != tensor.Int64 {
		return nil, tensor.Errorf("coo", tensor.ErrUnsupportedConversion, "indices must be int32 or int64, got %s", dt)
	}
	if indices.Len() != values.Len()*rank {
		return nil, tensor.Errorf("coo", tensor.ErrShape, "%d indices for %d values of rank %d", indices.Len(), values.Len(), rank)
	}
	return &COO{
		Indices:    indices.Share(),
		Values:     values.Share(),
		DenseShape: denseShape.Clone(),
	}, nil
}

// NNZ returns the number of stored entries.
func (c *COO) NNZ() int { return c.Values.Len() }

// Rank returns the number of dimensions of the dense array.
func (c *COO) Rank() int { return len(c.DenseShape) }

// Coords returns the coordinates of entry k.
func (c *COO) Coords(k int) []int {
	out := make([]int, c.Rank())
	for d := range out {
		out[d] = int(c.Indices.Int64(k*c.Rank() + d))
	}
	return out
}

// checkBounds verifies every coordinate lies inside DenseShape.
func (c *COO) checkBounds() error {
	rank := c.Rank()
	for i := 0; i < c.Indices.Len(); i++ {
		x := c.Indices.Int64(i)
		if dim := c.DenseShape[i%rank]; x < 0 || x >= int64(dim) {
			return tensor.Errorf("coo", tensor.ErrRange, "entry %d: coordinate %d outside dimension %d (size %d)", i/rank, x, i%rank, dim)
		}
	}
	return nil
}

// Sort orders the entries lexicographically by coordinates.
// Coordinates outside DenseShape are rejected before anything moves.
func (c *COO) Sort() error {
	if c.NNZ() == 0 {
		return nil
	}
	if err := c.checkBounds(); err != nil {
		return err
	}
	return SortIndices(c.Indices, c.Values, c.NNZ(), c.Rank())
}

// IsSorted reports whether the entries are in lexicographic order.
func (c *COO) IsSorted() bool {
	ok, err := IsSorted(c.Indices, c.Rank())
	return err == nil && ok
}

// Release drops the set's references on its buffers.
func (c *COO) Release() {
	c.Indices.Release()
	c.Values.Release()
}

// String returns a human-readable description of the set.
func (c *COO) String() string {
	return fmt.Sprintf("COO[%s]%v nnz=%d", c.Values.DType(), c.DenseShape, c.NNZ())
}

// FromDense collects the non-zero elements of v in row-major order.
// Numeric elements are kept when they are not equal to zero (NaN is kept);
// string elements when they are not empty. Indices are Int64.
func FromDense(v *tensor.View) (*COO, error) {
	if v.Rank() < 1 {
		return nil, tensor.Errorf("from dense", tensor.ErrShape, "scalar views have no coordinates")
	}
	dense, err := v.Dup(tensor.RowMajor)
	if err != nil {
		return nil, err
	}
	defer dense.Release()
	src := dense.Buffer()

	var positions []int
	for p := 0; p < src.Len(); p++ {
		if nonZero(src, p) {
			positions = append(positions, p)
		}
	}

	rank := v.Rank()
	coords := make([]int64, 0, len(positions)*rank)
	idx := make([]int, rank)
	for _, p := range positions {
		unravel(p, v.Shape(), idx)
		for _, x := range idx {
			coords = append(coords, int64(x))
		}
	}
	indices, err := tensor.FromArrayWith(allocatorOf(src), tensor.Int64, coords)
	if err != nil {
		return nil, err
	}
	defer indices.Release()

	values, err := tensor.AllocateWith(allocatorOf(src), src.DType(), len(positions))
	if err != nil {
		return nil, err
	}
	defer values.Release()
	for k, p := range positions {
		copyElement(values, k, src, p)
	}
	return NewCOO(indices, values, v.Shape())
}

// ToDense scatters the entries into a zero-filled row-major view allocated from cfg.
// When coordinates repeat, the entry stored last wins.
func (c *COO) ToDense(cfg tensor.Config) (*tensor.View, error) {
	if err := c.checkBounds(); err != nil {
		return nil, err
	}
	out, err := cfg.Zeros(c.Values.DType(), c.DenseShape, tensor.RowMajor)
	if err != nil {
		return nil, err
	}
	dst := out.Buffer()
	strides := c.DenseShape.ComputeStrides(tensor.RowMajor)
	for k := 0; k < c.NNZ(); k++ {
		pos := 0
		for d, x := range c.Coords(k) {
			pos += x * strides[d]
		}
		copyElement(dst, pos, c.Values, k)
	}
	return out, nil
}

func nonZero(b *tensor.Buffer, i int) bool {
	if b.DType() == tensor.String {
		return b.Text(i) != ""
	}
	return b.Float64(i) != 0
}

// copyElement copies element si of src into element di of dst; both have the same data type.
func copyElement(dst *tensor.Buffer, di int, src *tensor.Buffer, si int) {
	if src.DType() == tensor.String {
		dst.SetText(di, src.Text(si))
		return
	}
	w := src.ElementSize()
	copy(dst.Bytes()[di*w:(di+1)*w], src.Bytes()[si*w:(si+1)*w])
}

func allocatorOf(b *tensor.Buffer) tensor.Allocator {
	if a := b.Allocator(); a != nil {
		return a
	}
	return tensor.DefaultAllocator()
}

// unravel writes the row-major multi-index of flat position pos over shape into idx.
func unravel(pos int, shape tensor.Shape, idx []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		idx[i] = pos % shape[i]
		pos /= shape[i]
	}
}
