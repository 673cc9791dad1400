package tensor

import "fmt"

// Shape represents the dimensions of a view.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// IsEmpty reports whether any dimension is 0.
func (s Shape) IsEmpty() bool {
	for _, dim := range s {
		if dim == 0 {
			return true
		}
	}
	return false
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Order is the canonical layout convention used for default strides.
type Order byte

// Supported orderings.
const (
	RowMajor    Order = 'c' // Last dimension contiguous
	ColumnMajor Order = 'f' // First dimension contiguous
)

// String returns "c" or "f".
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "c"
	case ColumnMajor:
		return "f"
	default:
		return fmt.Sprintf("Order(%d)", byte(o))
	}
}

// Valid reports whether o is RowMajor or ColumnMajor.
func (o Order) Valid() bool {
	return o == RowMajor || o == ColumnMajor
}

// ComputeStrides calculates the default element strides of the shape in the given order.
//
// Row-major: stride[i] = product of all dimensions after i.
// Column-major: stride[i] = product of all dimensions before i.
func (s Shape) ComputeStrides(order Order) []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	if order == ColumnMajor {
		strides[0] = 1
		for i := 1; i < len(s); i++ {
			strides[i] = strides[i-1] * max(s[i-1], 1)
		}
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * max(s[i+1], 1)
	}
	return strides
}

// stridesMatch compares strides, ignoring dimensions of size 1 whose stride is never used.
func stridesMatch(shape Shape, a, b []int) bool {
	for i := range shape {
		if shape[i] != 1 && a[i] != b[i] {
			return false
		}
	}
	return true
}

// isPermutation reports whether axes is a permutation of [0, rank).
func isPermutation(axes []int, rank int) bool {
	if len(axes) != rank {
		return false
	}
	seen := make([]bool, rank)
	for _, a := range axes {
		if a < 0 || a >= rank || seen[a] {
			return false
		}
		seen[a] = true
	}
	return true
}
