// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"context"

	"github.com/born-ml/ndbuf/internal/sparse"
)

// COO is a sparse array in coordinate format.
type COO = sparse.COO

// NewCOO checks that indices and values describe entries of denseShape.
func NewCOO(indices, values *Buffer, denseShape Shape) (*COO, error) {
	return sparse.NewCOO(indices, values, denseShape)
}

// FromDense collects the non-zero elements of v into a COO set.
func FromDense(v *View) (*COO, error) {
	return sparse.FromDense(v)
}

// SortIndices sorts nnz coordinate rows of length rank lexicographically in
// place, applying the same permutation to values.
//
// Example:
//
//	// indices [1,0,0, 0,1,1, 0,1,0, 1,1,1], values [2,1,0,3]
//	err := tensor.SortIndices(indices, values, 4, 3)
//	// indices [0,1,0, 0,1,1, 1,0,0, 1,1,1], values [0,1,2,3]
func SortIndices(indices, values *Buffer, nnz, rank int) error {
	return sparse.SortIndices(indices, values, nnz, rank)
}

// SortMirrored sorts index and value buffers held in device mirrors.
func SortMirrored(ctx context.Context, indices, values *Mirror, nnz, rank int) error {
	return sparse.SortMirrored(ctx, indices, values, nnz, rank)
}
