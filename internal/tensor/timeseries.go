package tensor

// Time series views are rank 3 with shape [miniBatch, size, timeSteps].

// Collapse3DTo2D turns a [mb, size, T] time series into a [mb*T, size] matrix whose
// row m + mb*t holds example m at step t.
//
// When mb == 1 or T == 1 the result is a re-striding of v; otherwise the data may
// be duplicated in column-major order.
func (v *View) Collapse3DTo2D() (*View, error) {
	if v.Rank() != 3 {
		return nil, Errorf("collapse", ErrShape, "expected rank 3 [miniBatch, size, timeSteps], got %v", v.shape)
	}
	mb, size, steps := v.shape[0], v.shape[1], v.shape[2]

	switch {
	case mb == 1:
		m, err := v.Select(0, 0)
		if err != nil {
			return nil, err
		}
		defer m.Release()
		return m.Transpose(), nil
	case steps == 1:
		return v.Select(2, 0)
	}

	p, err := v.Permute(0, 2, 1)
	if err != nil {
		return nil, err
	}
	defer p.Release()
	return p.Reshape(Shape{mb * steps, size}, ColumnMajor)
}

// Expand2DTo3D is the inverse of Collapse3DTo2D: a [mb*T, size] matrix becomes a
// [mb, size, T] time series.
func (v *View) Expand2DTo3D(miniBatch int) (*View, error) {
	if v.Rank() != 2 {
		return nil, Errorf("expand", ErrShape, "expected rank 2 [rows, size], got %v", v.shape)
	}
	if miniBatch <= 0 || v.shape[0]%miniBatch != 0 {
		return nil, Errorf("expand", ErrShape, "%d rows are not a multiple of mini-batch %d", v.shape[0], miniBatch)
	}
	r, err := v.Reshape(Shape{miniBatch, v.shape[0] / miniBatch, v.shape[1]}, ColumnMajor)
	if err != nil {
		return nil, err
	}
	defer r.Release()
	return r.Permute(0, 2, 1)
}

// ReverseTimeSeries reverses the time axis of a [mb, size, T] view. The result aliases v.
func (v *View) ReverseTimeSeries() (*View, error) {
	if v.Rank() != 3 {
		return nil, Errorf("reverse", ErrShape, "expected rank 3 [miniBatch, size, timeSteps], got %v", v.shape)
	}
	return v.Reverse(2)
}

// Per-step masks are rank 2 with shape [miniBatch, timeSteps].

// ReverseTimeSeriesMask reverses the time axis of a [mb, T] mask. A rank 3
// per-output mask is reversed like a time series. The result aliases v.
func (v *View) ReverseTimeSeriesMask() (*View, error) {
	switch v.Rank() {
	case 3:
		return v.ReverseTimeSeries()
	case 2:
		return v.Reverse(1)
	default:
		return nil, Errorf("reverse mask", ErrShape, "expected rank 2 or 3 mask, got %v", v.shape)
	}
}

// MaskToVector reshapes a [mb, T] mask into the [mb*T, 1] column matching the
// rows of Collapse3DTo2D.
func (v *View) MaskToVector() (*View, error) {
	if v.Rank() != 2 {
		return nil, Errorf("mask to vector", ErrShape, "expected rank 2 mask, got %v", v.shape)
	}
	return v.Reshape(Shape{v.NumElements(), 1}, ColumnMajor)
}

// VectorToMask is the inverse of MaskToVector.
func (v *View) VectorToMask(miniBatch int) (*View, error) {
	if !isVector(v.shape) {
		return nil, Errorf("vector to mask", ErrShape, "expected a vector, got %v", v.shape)
	}
	n := v.NumElements()
	if miniBatch <= 0 || n%miniBatch != 0 {
		return nil, Errorf("vector to mask", ErrShape, "%d elements are not a multiple of mini-batch %d", n, miniBatch)
	}
	return v.Reshape(Shape{miniBatch, n / miniBatch}, ColumnMajor)
}

func isVector(s Shape) bool {
	switch len(s) {
	case 1:
		return true
	case 2:
		return s[0] == 1 || s[1] == 1
	default:
		return false
	}
}

// LastTimeSteps extracts the [mb, size] activations at the last unmasked step
// of each example in a [mb, size, T] time series.
//
// With a nil mask every example uses step T-1, the result aliases v and steps
// is nil. Otherwise steps[i] is the last step where mask[i, t] != 0 and the
// result is a fresh row-major copy. An example with no unmasked step is an error.
func (v *View) LastTimeSteps(mask *View) (out *View, steps []int, err error) {
	if v.Rank() != 3 {
		return nil, nil, Errorf("last time steps", ErrShape, "expected rank 3 [miniBatch, size, timeSteps], got %v", v.shape)
	}
	mb, size, t := v.shape[0], v.shape[1], v.shape[2]
	if mask == nil {
		if t == 0 {
			return nil, nil, Errorf("last time steps", ErrShape, "time series %v has no steps", v.shape)
		}
		out, err = v.Select(2, t-1)
		return out, nil, err
	}
	if mask.Rank() != 2 || mask.shape[0] != mb || mask.shape[1] != t {
		return nil, nil, Errorf("last time steps", ErrShape, "mask %v does not match time series %v", mask.shape, v.shape)
	}
	if mask.DType() == String {
		return nil, nil, Errorf("last time steps", ErrUnsupportedConversion, "string mask")
	}

	steps = make([]int, mb)
	for i := range steps {
		steps[i] = -1
		for s := t - 1; s >= 0; s-- {
			if mask.Float64At(i, s) != 0 {
				steps[i] = s
				break
			}
		}
		if steps[i] < 0 {
			return nil, nil, Errorf("last time steps", ErrShape, "example %d is entirely masked out", i)
		}
	}

	cfg := Config{Allocator: v.buf.st.alloc, Parallel: v.par}
	out, err = cfg.Zeros(v.DType(), Shape{mb, size}, RowMajor)
	if err != nil {
		return nil, nil, err
	}
	for i, s := range steps {
		if err := copyStep(out, v, i, s); err != nil {
			out.Release()
			return nil, nil, err
		}
	}
	return out, steps, nil
}

// copyStep copies v[i, :, step] into row i of out.
func copyStep(out, v *View, i, step int) error {
	example, err := v.Select(0, i)
	if err != nil {
		return err
	}
	defer example.Release()
	src, err := example.Select(1, step)
	if err != nil {
		return err
	}
	defer src.Release()
	dst, err := out.Select(0, i)
	if err != nil {
		return err
	}
	defer dst.Release()
	return dst.CopyFrom(src)
}
