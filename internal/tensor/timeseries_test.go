package tensor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapse3DTo2D(t *testing.T) {
	const mb, size, steps = 2, 3, 4
	v := arange(t, Shape{mb, size, steps})

	c, err := v.Collapse3DTo2D()
	require.NoError(t, err)
	defer c.Release()

	require.Equal(t, Shape{mb * steps, size}, c.Shape())
	for m := 0; m < mb; m++ {
		for s := 0; s < size; s++ {
			for ts := 0; ts < steps; ts++ {
				assert.Equal(t, v.Float64At(m, s, ts), c.Float64At(m+mb*ts, s), "m=%d s=%d t=%d", m, s, ts)
			}
		}
	}
}

func TestCollapse3DTo2DDegenerate(t *testing.T) {
	t.Run("single example", func(t *testing.T) {
		v := arange(t, Shape{1, 3, 4})
		c, err := v.Collapse3DTo2D()
		require.NoError(t, err)
		defer c.Release()

		assert.Equal(t, Shape{4, 3}, c.Shape())
		assert.True(t, c.SharesBuffer(v))
		assert.Equal(t, v.Float64At(0, 2, 1), c.Float64At(1, 2))
	})

	t.Run("single step", func(t *testing.T) {
		v := arange(t, Shape{2, 3, 1})
		c, err := v.Collapse3DTo2D()
		require.NoError(t, err)
		defer c.Release()

		assert.Equal(t, Shape{2, 3}, c.Shape())
		assert.True(t, c.SharesBuffer(v))
		assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, values(t, c))
	})

	t.Run("wrong rank", func(t *testing.T) {
		v := arange(t, Shape{2, 3})
		_, err := v.Collapse3DTo2D()
		assert.ErrorIs(t, err, ErrShape)
	})
}

func TestExpand2DTo3DInvertsCollapse(t *testing.T) {
	for _, shape := range []Shape{{2, 3, 4}, {1, 3, 4}, {3, 2, 1}} {
		t.Run(fmt.Sprint(shape), func(t *testing.T) {
			v := arange(t, shape)
			c, err := v.Collapse3DTo2D()
			require.NoError(t, err)
			defer c.Release()

			e, err := c.Expand2DTo3D(shape[0])
			require.NoError(t, err)
			defer e.Release()

			assert.Equal(t, shape, e.Shape())
			assert.Equal(t, values(t, v), values(t, e))
		})
	}
}

func TestExpand2DTo3DErrors(t *testing.T) {
	v := arange(t, Shape{6, 2})

	_, err := v.Expand2DTo3D(4)
	assert.ErrorIs(t, err, ErrShape)
	_, err = v.Expand2DTo3D(0)
	assert.ErrorIs(t, err, ErrShape)

	w := arange(t, Shape{6})
	_, err = w.Expand2DTo3D(2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestReverseTimeSeries(t *testing.T) {
	v := arange(t, Shape{2, 2, 3})

	r, err := v.ReverseTimeSeries()
	require.NoError(t, err)
	defer r.Release()

	assert.True(t, r.SharesBuffer(v))
	assert.Equal(t, []float64{2, 1, 0, 5, 4, 3, 8, 7, 6, 11, 10, 9}, values(t, r))

	_, err = arange(t, Shape{2, 3}).ReverseTimeSeries()
	assert.ErrorIs(t, err, ErrShape)
}

func TestReverseTimeSeriesMask(t *testing.T) {
	mask := arange(t, Shape{2, 3})

	r, err := mask.ReverseTimeSeriesMask()
	require.NoError(t, err)
	defer r.Release()
	assert.True(t, r.SharesBuffer(mask))
	assert.Equal(t, []float64{2, 1, 0, 5, 4, 3}, values(t, r))

	perOutput := arange(t, Shape{1, 2, 2})
	r3, err := perOutput.ReverseTimeSeriesMask()
	require.NoError(t, err)
	defer r3.Release()
	assert.Equal(t, []float64{1, 0, 3, 2}, values(t, r3))

	_, err = arange(t, Shape{4}).ReverseTimeSeriesMask()
	assert.ErrorIs(t, err, ErrShape)
}

func TestMaskVectorRoundTrip(t *testing.T) {
	const mb, steps = 2, 3
	mask := arange(t, Shape{mb, steps})

	vec, err := mask.MaskToVector()
	require.NoError(t, err)
	defer vec.Release()
	require.Equal(t, Shape{mb * steps, 1}, vec.Shape())
	// Row m + mb*t lines up with Collapse3DTo2D.
	for m := 0; m < mb; m++ {
		for ts := 0; ts < steps; ts++ {
			assert.Equal(t, mask.Float64At(m, ts), vec.Float64At(m+mb*ts, 0), "m=%d t=%d", m, ts)
		}
	}

	back, err := vec.VectorToMask(mb)
	require.NoError(t, err)
	defer back.Release()
	assert.Equal(t, Shape{mb, steps}, back.Shape())
	assert.Equal(t, values(t, mask), values(t, back))
}

func TestMaskVectorErrors(t *testing.T) {
	_, err := arange(t, Shape{2, 2, 2}).MaskToVector()
	assert.ErrorIs(t, err, ErrShape)

	vec := arange(t, Shape{6})
	_, err = vec.VectorToMask(4)
	assert.ErrorIs(t, err, ErrShape)
	_, err = vec.VectorToMask(0)
	assert.ErrorIs(t, err, ErrShape)
	_, err = arange(t, Shape{2, 3}).VectorToMask(2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestLastTimeStepsWithoutMask(t *testing.T) {
	v := arange(t, Shape{2, 2, 3})

	out, steps, err := v.LastTimeSteps(nil)
	require.NoError(t, err)
	defer out.Release()

	assert.Nil(t, steps)
	assert.True(t, out.SharesBuffer(v))
	assert.Equal(t, Shape{2, 2}, out.Shape())
	assert.Equal(t, []float64{2, 5, 8, 11}, values(t, out))
}

func TestLastTimeStepsWithMask(t *testing.T) {
	v := arange(t, Shape{2, 2, 3})
	mask, err := FromSlice(DefaultConfig(), Uint8, []uint8{
		1, 1, 0,
		1, 0, 1,
	}, Shape{2, 3}, RowMajor)
	require.NoError(t, err)
	defer mask.Release()

	out, steps, err := v.LastTimeSteps(mask)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int{1, 2}, steps)
	assert.False(t, out.SharesBuffer(v))
	assert.Equal(t, []float64{1, 4, 8, 11}, values(t, out))
}

func TestLastTimeStepsErrors(t *testing.T) {
	v := arange(t, Shape{2, 2, 3})

	allMasked, err := FromSlice(DefaultConfig(), Float64, []float64{0, 1, 0, 0, 0, 0}, Shape{2, 3}, RowMajor)
	require.NoError(t, err)
	defer allMasked.Release()
	_, _, err = v.LastTimeSteps(allMasked)
	assert.ErrorIs(t, err, ErrShape)

	_, _, err = v.LastTimeSteps(arange(t, Shape{3, 2}))
	assert.ErrorIs(t, err, ErrShape)

	_, _, err = arange(t, Shape{2, 3}).LastTimeSteps(nil)
	assert.ErrorIs(t, err, ErrShape)
}
