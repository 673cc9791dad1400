package sparse

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ndbuf/internal/device"
	"github.com/born-ml/ndbuf/internal/tensor"
)

// valueTypes are the value data types every literal scenario runs against.
var valueTypes = []tensor.DataType{
	tensor.Float32, tensor.Float64, tensor.Float16, tensor.Int64, tensor.Int32, tensor.Int16, tensor.Int8,
}

func buffer[T tensor.HostType](t *testing.T, dt tensor.DataType, data []T) *tensor.Buffer {
	t.Helper()
	buf, err := tensor.FromArray(dt, data)
	require.NoError(t, err)
	t.Cleanup(buf.Release)
	return buf
}

func asFloat64s(t *testing.T, buf *tensor.Buffer) []float64 {
	t.Helper()
	out, err := tensor.AsArray[float64](buf)
	require.NoError(t, err)
	return out
}

func asInt64s(t *testing.T, buf *tensor.Buffer) []int64 {
	t.Helper()
	out, err := tensor.AsArray[int64](buf)
	require.NoError(t, err)
	return out
}

func TestSortIndicesLiteral(t *testing.T) {
	tests := []struct {
		name       string
		indices    []int64
		values     []float64
		wantIdx    []int64
		wantValues []float64
	}{
		{
			name: "four entries",
			indices: []int64{
				1, 0, 0,
				0, 1, 1,
				0, 1, 0,
				1, 1, 1,
			},
			values: []float64{2, 1, 0, 3},
			wantIdx: []int64{
				0, 1, 0,
				0, 1, 1,
				1, 0, 0,
				1, 1, 1,
			},
			wantValues: []float64{0, 1, 2, 3},
		},
		{
			name: "three entries",
			indices: []int64{
				0, 0, 0,
				2, 2, 2,
				1, 1, 1,
			},
			values: []float64{2, 1, 3},
			wantIdx: []int64{
				0, 0, 0,
				1, 1, 1,
				2, 2, 2,
			},
			wantValues: []float64{2, 3, 1},
		},
	}

	for _, tt := range tests {
		for _, idxType := range []tensor.DataType{tensor.Int64, tensor.Int32} {
			for _, valType := range valueTypes {
				t.Run(fmt.Sprintf("%s/%s/%s", tt.name, idxType, valType), func(t *testing.T) {
					idx := buffer(t, idxType, tt.indices)
					vals := buffer(t, valType, tt.values)

					require.NoError(t, SortIndices(idx, vals, len(tt.values), 3))
					assert.Equal(t, tt.wantIdx, asInt64s(t, idx))
					assert.InDeltaSlice(t, tt.wantValues, asFloat64s(t, vals), 1e-5)
				})
			}
		}
	}
}

func TestSortIndicesFortyRows(t *testing.T) {
	indices := []int64{
		0, 2, 7,
		2, 36, 35,
		3, 30, 17,
		5, 12, 22,
		5, 43, 45,
		6, 32, 11,
		8, 8, 32,
		9, 29, 11,
		5, 11, 22,
		15, 26, 16,
		17, 48, 49,
		24, 28, 31,
		26, 6, 23,
		31, 21, 31,
		35, 46, 45,
		37, 13, 14,
		6, 38, 18,
		7, 28, 20,
		8, 29, 39,
		8, 32, 30,
		9, 42, 43,
		11, 15, 18,
		13, 18, 45,
		29, 26, 39,
		30, 8, 25,
		42, 31, 24,
		28, 33, 5,
		31, 27, 1,
		35, 43, 26,
		36, 8, 37,
		39, 22, 14,
		39, 24, 42,
		42, 48, 2,
		43, 26, 48,
		44, 23, 49,
		45, 18, 34,
		46, 28, 5,
		46, 32, 17,
		48, 34, 44,
		49, 38, 39,
	}
	want := []int64{
		0, 2, 7,
		2, 36, 35,
		3, 30, 17,
		5, 11, 22,
		5, 12, 22,
		5, 43, 45,
		6, 32, 11,
		6, 38, 18,
		7, 28, 20,
		8, 8, 32,
		8, 29, 39,
		8, 32, 30,
		9, 29, 11,
		9, 42, 43,
		11, 15, 18,
		13, 18, 45,
		15, 26, 16,
		17, 48, 49,
		24, 28, 31,
		26, 6, 23,
		28, 33, 5,
		29, 26, 39,
		30, 8, 25,
		31, 21, 31,
		31, 27, 1,
		35, 43, 26,
		35, 46, 45,
		36, 8, 37,
		37, 13, 14,
		39, 22, 14,
		39, 24, 42,
		42, 31, 24,
		42, 48, 2,
		43, 26, 48,
		44, 23, 49,
		45, 18, 34,
		46, 28, 5,
		46, 32, 17,
		48, 34, 44,
		49, 38, 39,
	}

	// Value k remembers the row it started in.
	values := make([]float64, 40)
	for k := range values {
		values[k] = float64(k)
	}
	idx := buffer(t, tensor.Int64, indices)
	vals := buffer(t, tensor.Float64, values)

	require.NoError(t, SortIndices(idx, vals, 40, 3))
	assert.Equal(t, want, tensor.Data[int64](idx))

	got := tensor.Data[float64](vals)
	for k, v := range got {
		orig := int(v)
		assert.Equal(t, indices[orig*3:orig*3+3], want[k*3:k*3+3], "value %d moved without its row", orig)
	}
}

func TestSortIndicesRandom(t *testing.T) {
	const nnz, rank = 100, 3
	rng := rand.New(rand.NewPCG(12040483421383, 0))

	indices := make([]int64, nnz*rank)
	for i := range indices {
		indices[i] = rng.Int64N(50)
	}
	values := make([]float64, nnz)
	for i := range values {
		values[i] = rng.Float64()
	}

	// Multiset of (row, value) pairs before sorting.
	before := pairs(indices, values, rank)

	idx := buffer(t, tensor.Int64, indices)
	vals := buffer(t, tensor.Float64, values)
	require.NoError(t, SortIndices(idx, vals, nnz, rank))

	sorted, err := IsSorted(idx, rank)
	require.NoError(t, err)
	assert.True(t, sorted)

	gotIdx := tensor.Data[int64](idx)
	for i := 1; i < nnz; i++ {
		prev, cur := gotIdx[(i-1)*rank:i*rank], gotIdx[i*rank:(i+1)*rank]
		assert.LessOrEqual(t, compareRows(prev, cur), 0, "rows %d and %d out of order: %v > %v", i-1, i, prev, cur)
	}
	assert.Equal(t, before, pairs(gotIdx, tensor.Data[float64](vals), rank))
}

func pairs(indices []int64, values []float64, rank int) []string {
	out := make([]string, len(values))
	for k, v := range values {
		out[k] = fmt.Sprint(indices[k*rank:(k+1)*rank], v)
	}
	sort.Strings(out)
	return out
}

func compareRows(a, b []int64) int {
	for d := range a {
		switch {
		case a[d] < b[d]:
			return -1
		case a[d] > b[d]:
			return 1
		}
	}
	return 0
}

func TestSortIndicesDuplicates(t *testing.T) {
	idx := buffer(t, tensor.Int32, []int32{
		1, 1,
		0, 5,
		1, 1,
		0, 5,
	})
	vals := buffer(t, tensor.Int16, []int16{10, 20, 30, 40})

	require.NoError(t, SortIndices(idx, vals, 4, 2))
	assert.Equal(t, []int32{0, 5, 0, 5, 1, 1, 1, 1}, tensor.Data[int32](idx))

	got := tensor.Data[int16](vals)
	assert.ElementsMatch(t, []int16{20, 40}, got[:2])
	assert.ElementsMatch(t, []int16{10, 30}, got[2:])
}

func TestSortIndicesRankOne(t *testing.T) {
	idx := buffer(t, tensor.Int64, []int64{5, 1, 4, 2, 3})
	vals := buffer(t, tensor.Uint8, []uint8{50, 10, 40, 20, 30})

	require.NoError(t, SortIndices(idx, vals, 5, 1))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, tensor.Data[int64](idx))
	assert.Equal(t, []uint8{10, 20, 30, 40, 50}, tensor.Data[uint8](vals))
}

func TestSortIndicesEmpty(t *testing.T) {
	assert.NoError(t, SortIndices(nil, nil, 0, 3))

	idx := buffer(t, tensor.Float32, []float32{1})
	vals := buffer(t, tensor.Float32, []float32{1, 2})
	assert.NoError(t, SortIndices(idx, vals, 0, 0), "nnz 0 is never validated")
}

func TestSortIndicesCarriesEveryValueType(t *testing.T) {
	indices := []int64{2, 0, 1}
	check := func(t *testing.T, vals *tensor.Buffer) {
		idx := buffer(t, tensor.Int64, indices)
		require.NoError(t, SortIndices(idx, vals, 3, 1))
	}

	t.Run("string", func(t *testing.T) {
		vals := buffer(t, tensor.String, []string{"two", "zero", "one"})
		check(t, vals)
		assert.Equal(t, []string{"zero", "one", "two"}, vals.Strings())
	})
	t.Run("bool", func(t *testing.T) {
		vals := buffer(t, tensor.Bool, []bool{true, false, false})
		check(t, vals)
		assert.Equal(t, []bool{false, false, true}, tensor.Data[bool](vals))
	})
	t.Run("bfloat16", func(t *testing.T) {
		vals := buffer(t, tensor.BFloat16, []float64{2, 0, 1})
		check(t, vals)
		assert.Equal(t, []float64{0, 1, 2}, asFloat64s(t, vals))
	})
	t.Run("uint64", func(t *testing.T) {
		vals := buffer(t, tensor.Uint64, []uint64{1 << 63, 0, 1 << 40})
		check(t, vals)
		assert.Equal(t, []uint64{0, 1 << 40, 1 << 63}, tensor.Data[uint64](vals))
	})
	t.Run("sub-view", func(t *testing.T) {
		all := buffer(t, tensor.Int32, []int32{-1, 2, 0, 1, -1})
		vals, err := tensor.ViewOf(all, 1, 3)
		require.NoError(t, err)
		defer vals.Release()
		check(t, vals)
		assert.Equal(t, []int32{-1, 0, 1, 2, -1}, tensor.Data[int32](all))
	})
}

func TestSortIndicesValidation(t *testing.T) {
	original := []int64{1, 0, 0, 1}
	tests := []struct {
		name    string
		idx     *tensor.Buffer
		vals    *tensor.Buffer
		nnz     int
		rank    int
		wantErr error
	}{
		{"indices too short", buffer(t, tensor.Int64, original), buffer(t, tensor.Float32, []float32{1, 2}), 2, 3, tensor.ErrShape},
		{"values too short", buffer(t, tensor.Int64, original), buffer(t, tensor.Float32, []float32{1}), 2, 2, tensor.ErrShape},
		{"rank zero", buffer(t, tensor.Int64, original), buffer(t, tensor.Float32, []float32{1, 2}), 2, 0, tensor.ErrShape},
		{"negative nnz", buffer(t, tensor.Int64, original), buffer(t, tensor.Float32, []float32{1, 2}), -2, 2, tensor.ErrShape},
		{"float indices", buffer(t, tensor.Float64, original), buffer(t, tensor.Float32, []float32{1, 2}), 2, 2, tensor.ErrUnsupportedConversion},
		{"negative coordinate", buffer(t, tensor.Int64, []int64{1, 0, 0, -1}), buffer(t, tensor.Float32, []float32{1, 2}), 2, 2, tensor.ErrShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := asInt64s(t, tt.idx)
			beforeVals := asFloat64s(t, tt.vals)

			err := SortIndices(tt.idx, tt.vals, tt.nnz, tt.rank)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, asInt64s(t, tt.idx), "indices must not move on failure")
			assert.Equal(t, beforeVals, asFloat64s(t, tt.vals), "values must not move on failure")
		})
	}
}

func TestIsSorted(t *testing.T) {
	ok, err := IsSorted(buffer(t, tensor.Int32, []int32{0, 1, 0, 1, 1, 0}), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsSorted(buffer(t, tensor.Int64, []int64{1, 0, 0, 9}), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IsSorted(buffer(t, tensor.Int64, []int64{1, 0, 0}), 2)
	assert.ErrorIs(t, err, tensor.ErrShape)

	_, err = IsSorted(buffer(t, tensor.Uint8, []uint8{1, 0}), 1)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConversion)
}

func TestSortMirrored(t *testing.T) {
	ctx := context.Background()
	sim := device.NewHostSim(device.DefaultHostSimConfig())

	idx := buffer(t, tensor.Int64, []int64{0, 0, 0, 0, 0, 0})
	vals := buffer(t, tensor.Float32, []float32{0, 0, 0})
	idxMirror, err := device.NewMirror(idx, sim)
	require.NoError(t, err)
	defer idxMirror.Release()
	valMirror, err := device.NewMirror(vals, sim)
	require.NoError(t, err)
	defer valMirror.Release()

	// The unsorted data only exists on the device.
	dev := buffer(t, tensor.Int64, []int64{2, 0, 1, 1, 0, 5})
	require.NoError(t, sim.Upload(ctx, idxMirror.Memory(), dev.Bytes()))
	devVals := buffer(t, tensor.Float32, []float32{20, 11, 5})
	require.NoError(t, sim.Upload(ctx, valMirror.Memory(), devVals.Bytes()))
	idxMirror.MarkDeviceWritten()
	valMirror.MarkDeviceWritten()

	require.NoError(t, SortMirrored(ctx, idxMirror, valMirror, 3, 2))
	assert.Equal(t, []int64{0, 5, 1, 1, 2, 0}, tensor.Data[int64](idx))
	assert.Equal(t, []float32{5, 11, 20}, tensor.Data[float32](vals))
	assert.Equal(t, device.HostCurrent, idxMirror.State())
	assert.Equal(t, device.HostCurrent, valMirror.State())

	require.NoError(t, idxMirror.EnsureDeviceCurrent(ctx))
	out := make([]byte, idx.ByteSize())
	require.NoError(t, sim.Download(ctx, out, idxMirror.Memory()))
	assert.Equal(t, idx.Bytes(), out)
}

func TestSortMirroredErrors(t *testing.T) {
	ctx := context.Background()
	sim := device.NewHostSim(device.DefaultHostSimConfig())
	idxMirror, err := device.NewMirror(buffer(t, tensor.Int64, []int64{1, 0}), sim)
	require.NoError(t, err)
	defer idxMirror.Release()
	valMirror, err := device.NewMirror(buffer(t, tensor.Float32, []float32{1, 2}), sim)
	require.NoError(t, err)
	defer valMirror.Release()

	idxMirror.MarkDeviceWritten()
	sim.FailNext(1)
	err = SortMirrored(ctx, idxMirror, valMirror, 2, 1)
	assert.ErrorIs(t, err, tensor.ErrTransfer)
	assert.Equal(t, device.DeviceCurrent, idxMirror.State())

	idxMirror.Invalidate()
	err = SortMirrored(ctx, idxMirror, valMirror, 2, 1)
	assert.ErrorIs(t, err, tensor.ErrTransfer)
}
