package tensor

import (
	"fmt"
	"math"
	"math/bits"
	"unsafe"
)

// codec is the conversion table entry of one data type. Every numeric element
// can be loaded and stored through three lanes (float64, int64, uint64); a
// conversion picks the lane of its source type so no precision is lost before
// the destination's own rounding rule applies.
type codec struct {
	loadF  func(data []byte, i int) float64
	storeF func(data []byte, i int, v float64)
	loadI  func(data []byte, i int) int64
	storeI func(data []byte, i int, v int64)
	loadU  func(data []byte, i int) uint64
	storeU func(data []byte, i int, v uint64)
}

// at returns a pointer to element i of a T-typed byte region.
func at[T any](data []byte, i int) *T {
	var zero T
	//nolint:gosec // element addressing inside a slice whose length is checked by the caller
	return (*T)(unsafe.Pointer(&data[i*int(unsafe.Sizeof(zero))]))
}

// saturate truncates v toward zero and clamps it to [lo, hi]; NaN becomes 0.
func saturate(v, lo, hi float64) float64 {
	if v != v {
		return 0
	}
	v = math.Trunc(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// signedCodec builds the table entry for a signed integer type.
func signedCodec[T int8 | int16 | int32](lo, hi float64) codec {
	return codec{
		loadF:  func(d []byte, i int) float64 { return float64(*at[T](d, i)) },
		storeF: func(d []byte, i int, v float64) { *at[T](d, i) = T(saturate(v, lo, hi)) },
		loadI:  func(d []byte, i int) int64 { return int64(*at[T](d, i)) },
		storeI: func(d []byte, i int, v int64) { *at[T](d, i) = T(v) },
		loadU:  func(d []byte, i int) uint64 { return uint64(*at[T](d, i)) },
		storeU: func(d []byte, i int, v uint64) { *at[T](d, i) = T(v) },
	}
}

// unsignedCodec builds the table entry for an unsigned integer type.
func unsignedCodec[T uint8 | uint16 | uint32](hi float64) codec {
	return codec{
		loadF:  func(d []byte, i int) float64 { return float64(*at[T](d, i)) },
		storeF: func(d []byte, i int, v float64) { *at[T](d, i) = T(saturate(v, 0, hi)) },
		loadI:  func(d []byte, i int) int64 { return int64(*at[T](d, i)) },
		storeI: func(d []byte, i int, v int64) { *at[T](d, i) = T(v) },
		loadU:  func(d []byte, i int) uint64 { return uint64(*at[T](d, i)) },
		storeU: func(d []byte, i int, v uint64) { *at[T](d, i) = T(v) },
	}
}

// floatCodec builds the table entry for a type whose values round-trip through float64.
// Narrow types take integers through a round-to-odd float64 so their own
// rounding is the only one that counts.
func floatCodec(load func(d []byte, i int) float64, store func(d []byte, i int, v float64), narrow bool) codec {
	fromI := func(v int64) float64 { return float64(v) }
	fromU := func(v uint64) float64 { return float64(v) }
	if narrow {
		fromI, fromU = int64ToOddFloat, uint64ToOddFloat
	}
	return codec{
		loadF:  load,
		storeF: store,
		loadI:  func(d []byte, i int) int64 { return saturateInt64(load(d, i)) },
		storeI: func(d []byte, i int, v int64) { store(d, i, fromI(v)) },
		loadU:  func(d []byte, i int) uint64 { return saturateUint64(load(d, i)) },
		storeU: func(d []byte, i int, v uint64) { store(d, i, fromU(v)) },
	}
}

// uint64ToOddFloat converts u to float64, rounding to odd when u needs more
// than 53 bits: dropped bits are folded into the lowest kept bit. A later
// round-to-nearest to 51 or fewer significant bits then equals rounding u directly.
func uint64ToOddFloat(u uint64) float64 {
	n := bits.Len64(u)
	if n <= 53 {
		return float64(u)
	}
	shift := n - 53
	m := u >> shift
	if u&(1<<shift-1) != 0 {
		m |= 1
	}
	return math.Ldexp(float64(m), shift)
}

func int64ToOddFloat(v int64) float64 {
	if v < 0 {
		// -MinInt64 wraps to itself, which is 2^63 as uint64.
		return -uint64ToOddFloat(uint64(-v))
	}
	return uint64ToOddFloat(uint64(v))
}

// saturateInt64 converts v to int64 with truncation and saturation.
// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is checked before converting.
func saturateInt64(v float64) int64 {
	if v != v {
		return 0
	}
	switch {
	case v >= 1<<63:
		return math.MaxInt64
	case v <= -(1 << 63):
		return math.MinInt64
	default:
		return int64(v)
	}
}

// saturateUint64 converts v to uint64 with truncation and saturation.
func saturateUint64(v float64) uint64 {
	switch {
	case v != v, v <= 0:
		return 0
	case v >= 1<<64:
		return math.MaxUint64
	default:
		return uint64(v)
	}
}

var codecs = func() [String]codec {
	var t [String]codec
	t[Bool] = codec{
		loadF:  func(d []byte, i int) float64 { return boolTo[float64](*at[bool](d, i)) },
		storeF: func(d []byte, i int, v float64) { *at[bool](d, i) = v != 0 },
		loadI:  func(d []byte, i int) int64 { return boolTo[int64](*at[bool](d, i)) },
		storeI: func(d []byte, i int, v int64) { *at[bool](d, i) = v != 0 },
		loadU:  func(d []byte, i int) uint64 { return boolTo[uint64](*at[bool](d, i)) },
		storeU: func(d []byte, i int, v uint64) { *at[bool](d, i) = v != 0 },
	}
	t[Int8] = signedCodec[int8](math.MinInt8, math.MaxInt8)
	t[Int16] = signedCodec[int16](math.MinInt16, math.MaxInt16)
	t[Int32] = signedCodec[int32](math.MinInt32, math.MaxInt32)
	t[Int64] = codec{
		loadF:  func(d []byte, i int) float64 { return float64(*at[int64](d, i)) },
		storeF: func(d []byte, i int, v float64) { *at[int64](d, i) = saturateInt64(v) },
		loadI:  func(d []byte, i int) int64 { return *at[int64](d, i) },
		storeI: func(d []byte, i int, v int64) { *at[int64](d, i) = v },
		loadU:  func(d []byte, i int) uint64 { return uint64(*at[int64](d, i)) },
		storeU: func(d []byte, i int, v uint64) { *at[int64](d, i) = int64(v) },
	}
	t[Uint8] = unsignedCodec[uint8](math.MaxUint8)
	t[Uint16] = unsignedCodec[uint16](math.MaxUint16)
	t[Uint32] = unsignedCodec[uint32](math.MaxUint32)
	t[Uint64] = codec{
		loadF:  func(d []byte, i int) float64 { return float64(*at[uint64](d, i)) },
		storeF: func(d []byte, i int, v float64) { *at[uint64](d, i) = saturateUint64(v) },
		loadI:  func(d []byte, i int) int64 { return int64(*at[uint64](d, i)) },
		storeI: func(d []byte, i int, v int64) { *at[uint64](d, i) = uint64(v) },
		loadU:  func(d []byte, i int) uint64 { return *at[uint64](d, i) },
		storeU: func(d []byte, i int, v uint64) { *at[uint64](d, i) = v },
	}
	t[Float16] = floatCodec(
		func(d []byte, i int) float64 { return at[F16](d, i).Float64() },
		func(d []byte, i int, v float64) { *at[F16](d, i) = F16FromFloat64(v) },
		true,
	)
	t[BFloat16] = floatCodec(
		func(d []byte, i int) float64 { return at[BF16](d, i).Float64() },
		func(d []byte, i int, v float64) { *at[BF16](d, i) = BF16FromFloat64(v) },
		true,
	)
	t[Float32] = floatCodec(
		func(d []byte, i int) float64 { return float64(*at[float32](d, i)) },
		func(d []byte, i int, v float64) { *at[float32](d, i) = float32(v) },
		true,
	)
	t[Float64] = floatCodec(
		func(d []byte, i int) float64 { return *at[float64](d, i) },
		func(d []byte, i int, v float64) { *at[float64](d, i) = v },
		false,
	)
	return t
}()

func boolTo[T float64 | int64 | uint64](b bool) T {
	if b {
		return 1
	}
	return 0
}

// codecFor returns the conversion table entry for dt. Panics for String.
func codecFor(dt DataType) *codec {
	if dt == String || !dt.Valid() {
		panic(fmt.Sprintf("tensor: no numeric conversion for %s", dt))
	}
	return &codecs[dt]
}

// Convertible reports whether values of type from can be converted to type to.
func Convertible(from, to DataType) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return (from == String) == (to == String)
}

// convertElements converts n elements from src (starting at element srcOff, type
// srcDT) into dst (starting at element dstOff, type dstDT). Both regions must be
// numeric and in bounds.
func convertElements(dst []byte, dstDT DataType, dstOff int, src []byte, srcDT DataType, srcOff, n int) {
	if n == 0 {
		return
	}
	if srcDT == dstDT {
		size := srcDT.Size()
		copy(dst[dstOff*size:(dstOff+n)*size], src[srcOff*size:(srcOff+n)*size])
		return
	}
	from, to := codecFor(srcDT), codecFor(dstDT)
	switch {
	case srcDT.IsFloat():
		for i := 0; i < n; i++ {
			to.storeF(dst, dstOff+i, from.loadF(src, srcOff+i))
		}
	case srcDT.IsSigned():
		for i := 0; i < n; i++ {
			to.storeI(dst, dstOff+i, from.loadI(src, srcOff+i))
		}
	default: // unsigned and bool
		for i := 0; i < n; i++ {
			to.storeU(dst, dstOff+i, from.loadU(src, srcOff+i))
		}
	}
}

// hostBytes exposes a numeric host slice as raw bytes without copying.
func hostBytes[T HostType](src []T) []byte {
	if len(src) == 0 {
		return nil
	}
	var zero T
	//nolint:gosec // unsafe.Slice over a live Go slice, length derived from it
	return unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*int(unsafe.Sizeof(zero)))
}

// SetFrom copies src into buf, converting every element to buf's data type.
// len(src) must equal buf.Len().
func SetFrom[T HostType](buf *Buffer, src []T) error {
	srcDT := hostDataType[T]()
	if len(src) != buf.Len() {
		return Errorf("set", ErrRange, "source has %d elements, buffer has %d", len(src), buf.Len())
	}
	if !Convertible(srcDT, buf.dtype) {
		return Errorf("set", ErrUnsupportedConversion, "%s to %s", srcDT, buf.dtype)
	}
	if buf.dtype == String {
		copy(buf.Strings(), any(src).([]string))
		return nil
	}
	convertElements(buf.st.data, buf.dtype, buf.offset, hostBytes(src), srcDT, 0, len(src))
	return nil
}

// AsArray returns a new host slice holding buf's elements converted to T.
func AsArray[T HostType](buf *Buffer) ([]T, error) {
	dstDT := hostDataType[T]()
	if !Convertible(buf.dtype, dstDT) {
		return nil, Errorf("as array", ErrUnsupportedConversion, "%s to %s", buf.dtype, dstDT)
	}
	out := make([]T, buf.Len())
	if buf.dtype == String {
		copy(any(out).([]string), buf.Strings())
		return out, nil
	}
	convertElements(hostBytes(out), dstDT, 0, buf.st.data, buf.dtype, buf.offset, buf.Len())
	return out, nil
}

// FromArray allocates a buffer of type dtype holding src converted element by element.
func FromArray[T HostType](dtype DataType, src []T) (*Buffer, error) {
	return FromArrayWith(DefaultAllocator(), dtype, src)
}

// FromArrayWith is FromArray with an explicit allocator.
func FromArrayWith[T HostType](alloc Allocator, dtype DataType, src []T) (*Buffer, error) {
	if srcDT := hostDataType[T](); !Convertible(srcDT, dtype) {
		return nil, Errorf("from array", ErrUnsupportedConversion, "%s to %s", srcDT, dtype)
	}
	buf, err := AllocateWith(alloc, dtype, len(src))
	if err != nil {
		return nil, err
	}
	if err := SetFrom(buf, src); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

// Convert returns a new buffer with b's elements converted to dtype.
func (b *Buffer) Convert(dtype DataType) (*Buffer, error) {
	if !Convertible(b.dtype, dtype) {
		return nil, Errorf("convert", ErrUnsupportedConversion, "%s to %s", b.dtype, dtype)
	}
	alloc := b.st.alloc
	if alloc == nil {
		alloc = DefaultAllocator()
	}
	out, err := AllocateWith(alloc, dtype, b.length)
	if err != nil {
		return nil, err
	}
	if dtype == String {
		copy(out.Strings(), b.Strings())
		return out, nil
	}
	convertElements(out.st.data, dtype, 0, b.st.data, b.dtype, b.offset, b.length)
	return out, nil
}
