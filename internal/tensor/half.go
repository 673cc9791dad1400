package tensor

import "math"

// F16 is an IEEE 754 half-precision value stored as raw bits.
// Layout: 1 sign bit, 5 exponent bits, 10 mantissa bits.
type F16 uint16

// BF16 is a bfloat16 ("truncated float") value stored as raw bits.
// Layout: 1 sign bit, 8 exponent bits, 7 mantissa bits.
type BF16 uint16

// minifloat describes a 16-bit binary floating point layout.
type minifloat struct {
	expBits uint
	manBits uint
}

var (
	halfFormat  = minifloat{expBits: 5, manBits: 10}
	bhalfFormat = minifloat{expBits: 8, manBits: 7}
)

const float16SignMask = 0x8000

func (f minifloat) bias() int { return 1<<(f.expBits-1) - 1 }

func (f minifloat) maxExp() int { return 1<<f.expBits - 1 }

func (f minifloat) expMask() uint16 { return uint16(f.maxExp()) << f.manBits }

func (f minifloat) manMask() uint64 { return 1<<f.manBits - 1 }

// encode rounds v to the nearest representable value (ties to even).
// Rounding starts from the float64 bits so float32 and float64 sources
// both get a single rounding step.
func (f minifloat) encode(v float64) uint16 {
	bits := math.Float64bits(v)
	sign := uint16(bits>>48) & float16SignMask
	exp := int(bits>>52) & 0x7FF
	man := bits & (1<<52 - 1)

	if exp == 0x7FF {
		if man == 0 {
			return sign | f.expMask()
		}
		return sign | f.expMask() | 1<<(f.manBits-1) | uint16(man>>(52-f.manBits))&uint16(f.manMask())
	}
	if exp == 0 {
		// Zero or a float64 subnormal, far below the smallest 16-bit subnormal.
		return sign
	}

	m := man | 1<<52
	te := exp - 1023 + f.bias()
	if te >= f.maxExp() {
		return sign | f.expMask()
	}

	shift := 52 - f.manBits
	if te < 1 {
		shift += uint(1 - te)
		if shift > 60 {
			return sign
		}
	}
	q := m >> shift
	rem := m & (1<<shift - 1)
	half := uint64(1) << (shift - 1)
	if rem > half || (rem == half && q&1 == 1) {
		q++
	}

	if te < 1 {
		// Subnormal; a carry into bit manBits yields the smallest normal, which
		// encodes correctly as-is.
		return sign | uint16(q)
	}
	if q == 1<<(f.manBits+1) {
		q >>= 1
		te++
		if te >= f.maxExp() {
			return sign | f.expMask()
		}
	}
	return sign | uint16(te)<<f.manBits | uint16(q&f.manMask())
}

// decode widens raw bits to float64; every 16-bit value is exact in float64.
func (f minifloat) decode(h uint16) float64 {
	neg := h&float16SignMask != 0
	exp := int(h>>f.manBits) & f.maxExp()
	man := uint64(h) & f.manMask()

	var v float64
	switch {
	case exp == 0:
		v = math.Ldexp(float64(man), 1-f.bias()-int(f.manBits))
	case exp == f.maxExp():
		if man != 0 {
			return math.NaN()
		}
		v = math.Inf(1)
	default:
		v = math.Ldexp(float64(man|1<<f.manBits), exp-f.bias()-int(f.manBits))
	}
	if neg {
		return -v
	}
	return v
}

// F16FromFloat64 rounds v to the nearest half-precision value.
func F16FromFloat64(v float64) F16 { return F16(halfFormat.encode(v)) }

// F16FromFloat32 rounds v to the nearest half-precision value.
func F16FromFloat32(v float32) F16 { return F16(halfFormat.encode(float64(v))) }

// Float64 returns the exact float64 value of h.
func (h F16) Float64() float64 { return halfFormat.decode(uint16(h)) }

// Float32 returns the exact float32 value of h.
func (h F16) Float32() float32 { return float32(h.Float64()) }

// BF16FromFloat64 rounds v to the nearest bfloat16 value.
func BF16FromFloat64(v float64) BF16 { return BF16(bhalfFormat.encode(v)) }

// BF16FromFloat32 rounds v to the nearest bfloat16 value.
func BF16FromFloat32(v float32) BF16 { return BF16(bhalfFormat.encode(float64(v))) }

// Float64 returns the exact float64 value of b.
func (b BF16) Float64() float64 { return bhalfFormat.decode(uint16(b)) }

// Float32 returns the value of b; bfloat16 is the upper half of a float32.
func (b BF16) Float32() float32 { return math.Float32frombits(uint32(b) << 16) }
