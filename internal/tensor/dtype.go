// Package tensor provides typed buffers and strided N-dimensional views for the ndbuf runtime.
package tensor

import (
	"fmt"
	"strings"
	"unsafe"
)

// DataType represents runtime type information for buffers and views.
type DataType int

// Supported data types.
const (
	Bool DataType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	BFloat16
	Float32
	Float64
	String
)

// stringHandleSize is the size of one Go string header.
const stringHandleSize = int(unsafe.Sizeof(""))

var dataTypeNames = [...]string{
	Bool:     "bool",
	Int8:     "int8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
	Uint8:    "uint8",
	Uint16:   "uint16",
	Uint32:   "uint32",
	Uint64:   "uint64",
	Float16:  "float16",
	BFloat16: "bfloat16",
	Float32:  "float32",
	Float64:  "float64",
	String:   "string",
}

// DataTypes lists every supported data type in declaration order.
func DataTypes() []DataType {
	out := make([]DataType, 0, len(dataTypeNames))
	for dt := range dataTypeNames {
		out = append(out, DataType(dt))
	}
	return out
}

// Valid reports whether dt is one of the declared data types.
func (dt DataType) Valid() bool {
	return dt >= Bool && dt <= String
}

// Size returns the byte size of one element of the data type.
// String elements are stored as Go string handles.
func (dt DataType) Size() int {
	switch dt {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16, BFloat16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case String:
		return stringHandleSize
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	if !dt.Valid() {
		return "unknown"
	}
	return dataTypeNames[dt]
}

// IsFloat reports whether dt is a floating point type (half precision included).
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float16, BFloat16, Float32, Float64:
		return true
	default:
		return false
	}
}

// IsInteger reports whether dt is a signed or unsigned integer type.
func (dt DataType) IsInteger() bool {
	return dt.IsSigned() || dt.IsUnsigned()
}

// IsSigned reports whether dt is a signed integer type.
func (dt DataType) IsSigned() bool {
	switch dt {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether dt is an unsigned integer type.
func (dt DataType) IsUnsigned() bool {
	switch dt {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	default:
		return false
	}
}

// ParseDataType resolves a data type from its name, case-insensitively.
func ParseDataType(name string) (DataType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for dt, s := range dataTypeNames {
		if s == n {
			return DataType(dt), nil
		}
	}
	switch n {
	case "half", "f16":
		return Float16, nil
	case "bf16":
		return BFloat16, nil
	case "float", "f32":
		return Float32, nil
	case "double", "f64":
		return Float64, nil
	case "utf8":
		return String, nil
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// HostType is the set of Go element types accepted at the host array boundary.
type HostType interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		F16 | BF16 | float32 | float64 | bool | string
}

// hostDataType maps a host element type to the data type that stores it natively.
func hostDataType[T HostType]() DataType {
	var zero T
	switch any(zero).(type) {
	case F16:
		return Float16
	case BF16:
		return BFloat16
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case string:
		return String
	default:
		panic(fmt.Sprintf("unsupported host type %T", zero))
	}
}
