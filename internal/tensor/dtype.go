// Package tensor provides the core value types of the Fornax runtime:
// data types, shapes with row-major strides, and the Info descriptor
// that ties a shape and dtype to a backend-owned data buffer.
package tensor

// DType is a constraint for element types that have direct Go
// representations. Float16, Complex64 and String buffers are handled
// through their storage types instead.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16
	Int32
	Int64
	Uint8
	Bool
	Complex64
	String
)

// Size returns the byte size of one element of the data type.
// String elements have no fixed size; Size returns 0 for them and
// byte accounting treats string tensors as approximate.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64, Complex64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool:
		return 1
	case String:
		return 0
	default:
		panic("unknown data type")
	}
}

// IsFloat reports whether the data type is a floating-point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64 || dt == Float16
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Complex64:
		return "complex64"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// InferDataType infers DataType from a generic element type T.
func InferDataType[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
