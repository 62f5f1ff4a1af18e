package cpu

import (
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// cast converts input "x" to attrs "dtype". Float-involved
// conversions go through float64, integer and bool conversions through
// int64; bool maps to 0/1 and back via non-zero. Float16 values are
// stored as raw bits and converted with IEEE half-precision semantics.
// String tensors cannot be cast.
func cast(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Cast"
	cb := self(b, name)
	x := input(inputs, "x", name)
	target := attrDType(attrs, "dtype", name)

	if x.DType == tensor.String || target == tensor.String ||
		x.DType == tensor.Complex64 || target == tensor.Complex64 {
		exceptions.Panicf("%s: cannot cast %s to %s", name, x.DType, target)
	}

	// Integer and bool conversions stay in integer arithmetic: a
	// float64 detour would corrupt int64 values beyond 2^53 and break
	// modular truncation.
	if !x.DType.IsFloat() && !target.IsFloat() {
		return []tensor.Info{cb.MakeTensorInfo(x.Shape, target, castIntegral(cb, x, target, name))}
	}

	wide := toFloat64(cb, x, name)
	n := len(wide)

	var values any
	switch target {
	case tensor.Float32:
		out := make([]float32, n)
		for i, v := range wide {
			out[i] = float32(v)
		}
		values = out
	case tensor.Float64:
		out := make([]float64, n)
		copy(out, wide)
		values = out
	case tensor.Float16:
		out := make([]uint16, n)
		for i, v := range wide {
			out[i] = float16.Fromfloat32(float32(v)).Bits()
		}
		values = out
	case tensor.Int32:
		out := make([]int32, n)
		for i, v := range wide {
			out[i] = int32(v)
		}
		values = out
	case tensor.Int64:
		out := make([]int64, n)
		for i, v := range wide {
			out[i] = int64(v)
		}
		values = out
	case tensor.Uint8:
		out := make([]uint8, n)
		for i, v := range wide {
			out[i] = uint8(v)
		}
		values = out
	case tensor.Bool:
		out := make([]bool, n)
		for i, v := range wide {
			out[i] = v != 0
		}
		values = out
	default:
		exceptions.Panicf("%s: unsupported target dtype %s", name, target)
	}
	return []tensor.Info{cb.MakeTensorInfo(x.Shape, target, values)}
}

// castIntegral converts between the integer-valued dtypes (int32,
// int64, uint8, bool) with plain Go conversions, so narrowing
// truncates modularly and int64 keeps full precision.
func castIntegral(cb *Backend, x tensor.Info, target tensor.DataType, kernel string) any {
	wide := toInt64(cb, x, kernel)
	switch target {
	case tensor.Int32:
		out := make([]int32, len(wide))
		for i, v := range wide {
			out[i] = int32(v)
		}
		return out
	case tensor.Int64:
		out := make([]int64, len(wide))
		copy(out, wide)
		return out
	case tensor.Uint8:
		out := make([]uint8, len(wide))
		for i, v := range wide {
			out[i] = uint8(v)
		}
		return out
	case tensor.Bool:
		out := make([]bool, len(wide))
		for i, v := range wide {
			out[i] = v != 0
		}
		return out
	default:
		exceptions.Panicf("%s: unsupported target dtype %s", kernel, target)
		return nil
	}
}

// toInt64 widens an integer or bool buffer to int64 for conversion.
func toInt64(cb *Backend, x tensor.Info, kernel string) []int64 {
	switch x.DType {
	case tensor.Int32:
		src := vals[int32](cb, x, kernel)
		out := make([]int64, len(src))
		for i, v := range src {
			out[i] = int64(v)
		}
		return out
	case tensor.Int64:
		src := vals[int64](cb, x, kernel)
		out := make([]int64, len(src))
		copy(out, src)
		return out
	case tensor.Uint8:
		src := vals[uint8](cb, x, kernel)
		out := make([]int64, len(src))
		for i, v := range src {
			out[i] = int64(v)
		}
		return out
	case tensor.Bool:
		src := vals[bool](cb, x, kernel)
		out := make([]int64, len(src))
		for i, v := range src {
			if v {
				out[i] = 1
			}
		}
		return out
	default:
		exceptions.Panicf("%s: unsupported dtype %s", kernel, x.DType)
		return nil
	}
}

// toFloat64 widens any numeric or bool buffer to float64 for
// conversion.
func toFloat64(cb *Backend, x tensor.Info, kernel string) []float64 {
	switch x.DType {
	case tensor.Float32:
		src := vals[float32](cb, x, kernel)
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case tensor.Float64:
		src := vals[float64](cb, x, kernel)
		out := make([]float64, len(src))
		copy(out, src)
		return out
	case tensor.Float16:
		src := vals[uint16](cb, x, kernel)
		out := make([]float64, len(src))
		for i, bits := range src {
			out[i] = float64(float16.Frombits(bits).Float32())
		}
		return out
	case tensor.Int32:
		src := vals[int32](cb, x, kernel)
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case tensor.Int64:
		src := vals[int64](cb, x, kernel)
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case tensor.Uint8:
		src := vals[uint8](cb, x, kernel)
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case tensor.Bool:
		src := vals[bool](cb, x, kernel)
		out := make([]float64, len(src))
		for i, v := range src {
			if v {
				out[i] = 1
			}
		}
		return out
	default:
		exceptions.Panicf("%s: unsupported dtype %s", kernel, x.DType)
		return nil
	}
}
