package cpu

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/x448/float16"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// fill creates a tensor of attrs "shape" and "dtype" with every
// element set to attrs "value". It takes no inputs.
func fill(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Fill"
	cb := self(b, name)
	shape := tensor.Shape(attrInts(attrs, "shape", name))
	dtype := attrDType(attrs, "dtype", name)
	value := attrFloat(attrs, "value", 0)
	n := shape.NumElements()

	var values any
	switch dtype {
	case tensor.Float32:
		values = filled(make([]float32, n), float32(value))
	case tensor.Float64:
		values = filled(make([]float64, n), value)
	case tensor.Float16:
		values = filled(make([]uint16, n), float16.Fromfloat32(float32(value)).Bits())
	case tensor.Int32:
		values = filled(make([]int32, n), int32(value))
	case tensor.Int64:
		values = filled(make([]int64, n), int64(value))
	case tensor.Uint8:
		values = filled(make([]uint8, n), uint8(value))
	case tensor.Bool:
		values = filled(make([]bool, n), value != 0)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, dtype)
	}
	return []tensor.Info{cb.MakeTensorInfo(shape, dtype, values)}
}

func filled[T any](s []T, v T) []T {
	for i := range s {
		s[i] = v
	}
	return s
}

// rangeKernel creates a 1D tensor of attrs "dtype" spanning
// [start, stop) in increments of "step", matching the half-open
// semantics of the reference range op.
func rangeKernel(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Range"
	cb := self(b, name)
	start := attrFloat(attrs, "start", 0)
	stop := attrFloat(attrs, "stop", 0)
	step := attrFloat(attrs, "step", 1)
	dtype := attrDType(attrs, "dtype", name)

	if step == 0 {
		exceptions.Panicf("%s: step must not be zero", name)
	}
	if (stop > start && step < 0) || (stop < start && step > 0) {
		exceptions.Panicf("%s: step %v never reaches %v from %v", name, step, stop, start)
	}
	n := int(math.Ceil((stop - start) / step))
	if n < 0 {
		n = 0
	}

	var values any
	switch dtype {
	case tensor.Float32:
		out := make([]float32, n)
		for i := range out {
			out[i] = float32(start + float64(i)*step)
		}
		values = out
	case tensor.Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = start + float64(i)*step
		}
		values = out
	case tensor.Int32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(start + float64(i)*step)
		}
		values = out
	case tensor.Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(start + float64(i)*step)
		}
		values = out
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, dtype)
	}
	return []tensor.Info{cb.MakeTensorInfo(tensor.Shape{n}, dtype, values)}
}
