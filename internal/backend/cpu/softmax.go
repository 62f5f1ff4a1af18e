package cpu

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// softmax computes a numerically stable softmax of input "x" along
// attrs "axis" (default last): exponentials are taken after
// subtracting the per-slice maximum.
func softmax(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Softmax"
	cb := self(b, name)
	x := input(inputs, "x", name)
	axis, outer, axisLen, inner := reduceAxis(x.Shape, attrInt(attrs, "axis", -1), name)
	if axisLen == 0 {
		exceptions.Panicf("%s: cannot normalize over empty axis %d of %s", name, axis, shapeString(x.Shape))
	}

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(x.Shape, x.DType, softmaxTyped(vals[float32](cb, x, name), outer, axisLen, inner))
	case tensor.Float64:
		out = cb.MakeTensorInfo(x.Shape, x.DType, softmaxTyped(vals[float64](cb, x, name), outer, axisLen, inner))
	default:
		exceptions.Panicf("%s: unsupported dtype %s (floating point required)", name, x.DType)
	}
	return []tensor.Info{out}
}

func softmaxTyped[T ~float32 | ~float64](x []T, outer, axisLen, inner int) []T {
	out := make([]T, len(x))
	for o := 0; o < outer; o++ {
		base := o * axisLen * inner
		for i := 0; i < inner; i++ {
			maxV := x[base+i]
			for a := 1; a < axisLen; a++ {
				if v := x[base+a*inner+i]; v > maxV {
					maxV = v
				}
			}
			var sum float64
			for a := 0; a < axisLen; a++ {
				e := math.Exp(float64(x[base+a*inner+i] - maxV))
				out[base+a*inner+i] = T(e)
				sum += e
			}
			for a := 0; a < axisLen; a++ {
				out[base+a*inner+i] = T(float64(out[base+a*inner+i]) / sum)
			}
		}
	}
	return out
}
