package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// binaryOps carries one arithmetic operation specialized per supported
// element type.
type binaryOps struct {
	f32 func(a, b float32) float32
	f64 func(a, b float64) float64
	i32 func(a, b int32) int32
	i64 func(a, b int64) int64
}

var (
	add = binaryKernel("Add", binaryOps{
		f32: func(a, b float32) float32 { return a + b },
		f64: func(a, b float64) float64 { return a + b },
		i32: func(a, b int32) int32 { return a + b },
		i64: func(a, b int64) int64 { return a + b },
	})
	sub = binaryKernel("Sub", binaryOps{
		f32: func(a, b float32) float32 { return a - b },
		f64: func(a, b float64) float64 { return a - b },
		i32: func(a, b int32) int32 { return a - b },
		i64: func(a, b int64) int64 { return a - b },
	})
	mul = binaryKernel("Mul", binaryOps{
		f32: func(a, b float32) float32 { return a * b },
		f64: func(a, b float64) float64 { return a * b },
		i32: func(a, b int32) int32 { return a * b },
		i64: func(a, b int64) int64 { return a * b },
	})
	div = binaryKernel("Div", binaryOps{
		f32: func(a, b float32) float32 { return a / b },
		f64: func(a, b float64) float64 { return a / b },
		i32: func(a, b int32) int32 {
			if b == 0 {
				exceptions.Panicf("Div: integer division by zero")
			}
			return a / b
		},
		i64: func(a, b int64) int64 {
			if b == 0 {
				exceptions.Panicf("Div: integer division by zero")
			}
			return a / b
		},
	})
)

// binaryKernel builds an element-wise binary kernel with NumPy-style
// broadcasting over the two inputs "a" and "b".
func binaryKernel(name string, ops binaryOps) engine.KernelFunc {
	return func(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
		cb := self(b, name)
		x := input(inputs, "a", name)
		y := input(inputs, "b", name)
		if x.DType != y.DType {
			exceptions.Panicf("%s: dtype mismatch: %s vs %s", name, x.DType, y.DType)
		}
		outShape, needsBroadcast, err := tensor.BroadcastShapes(x.Shape, y.Shape)
		if err != nil {
			exceptions.Panicf("%s: %v", name, err)
		}

		var out tensor.Info
		switch x.DType {
		case tensor.Float32:
			out = applyBinary(cb, name, x, y, outShape, needsBroadcast, ops.f32)
		case tensor.Float64:
			out = applyBinary(cb, name, x, y, outShape, needsBroadcast, ops.f64)
		case tensor.Int32:
			out = applyBinary(cb, name, x, y, outShape, needsBroadcast, ops.i32)
		case tensor.Int64:
			out = applyBinary(cb, name, x, y, outShape, needsBroadcast, ops.i64)
		default:
			exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
		}
		return []tensor.Info{out}
	}
}

func applyBinary[T number](cb *Backend, name string, x, y tensor.Info, outShape tensor.Shape, needsBroadcast bool, op func(a, b T) T) tensor.Info {
	xv := vals[T](cb, x, name)
	yv := vals[T](cb, y, name)
	out := make([]T, outShape.NumElements())

	if !needsBroadcast && x.Shape.Equal(y.Shape) {
		for i := range out {
			out[i] = op(xv[i], yv[i])
		}
	} else {
		broadcastLoop(out, xv, yv, outShape,
			effectiveStrides(x.Shape, outShape),
			effectiveStrides(y.Shape, outShape), op)
	}
	return cb.MakeTensorInfo(outShape, x.DType, out)
}
