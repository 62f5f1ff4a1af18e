package cpu

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

func mathExp(x float64) float64   { return math.Exp(x) }
func mathLog(x float64) float64   { return math.Log(x) }
func mathSqrt(x float64) float64  { return math.Sqrt(x) }
func mathRsqrt(x float64) float64 { return 1 / math.Sqrt(x) }
func mathSin(x float64) float64   { return math.Sin(x) }
func mathCos(x float64) float64   { return math.Cos(x) }
func mathAbs(x float64) float64   { return math.Abs(x) }

func mathRelu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func mathSigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// unaryKernel builds an element-wise kernel for floating-point input
// "x" from a float64 scalar function. Computation runs in float64 and
// narrows back to the input dtype.
func unaryKernel(name string, op func(x float64) float64) engine.KernelFunc {
	return func(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
		cb := self(b, name)
		x := input(inputs, "x", name)

		var out tensor.Info
		switch x.DType {
		case tensor.Float32:
			xv := vals[float32](cb, x, name)
			res := make([]float32, len(xv))
			for i, v := range xv {
				res[i] = float32(op(float64(v)))
			}
			out = cb.MakeTensorInfo(x.Shape, x.DType, res)
		case tensor.Float64:
			xv := vals[float64](cb, x, name)
			res := make([]float64, len(xv))
			for i, v := range xv {
				res[i] = op(v)
			}
			out = cb.MakeTensorInfo(x.Shape, x.DType, res)
		default:
			exceptions.Panicf("%s: unsupported dtype %s (floating point required)", name, x.DType)
		}
		return []tensor.Info{out}
	}
}
