package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

type reduceMode int

const (
	reduceSum reduceMode = iota
	reduceMean
	reduceMax
)

// reduceAxis normalizes a possibly-negative axis and splits the shape
// into (outer, axisLen, inner) extents around it.
func reduceAxis(shape tensor.Shape, axis int, kernel string) (normAxis, outer, axisLen, inner int) {
	rank := shape.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		exceptions.Panicf("%s: axis %d out of range for rank %d", kernel, axis, rank)
	}
	outer, inner = 1, 1
	for d := 0; d < axis; d++ {
		outer *= shape[d]
	}
	for d := axis + 1; d < rank; d++ {
		inner *= shape[d]
	}
	return axis, outer, shape[axis], inner
}

func reducedShape(shape tensor.Shape, axis int, keepDims bool) tensor.Shape {
	out := make(tensor.Shape, 0, shape.Rank())
	for d, dim := range shape {
		if d == axis {
			if keepDims {
				out = append(out, 1)
			}
			continue
		}
		out = append(out, dim)
	}
	return out
}

// reduceKernel builds a reduction over attrs "axis" (negative counts
// from the end) with optional "keepDims". Mean is restricted to
// floating-point inputs.
func reduceKernel(name string, mode reduceMode) engine.KernelFunc {
	return func(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
		cb := self(b, name)
		x := input(inputs, "x", name)
		axis, outer, axisLen, inner := reduceAxis(x.Shape, attrInt(attrs, "axis", -1), name)
		keepDims := attrBool(attrs, "keepDims", false)
		outShape := reducedShape(x.Shape, axis, keepDims)

		if mode == reduceMean && !x.DType.IsFloat() {
			exceptions.Panicf("%s: requires a floating-point input, got %s", name, x.DType)
		}
		// Max has no identity element; Sum and Mean reduce an empty
		// axis to 0 and NaN respectively.
		if mode == reduceMax && axisLen == 0 {
			exceptions.Panicf("%s: cannot reduce over empty axis %d of %s", name, axis, shapeString(x.Shape))
		}

		var out tensor.Info
		switch x.DType {
		case tensor.Float32:
			out = cb.MakeTensorInfo(outShape, x.DType, reduceTyped(vals[float32](cb, x, name), outer, axisLen, inner, mode))
		case tensor.Float64:
			out = cb.MakeTensorInfo(outShape, x.DType, reduceTyped(vals[float64](cb, x, name), outer, axisLen, inner, mode))
		case tensor.Int32:
			out = cb.MakeTensorInfo(outShape, x.DType, reduceTyped(vals[int32](cb, x, name), outer, axisLen, inner, mode))
		case tensor.Int64:
			out = cb.MakeTensorInfo(outShape, x.DType, reduceTyped(vals[int64](cb, x, name), outer, axisLen, inner, mode))
		default:
			exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
		}
		return []tensor.Info{out}
	}
}

func reduceTyped[T number](x []T, outer, axisLen, inner int, mode reduceMode) []T {
	out := make([]T, outer*inner)
	for o := 0; o < outer; o++ {
		base := o * axisLen * inner
		for i := 0; i < inner; i++ {
			var acc T
			if mode == reduceSum || mode == reduceMean {
				for a := 0; a < axisLen; a++ {
					acc += x[base+a*inner+i]
				}
				if mode == reduceMean {
					acc /= T(axisLen)
				}
			} else {
				acc = x[base+i]
				for a := 1; a < axisLen; a++ {
					if v := x[base+a*inner+i]; v > acc {
						acc = v
					}
				}
			}
			out[o*inner+i] = acc
		}
	}
	return out
}

// argMax returns the index of the maximum value along attrs "axis" as
// an int32 tensor. Ties resolve to the lowest index.
func argMax(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "ArgMax"
	cb := self(b, name)
	x := input(inputs, "x", name)
	axis, outer, axisLen, inner := reduceAxis(x.Shape, attrInt(attrs, "axis", -1), name)
	if axisLen == 0 {
		exceptions.Panicf("%s: cannot reduce over empty axis %d of %s", name, axis, shapeString(x.Shape))
	}
	outShape := reducedShape(x.Shape, axis, false)

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, tensor.Int32, argMaxTyped(vals[float32](cb, x, name), outer, axisLen, inner))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, tensor.Int32, argMaxTyped(vals[float64](cb, x, name), outer, axisLen, inner))
	case tensor.Int32:
		out = cb.MakeTensorInfo(outShape, tensor.Int32, argMaxTyped(vals[int32](cb, x, name), outer, axisLen, inner))
	case tensor.Int64:
		out = cb.MakeTensorInfo(outShape, tensor.Int32, argMaxTyped(vals[int64](cb, x, name), outer, axisLen, inner))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func argMaxTyped[T number](x []T, outer, axisLen, inner int) []int32 {
	out := make([]int32, outer*inner)
	for o := 0; o < outer; o++ {
		base := o * axisLen * inner
		for i := 0; i < inner; i++ {
			best := x[base+i]
			bestIdx := int32(0)
			for a := 1; a < axisLen; a++ {
				if v := x[base+a*inner+i]; v > best {
					best = v
					bestIdx = int32(a)
				}
			}
			out[o*inner+i] = bestIdx
		}
	}
	return out
}
