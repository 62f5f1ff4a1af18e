package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// sparseToDense scatters "values" at "indices" into a dense tensor of
// attrs "outputShape", with every other element set to attrs
// "defaultValue". Indices are an int32 tensor of shape [N, rank] (or
// [N] for 1D output); values are a tensor of shape [N] or a scalar
// broadcast across all indices. Duplicate indices are rejected.
func sparseToDense(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "SparseToDense"
	cb := self(b, name)
	indices := input(inputs, "indices", name)
	values := input(inputs, "values", name)
	outShape := tensor.Shape(attrInts(attrs, "outputShape", name))
	defaultValue := attrFloat(attrs, "defaultValue", 0)

	if indices.DType != tensor.Int32 {
		exceptions.Panicf("%s: indices must be int32, got %s", name, indices.DType)
	}

	rank := outShape.Rank()
	var numIndices int
	switch indices.Shape.Rank() {
	case 1:
		if rank != 1 {
			exceptions.Panicf("%s: 1D indices require a 1D output, got %s", name, shapeString(outShape))
		}
		numIndices = indices.Shape[0]
	case 2:
		if indices.Shape[1] != rank {
			exceptions.Panicf("%s: indices are %d-dimensional but output rank is %d", name, indices.Shape[1], rank)
		}
		numIndices = indices.Shape[0]
	default:
		exceptions.Panicf("%s: indices must be 1D or 2D, got %s", name, shapeString(indices.Shape))
	}

	scalarValue := values.Shape.NumElements() == 1
	if !scalarValue && values.Shape.NumElements() != numIndices {
		exceptions.Panicf("%s: %d values for %d indices", name, values.Shape.NumElements(), numIndices)
	}

	idx := vals[int32](cb, indices, name)
	strides := outShape.ComputeStrides()
	flat := make([]int, numIndices)
	for i := 0; i < numIndices; i++ {
		offset := 0
		for d := 0; d < rank; d++ {
			var coord int
			if indices.Shape.Rank() == 1 {
				coord = int(idx[i])
			} else {
				coord = int(idx[i*rank+d])
			}
			if coord < 0 || coord >= outShape[d] {
				exceptions.Panicf("%s: index %d out of bounds for dimension %d of extent %d", name, coord, d, outShape[d])
			}
			offset += coord * strides[d]
		}
		flat[i] = offset
	}
	seen := make(map[int]bool, numIndices)
	for _, f := range flat {
		if seen[f] {
			exceptions.Panicf("%s: duplicate index at flat offset %d", name, f)
		}
		seen[f] = true
	}

	var out tensor.Info
	switch values.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, values.DType,
			scatterTyped(vals[float32](cb, values, name), flat, outShape.NumElements(), float32(defaultValue), scalarValue))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, values.DType,
			scatterTyped(vals[float64](cb, values, name), flat, outShape.NumElements(), defaultValue, scalarValue))
	case tensor.Int32:
		out = cb.MakeTensorInfo(outShape, values.DType,
			scatterTyped(vals[int32](cb, values, name), flat, outShape.NumElements(), int32(defaultValue), scalarValue))
	case tensor.Int64:
		out = cb.MakeTensorInfo(outShape, values.DType,
			scatterTyped(vals[int64](cb, values, name), flat, outShape.NumElements(), int64(defaultValue), scalarValue))
	default:
		exceptions.Panicf("%s: unsupported values dtype %s", name, values.DType)
	}
	return []tensor.Info{out}
}

func scatterTyped[T number](values []T, flat []int, n int, defaultValue T, scalarValue bool) []T {
	out := make([]T, n)
	if defaultValue != 0 {
		for i := range out {
			out[i] = defaultValue
		}
	}
	for i, f := range flat {
		if scalarValue {
			out[f] = values[0]
		} else {
			out[f] = values[i]
		}
	}
	return out
}
