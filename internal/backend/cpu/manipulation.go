package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// reshape reinterprets input "x" with attrs "shape" (one dimension may
// be -1 and is inferred). The output aliases the input buffer: no new
// data id is minted.
func reshape(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Reshape"
	self(b, name) // validates dispatch; no buffer access needed
	x := input(inputs, "x", name)
	target := attrInts(attrs, "shape", name)

	newShape := make(tensor.Shape, len(target))
	inferred := -1
	known := 1
	for d, dim := range target {
		switch {
		case dim == -1:
			if inferred >= 0 {
				exceptions.Panicf("%s: at most one dimension may be -1, got %v", name, target)
			}
			inferred = d
		case dim < 0:
			exceptions.Panicf("%s: invalid dimension %d in %v", name, dim, target)
		default:
			known *= dim
			newShape[d] = dim
		}
	}
	n := x.Shape.NumElements()
	if inferred >= 0 {
		if known == 0 || n%known != 0 {
			exceptions.Panicf("%s: cannot infer dimension: %d elements into %v", name, n, target)
		}
		newShape[inferred] = n / known
	} else if known != n {
		exceptions.Panicf("%s: cannot reshape %d elements into %v", name, n, target)
	}

	return []tensor.Info{{Data: x.Data, Shape: newShape, DType: x.DType}}
}

// transpose permutes the dimensions of input "x" by attrs "perm".
func transpose(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Transpose"
	cb := self(b, name)
	x := input(inputs, "x", name)
	perm := attrInts(attrs, "perm", name)

	rank := x.Shape.Rank()
	if len(perm) != rank {
		exceptions.Panicf("%s: perm %v does not match rank %d", name, perm, rank)
	}
	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for d, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			exceptions.Panicf("%s: perm %v is not a permutation of [0,%d)", name, perm, rank)
		}
		seen[p] = true
		outShape[d] = x.Shape[p]
	}

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType, transposeTyped(vals[float32](cb, x, name), x.Shape, outShape, perm))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType, transposeTyped(vals[float64](cb, x, name), x.Shape, outShape, perm))
	case tensor.Int32:
		out = cb.MakeTensorInfo(outShape, x.DType, transposeTyped(vals[int32](cb, x, name), x.Shape, outShape, perm))
	case tensor.Int64:
		out = cb.MakeTensorInfo(outShape, x.DType, transposeTyped(vals[int64](cb, x, name), x.Shape, outShape, perm))
	case tensor.Bool:
		out = cb.MakeTensorInfo(outShape, x.DType, transposeTyped(vals[bool](cb, x, name), x.Shape, outShape, perm))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func transposeTyped[T any](x []T, inShape, outShape tensor.Shape, perm []int) []T {
	inStrides := inShape.ComputeStrides()
	rank := len(outShape)
	// Stride to advance in the input when the d-th output coordinate
	// increments.
	permStrides := make([]int, rank)
	for d, p := range perm {
		permStrides[d] = inStrides[p]
	}

	out := make([]T, len(x))
	coords := make([]int, rank)
	src := 0
	for i := range out {
		out[i] = x[src]
		for d := rank - 1; d >= 0; d-- {
			coords[d]++
			src += permStrides[d]
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
			src -= outShape[d] * permStrides[d]
		}
	}
	return out
}

// sliceKernel extracts a contiguous region of input "x" given attrs
// "begin" and "size" (a size of -1 runs to the end of the dimension).
func sliceKernel(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Slice"
	cb := self(b, name)
	x := input(inputs, "x", name)
	begin := attrInts(attrs, "begin", name)
	size := attrInts(attrs, "size", name)

	rank := x.Shape.Rank()
	if len(begin) != rank || len(size) != rank {
		exceptions.Panicf("%s: begin %v and size %v must match rank %d", name, begin, size, rank)
	}
	outShape := make(tensor.Shape, rank)
	for d := 0; d < rank; d++ {
		s := size[d]
		if s == -1 {
			s = x.Shape[d] - begin[d]
		}
		if begin[d] < 0 || s < 0 || begin[d]+s > x.Shape[d] {
			exceptions.Panicf("%s: slice [%d:%d) out of bounds for dimension %d of extent %d",
				name, begin[d], begin[d]+s, d, x.Shape[d])
		}
		outShape[d] = s
	}

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType, sliceTyped(vals[float32](cb, x, name), x.Shape, outShape, begin))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType, sliceTyped(vals[float64](cb, x, name), x.Shape, outShape, begin))
	case tensor.Int32:
		out = cb.MakeTensorInfo(outShape, x.DType, sliceTyped(vals[int32](cb, x, name), x.Shape, outShape, begin))
	case tensor.Int64:
		out = cb.MakeTensorInfo(outShape, x.DType, sliceTyped(vals[int64](cb, x, name), x.Shape, outShape, begin))
	case tensor.Bool:
		out = cb.MakeTensorInfo(outShape, x.DType, sliceTyped(vals[bool](cb, x, name), x.Shape, outShape, begin))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func sliceTyped[T any](x []T, inShape, outShape tensor.Shape, begin []int) []T {
	inStrides := inShape.ComputeStrides()
	rank := len(outShape)

	start := 0
	for d := 0; d < rank; d++ {
		start += begin[d] * inStrides[d]
	}

	out := make([]T, outShape.NumElements())
	coords := make([]int, rank)
	src := start
	for i := range out {
		out[i] = x[src]
		for d := rank - 1; d >= 0; d-- {
			coords[d]++
			src += inStrides[d]
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
			src -= outShape[d] * inStrides[d]
		}
	}
	return out
}

// concat joins the numbered inputs "0".."n-1" along attrs "axis".
func concat(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Concat"
	cb := self(b, name)
	parts := numberedInputs(inputs, name)
	if len(parts) == 0 {
		exceptions.Panicf("%s: needs at least one input", name)
	}
	axis := attrInt(attrs, "axis", 0)
	first := parts[0]
	rank := first.Shape.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		exceptions.Panicf("%s: axis %d out of range for rank %d", name, axis, rank)
	}

	outShape := first.Shape.Clone()
	for _, p := range parts[1:] {
		if p.DType != first.DType {
			exceptions.Panicf("%s: dtype mismatch: %s vs %s", name, first.DType, p.DType)
		}
		if p.Shape.Rank() != rank {
			exceptions.Panicf("%s: rank mismatch: %s vs %s", name, shapeString(first.Shape), shapeString(p.Shape))
		}
		for d := 0; d < rank; d++ {
			if d != axis && p.Shape[d] != first.Shape[d] {
				exceptions.Panicf("%s: shapes %s and %s differ outside axis %d",
					name, shapeString(first.Shape), shapeString(p.Shape), axis)
			}
		}
		outShape[axis] += p.Shape[axis]
	}

	var out tensor.Info
	switch first.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, first.DType, concatTyped[float32](cb, name, parts, outShape, axis))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, first.DType, concatTyped[float64](cb, name, parts, outShape, axis))
	case tensor.Int32:
		out = cb.MakeTensorInfo(outShape, first.DType, concatTyped[int32](cb, name, parts, outShape, axis))
	case tensor.Int64:
		out = cb.MakeTensorInfo(outShape, first.DType, concatTyped[int64](cb, name, parts, outShape, axis))
	case tensor.Bool:
		out = cb.MakeTensorInfo(outShape, first.DType, concatTyped[bool](cb, name, parts, outShape, axis))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, first.DType)
	}
	return []tensor.Info{out}
}

func concatTyped[T any](cb *Backend, name string, parts []tensor.Info, outShape tensor.Shape, axis int) []T {
	outer := 1
	for d := 0; d < axis; d++ {
		outer *= outShape[d]
	}
	inner := 1
	for d := axis + 1; d < outShape.Rank(); d++ {
		inner *= outShape[d]
	}

	out := make([]T, outShape.NumElements())
	outRow := outShape[axis] * inner
	offset := 0
	for _, p := range parts {
		pv := vals[T](cb, p, name)
		block := p.Shape[axis] * inner
		for o := 0; o < outer; o++ {
			copy(out[o*outRow+offset:o*outRow+offset+block], pv[o*block:(o+1)*block])
		}
		offset += block
	}
	return out
}
