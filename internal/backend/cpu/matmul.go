package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/parallel"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// matMul multiplies "a" [M,K] by "b" [K,N], or their batched 3D forms
// [B,M,K] x [B,K,N]. Rows are processed in parallel.
func matMul(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "MatMul"
	cb := self(b, name)
	x := input(inputs, "a", name)
	y := input(inputs, "b", name)
	if x.DType != y.DType {
		exceptions.Panicf("%s: dtype mismatch: %s vs %s", name, x.DType, y.DType)
	}
	if x.Shape.Rank() != y.Shape.Rank() || (x.Shape.Rank() != 2 && x.Shape.Rank() != 3) {
		exceptions.Panicf("%s: expected two 2D or two 3D tensors, got %s and %s",
			name, shapeString(x.Shape), shapeString(y.Shape))
	}

	batch := 1
	off := 0
	if x.Shape.Rank() == 3 {
		if x.Shape[0] != y.Shape[0] {
			exceptions.Panicf("%s: batch dimensions differ: %d vs %d", name, x.Shape[0], y.Shape[0])
		}
		batch = x.Shape[0]
		off = 1
	}
	m, ka := x.Shape[off], x.Shape[off+1]
	kb, n := y.Shape[off], y.Shape[off+1]
	if ka != kb {
		exceptions.Panicf("%s: inner dimensions do not match: %s x %s", name, shapeString(x.Shape), shapeString(y.Shape))
	}

	outShape := tensor.Shape{m, n}
	if off == 1 {
		outShape = tensor.Shape{batch, m, n}
	}

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType,
			matMulTyped(vals[float32](cb, x, name), vals[float32](cb, y, name), batch, m, ka, n, cb.par))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType,
			matMulTyped(vals[float64](cb, x, name), vals[float64](cb, y, name), batch, m, ka, n, cb.par))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func matMulTyped[T number](a, b []T, batch, m, k, n int, cfg parallel.Config) []T {
	out := make([]T, batch*m*n)
	parallel.ForGrid(batch, m, func(bi, i int) {
		aRow := a[bi*m*k+i*k : bi*m*k+(i+1)*k]
		outRow := out[bi*m*n+i*n : bi*m*n+(i+1)*n]
		bBase := bi * k * n
		for kk := 0; kk < k; kk++ {
			av := aRow[kk]
			if av == 0 {
				continue
			}
			bRow := b[bBase+kk*n : bBase+(kk+1)*n]
			for j := range outRow {
				outRow[j] += av * bRow[j]
			}
		}
	}, cfg)
	return out
}
