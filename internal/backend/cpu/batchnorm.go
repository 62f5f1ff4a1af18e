package cpu

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// batchNorm normalizes input "x" [N,C,...] per channel with the given
// "mean" and "variance" vectors of length C, then applies the
// optional "scale" and "offset" vectors:
//
//	out = (x - mean) / sqrt(variance + epsilon) * scale + offset
//
// Attrs: "epsilon" (default 1e-3). This is the inference form; batch
// statistics are computed by the caller.
func batchNorm(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "BatchNorm"
	cb := self(b, name)
	x := input(inputs, "x", name)
	mean := input(inputs, "mean", name)
	variance := input(inputs, "variance", name)
	epsilon := attrFloat(attrs, "epsilon", 1e-3)

	if x.Shape.Rank() < 2 {
		exceptions.Panicf("%s: input must have at least rank 2 [N,C,...], got %s", name, shapeString(x.Shape))
	}
	c := x.Shape[1]
	checkChannelVector := func(v tensor.Info, what string) {
		if v.Shape.Rank() != 1 || v.Shape[0] != c {
			exceptions.Panicf("%s: %s must be a vector of length %d, got %s", name, what, c, shapeString(v.Shape))
		}
		if v.DType != x.DType {
			exceptions.Panicf("%s: %s dtype %s does not match input %s", name, what, v.DType, x.DType)
		}
	}
	checkChannelVector(mean, "mean")
	checkChannelVector(variance, "variance")

	scale, hasScale := inputs["scale"]
	if hasScale {
		checkChannelVector(scale, "scale")
	}
	offset, hasOffset := inputs["offset"]
	if hasOffset {
		checkChannelVector(offset, "offset")
	}

	inner := 1
	for d := 2; d < x.Shape.Rank(); d++ {
		inner *= x.Shape[d]
	}
	n := x.Shape[0]

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(x.Shape, x.DType, batchNormTyped(
			vals[float32](cb, x, name), vals[float32](cb, mean, name), vals[float32](cb, variance, name),
			optVals[float32](cb, scale, hasScale, name), optVals[float32](cb, offset, hasOffset, name),
			n, c, inner, epsilon))
	case tensor.Float64:
		out = cb.MakeTensorInfo(x.Shape, x.DType, batchNormTyped(
			vals[float64](cb, x, name), vals[float64](cb, mean, name), vals[float64](cb, variance, name),
			optVals[float64](cb, scale, hasScale, name), optVals[float64](cb, offset, hasOffset, name),
			n, c, inner, epsilon))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func optVals[T any](cb *Backend, info tensor.Info, present bool, kernel string) []T {
	if !present {
		return nil
	}
	return vals[T](cb, info, kernel)
}

func batchNormTyped[T ~float32 | ~float64](x, mean, variance, scale, offset []T, n, c, inner int, epsilon float64) []T {
	out := make([]T, len(x))
	for ch := 0; ch < c; ch++ {
		invStd := T(1 / math.Sqrt(float64(variance[ch])+epsilon))
		gain := invStd
		if scale != nil {
			gain *= scale[ch]
		}
		var shift T
		if offset != nil {
			shift = offset[ch]
		}
		m := mean[ch]
		for b := 0; b < n; b++ {
			base := (b*c + ch) * inner
			for i := 0; i < inner; i++ {
				out[base+i] = (x[base+i]-m)*gain + shift
			}
		}
	}
	return out
}
