package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/parallel"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// conv2D performs 2D convolution.
//
// Input "x": [N, C_in, H, W]. Filter "filter": [C_out, C_in, K_h, K_w].
// Attrs: "stride" (default 1), "padding" (default 0, zero padding on
// both sides). Output: [N, C_out, H_out, W_out] with
// H_out = (H + 2*padding - K_h)/stride + 1.
func conv2D(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Conv2D"
	cb := self(b, name)
	x := input(inputs, "x", name)
	filter := input(inputs, "filter", name)
	stride := attrInt(attrs, "stride", 1)
	padding := attrInt(attrs, "padding", 0)

	if x.Shape.Rank() != 4 {
		exceptions.Panicf("%s: input must be 4D [N,C,H,W], got %s", name, shapeString(x.Shape))
	}
	if filter.Shape.Rank() != 4 {
		exceptions.Panicf("%s: filter must be 4D [C_out,C_in,K_h,K_w], got %s", name, shapeString(filter.Shape))
	}
	if x.DType != filter.DType {
		exceptions.Panicf("%s: dtype mismatch: %s vs %s", name, x.DType, filter.DType)
	}
	if stride < 1 {
		exceptions.Panicf("%s: stride must be >= 1, got %d", name, stride)
	}

	n, cIn, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	cOut, cInK, kh, kw := filter.Shape[0], filter.Shape[1], filter.Shape[2], filter.Shape[3]
	if cIn != cInK {
		exceptions.Panicf("%s: input channels %d != filter channels %d", name, cIn, cInK)
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		exceptions.Panicf("%s: invalid output dimensions %dx%d (check stride/padding)", name, hOut, wOut)
	}

	outShape := tensor.Shape{n, cOut, hOut, wOut}
	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType, conv2DTyped(
			vals[float32](cb, x, name), vals[float32](cb, filter, name),
			n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padding, cb.par))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType, conv2DTyped(
			vals[float64](cb, x, name), vals[float64](cb, filter, name),
			n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padding, cb.par))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func conv2DTyped[T number](x, filter []T, n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padding int, cfg parallel.Config) []T {
	out := make([]T, n*cOut*hOut*wOut)
	parallel.ForGrid(n, cOut, func(b, oc int) {
		outBase := (b*cOut + oc) * hOut * wOut
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				var acc T
				hStart := oh*stride - padding
				wStart := ow*stride - padding
				for ic := 0; ic < cIn; ic++ {
					inBase := (b*cIn + ic) * h * w
					fBase := ((oc*cIn + ic) * kh) * kw
					for fh := 0; fh < kh; fh++ {
						ih := hStart + fh
						if ih < 0 || ih >= h {
							continue
						}
						for fw := 0; fw < kw; fw++ {
							iw := wStart + fw
							if iw < 0 || iw >= w {
								continue
							}
							acc += x[inBase+ih*w+iw] * filter[fBase+fh*kw+fw]
						}
					}
				}
				out[outBase+oh*wOut+ow] = acc
			}
		}
	}, cfg)
	return out
}
