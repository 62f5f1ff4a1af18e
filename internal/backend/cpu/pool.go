package cpu

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/parallel"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// maxPool2D applies 2D max pooling over input "x" [N,C,H,W].
// Attrs: "kernelSize", "stride" (default kernelSize). No padding:
// windows falling off the edge are not generated.
func maxPool2D(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	return pool2D(b, inputs, attrs, "MaxPool2D", true)
}

// avgPool2D applies 2D average pooling; see maxPool2D for layout.
func avgPool2D(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	return pool2D(b, inputs, attrs, "AvgPool2D", false)
}

func pool2D(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs, name string, isMax bool) []tensor.Info {
	cb := self(b, name)
	x := input(inputs, "x", name)
	kernelSize := attrInt(attrs, "kernelSize", 2)
	stride := attrInt(attrs, "stride", kernelSize)

	if x.Shape.Rank() != 4 {
		exceptions.Panicf("%s: input must be 4D [N,C,H,W], got %s", name, shapeString(x.Shape))
	}
	if kernelSize < 1 || stride < 1 {
		exceptions.Panicf("%s: kernelSize and stride must be >= 1, got %d and %d", name, kernelSize, stride)
	}

	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		exceptions.Panicf("%s: window %d exceeds input %dx%d", name, kernelSize, h, w)
	}

	outShape := tensor.Shape{n, c, hOut, wOut}
	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType, pool2DTyped(
			vals[float32](cb, x, name), n, c, h, w, hOut, wOut, kernelSize, stride, isMax, cb.par))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType, pool2DTyped(
			vals[float64](cb, x, name), n, c, h, w, hOut, wOut, kernelSize, stride, isMax, cb.par))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func pool2DTyped[T ~float32 | ~float64](x []T, n, c, h, w, hOut, wOut, kernelSize, stride int, isMax bool, cfg parallel.Config) []T {
	out := make([]T, n*c*hOut*wOut)
	windowArea := T(kernelSize * kernelSize)
	parallel.ForGrid(n, c, func(b, ch int) {
		inBase := (b*c + ch) * h * w
		outBase := (b*c + ch) * hOut * wOut
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				hStart := oh * stride
				wStart := ow * stride
				if isMax {
					best := T(math.Inf(-1))
					for kh := 0; kh < kernelSize; kh++ {
						row := inBase + (hStart+kh)*w + wStart
						for kw := 0; kw < kernelSize; kw++ {
							if v := x[row+kw]; v > best {
								best = v
							}
						}
					}
					out[outBase+oh*wOut+ow] = best
				} else {
					var sum T
					for kh := 0; kh < kernelSize; kh++ {
						row := inBase + (hStart+kh)*w + wStart
						for kw := 0; kw < kernelSize; kw++ {
							sum += x[row+kw]
						}
					}
					out[outBase+oh*wOut+ow] = sum / windowArea
				}
			}
		}
	}, cfg)
	return out
}
