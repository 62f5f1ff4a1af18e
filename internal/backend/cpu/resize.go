package cpu

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/parallel"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// resizeScale reproduces the TensorFlow resize coordinate mapping:
// with alignCorners the corner pixels of input and output coincide,
// otherwise the scale is the plain size ratio.
func resizeScale(in, out int, alignCorners bool) float64 {
	if alignCorners && out > 1 {
		return float64(in-1) / float64(out-1)
	}
	return float64(in) / float64(out)
}

// sourceCoord maps an output coordinate to input space, optionally
// treating pixel centers as lying at half-integer coordinates.
func sourceCoord(dst int, scale float64, halfPixelCenters bool) float64 {
	if halfPixelCenters {
		return (float64(dst)+0.5)*scale - 0.5
	}
	return float64(dst) * scale
}

// resizeBilinear resizes input "x" [N,C,H,W] to attrs "size"
// ([]int{newH,newW}) by bilinear interpolation. Attrs "alignCorners"
// and "halfPixelCenters" select the coordinate mapping; both default
// to false and are mutually exclusive, matching the reference
// semantics.
func resizeBilinear(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "ResizeBilinear"
	cb, x, newH, newW, alignCorners, halfPixelCenters := resizeArgs(b, inputs, attrs, name)

	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	hScale := resizeScale(h, newH, alignCorners)
	wScale := resizeScale(w, newW, alignCorners)
	outShape := tensor.Shape{n, c, newH, newW}

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType, resizeBilinearTyped(
			vals[float32](cb, x, name), n, c, h, w, newH, newW, hScale, wScale, halfPixelCenters, cb.par))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType, resizeBilinearTyped(
			vals[float64](cb, x, name), n, c, h, w, newH, newW, hScale, wScale, halfPixelCenters, cb.par))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func resizeBilinearTyped[T ~float32 | ~float64](x []T, n, c, h, w, newH, newW int, hScale, wScale float64, halfPixelCenters bool, cfg parallel.Config) []T {
	out := make([]T, n*c*newH*newW)
	parallel.ForGrid(n, c, func(b, ch int) {
		inBase := (b*c + ch) * h * w
		outBase := (b*c + ch) * newH * newW
		for oy := 0; oy < newH; oy++ {
			srcY := sourceCoord(oy, hScale, halfPixelCenters)
			srcY = math.Max(0, math.Min(srcY, float64(h-1)))
			y0 := int(math.Floor(srcY))
			y1 := min(y0+1, h-1)
			yFrac := T(srcY - float64(y0))
			for ox := 0; ox < newW; ox++ {
				srcX := sourceCoord(ox, wScale, halfPixelCenters)
				srcX = math.Max(0, math.Min(srcX, float64(w-1)))
				x0 := int(math.Floor(srcX))
				x1 := min(x0+1, w-1)
				xFrac := T(srcX - float64(x0))

				topLeft := x[inBase+y0*w+x0]
				topRight := x[inBase+y0*w+x1]
				bottomLeft := x[inBase+y1*w+x0]
				bottomRight := x[inBase+y1*w+x1]

				top := topLeft + (topRight-topLeft)*xFrac
				bottom := bottomLeft + (bottomRight-bottomLeft)*xFrac
				out[outBase+oy*newW+ox] = top + (bottom-top)*yFrac
			}
		}
	}, cfg)
	return out
}

// resizeNearestNeighbor resizes input "x" [N,C,H,W] to attrs "size" by
// nearest-neighbor sampling. Same attrs as ResizeBilinear.
func resizeNearestNeighbor(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "ResizeNearestNeighbor"
	cb, x, newH, newW, alignCorners, halfPixelCenters := resizeArgs(b, inputs, attrs, name)

	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	hScale := resizeScale(h, newH, alignCorners)
	wScale := resizeScale(w, newW, alignCorners)
	outShape := tensor.Shape{n, c, newH, newW}

	nearest := func(dst int, scale float64, limit int) int {
		src := sourceCoord(dst, scale, halfPixelCenters)
		var idx int
		if alignCorners {
			idx = int(math.Round(src))
		} else {
			idx = int(math.Floor(src))
		}
		return max(0, min(idx, limit-1))
	}

	var out tensor.Info
	switch x.DType {
	case tensor.Float32:
		out = cb.MakeTensorInfo(outShape, x.DType, resizeNearestTyped(
			vals[float32](cb, x, name), n, c, h, w, newH, newW, hScale, wScale, nearest, cb.par))
	case tensor.Float64:
		out = cb.MakeTensorInfo(outShape, x.DType, resizeNearestTyped(
			vals[float64](cb, x, name), n, c, h, w, newH, newW, hScale, wScale, nearest, cb.par))
	case tensor.Int32:
		out = cb.MakeTensorInfo(outShape, x.DType, resizeNearestTyped(
			vals[int32](cb, x, name), n, c, h, w, newH, newW, hScale, wScale, nearest, cb.par))
	default:
		exceptions.Panicf("%s: unsupported dtype %s", name, x.DType)
	}
	return []tensor.Info{out}
}

func resizeNearestTyped[T number](x []T, n, c, h, w, newH, newW int, hScale, wScale float64, nearest func(dst int, scale float64, limit int) int, cfg parallel.Config) []T {
	out := make([]T, n*c*newH*newW)
	parallel.ForGrid(n, c, func(b, ch int) {
		inBase := (b*c + ch) * h * w
		outBase := (b*c + ch) * newH * newW
		for oy := 0; oy < newH; oy++ {
			iy := nearest(oy, hScale, h)
			for ox := 0; ox < newW; ox++ {
				ix := nearest(ox, wScale, w)
				out[outBase+oy*newW+ox] = x[inBase+iy*w+ix]
			}
		}
	}, cfg)
	return out
}

func resizeArgs(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs, name string) (*Backend, tensor.Info, int, int, bool, bool) {
	cb := self(b, name)
	x := input(inputs, "x", name)
	if x.Shape.Rank() != 4 {
		exceptions.Panicf("%s: input must be 4D [N,C,H,W], got %s", name, shapeString(x.Shape))
	}
	size := attrInts(attrs, "size", name)
	if len(size) != 2 || size[0] < 1 || size[1] < 1 {
		exceptions.Panicf("%s: attribute 'size' must be two positive ints, got %v", name, size)
	}
	alignCorners := attrBool(attrs, "alignCorners", false)
	halfPixelCenters := attrBool(attrs, "halfPixelCenters", false)
	if alignCorners && halfPixelCenters {
		exceptions.Panicf("%s: alignCorners and halfPixelCenters are mutually exclusive", name)
	}
	return cb, x, size[0], size[1], alignCorners, halfPixelCenters
}
