package cpu

import (
	"testing"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

func TestResizeBilinear(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{1, 1, 2, 2}, []float32{0, 1, 2, 3})

	t.Run("AlignCorners", func(t *testing.T) {
		out := resizeBilinear(b, map[string]tensor.Info{"x": x},
			engine.Attrs{"size": []int{3, 3}, "alignCorners": true})
		wantShape(t, out[0], tensor.Shape{1, 1, 3, 3})
		closeF32(t, readF32(t, b, out[0]), []float32{
			0, 0.5, 1,
			1, 1.5, 2,
			2, 2.5, 3,
		}, 1e-6)
	})

	t.Run("Identity", func(t *testing.T) {
		out := resizeBilinear(b, map[string]tensor.Info{"x": x},
			engine.Attrs{"size": []int{2, 2}})
		equalF32(t, readF32(t, b, out[0]), []float32{0, 1, 2, 3})
	})

	t.Run("Downscale", func(t *testing.T) {
		big := f32Tensor(b, tensor.Shape{1, 1, 4, 4}, []float32{
			0, 1, 2, 3,
			4, 5, 6, 7,
			8, 9, 10, 11,
			12, 13, 14, 15,
		})
		out := resizeBilinear(b, map[string]tensor.Info{"x": big},
			engine.Attrs{"size": []int{2, 2}, "halfPixelCenters": true})
		// Sample points fall at input coordinates 0.5 and 2.5.
		closeF32(t, readF32(t, b, out[0]), []float32{2.5, 4.5, 10.5, 12.5}, 1e-6)
	})

	t.Run("ExclusiveAttrs", func(t *testing.T) {
		wantPanic(t, func() {
			resizeBilinear(b, map[string]tensor.Info{"x": x},
				engine.Attrs{"size": []int{3, 3}, "alignCorners": true, "halfPixelCenters": true})
		})
	})
}

func TestResizeNearestNeighbor(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{1, 1, 2, 2}, []float32{0, 1, 2, 3})

	t.Run("UpscaleDefault", func(t *testing.T) {
		out := resizeNearestNeighbor(b, map[string]tensor.Info{"x": x},
			engine.Attrs{"size": []int{3, 3}})
		// floor(dst * 2/3) maps rows and columns to [0, 0, 1].
		equalF32(t, readF32(t, b, out[0]), []float32{
			0, 0, 1,
			0, 0, 1,
			2, 2, 3,
		})
	})

	t.Run("AlignCornersRounds", func(t *testing.T) {
		out := resizeNearestNeighbor(b, map[string]tensor.Info{"x": x},
			engine.Attrs{"size": []int{3, 3}, "alignCorners": true})
		// Scale 0.5, round(dst * 0.5) maps to [0, 1, 1].
		equalF32(t, readF32(t, b, out[0]), []float32{
			0, 1, 1,
			2, 3, 3,
			2, 3, 3,
		})
	})

	t.Run("Int32", func(t *testing.T) {
		xi := b.MakeTensorInfo(tensor.Shape{1, 1, 1, 2}, tensor.Int32, []int32{7, 9})
		out := resizeNearestNeighbor(b, map[string]tensor.Info{"x": xi},
			engine.Attrs{"size": []int{1, 4}})
		got := b.ReadSync(out[0].Data).([]int32)
		want := []int32{7, 7, 9, 9}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Element %d: got %d, want %d", i, got[i], want[i])
			}
		}
	})
}

func TestResizeArgValidation(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{2, 2}, make([]float32, 4))
	wantPanic(t, func() {
		resizeBilinear(b, map[string]tensor.Info{"x": x}, engine.Attrs{"size": []int{3, 3}})
	})

	x4 := f32Tensor(b, tensor.Shape{1, 1, 2, 2}, make([]float32, 4))
	wantPanic(t, func() {
		resizeBilinear(b, map[string]tensor.Info{"x": x4}, engine.Attrs{"size": []int{3}})
	})
	wantPanic(t, func() {
		resizeBilinear(b, map[string]tensor.Info{"x": x4}, engine.Attrs{"size": []int{0, 3}})
	})
}
