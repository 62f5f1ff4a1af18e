package cpu

import (
	"testing"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

func TestConv2D(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{1, 1, 3, 3}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	filter := f32Tensor(b, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})

	t.Run("Basic", func(t *testing.T) {
		out := conv2D(b, map[string]tensor.Info{"x": x, "filter": filter}, nil)
		wantShape(t, out[0], tensor.Shape{1, 1, 2, 2})
		equalF32(t, readF32(t, b, out[0]), []float32{12, 16, 24, 28})
	})

	t.Run("StrideAndPadding", func(t *testing.T) {
		out := conv2D(b, map[string]tensor.Info{"x": x, "filter": filter},
			engine.Attrs{"stride": 2, "padding": 1})
		wantShape(t, out[0], tensor.Shape{1, 1, 2, 2})
		equalF32(t, readF32(t, b, out[0]), []float32{1, 5, 11, 28})
	})
}

func TestConv2DMultiChannel(t *testing.T) {
	b := seqBackend()
	// Two input channels, identical 2x2 planes; filter sums both.
	x := f32Tensor(b, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		1, 2, 3, 4, // channel 1
	})
	filter := f32Tensor(b, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 1, 1, 1,
		1, 1, 1, 1,
	})

	out := conv2D(b, map[string]tensor.Info{"x": x, "filter": filter}, nil)
	wantShape(t, out[0], tensor.Shape{1, 1, 1, 1})
	equalF32(t, readF32(t, b, out[0]), []float32{20})
}

func TestConv2DShapeErrors(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{1, 1, 3, 3}, make([]float32, 9))

	t.Run("ChannelMismatch", func(t *testing.T) {
		filter := f32Tensor(b, tensor.Shape{1, 2, 2, 2}, make([]float32, 8))
		wantPanic(t, func() {
			conv2D(b, map[string]tensor.Info{"x": x, "filter": filter}, nil)
		})
	})

	t.Run("NonFourDInput", func(t *testing.T) {
		bad := f32Tensor(b, tensor.Shape{3, 3}, make([]float32, 9))
		filter := f32Tensor(b, tensor.Shape{1, 1, 2, 2}, make([]float32, 4))
		wantPanic(t, func() {
			conv2D(b, map[string]tensor.Info{"x": bad, "filter": filter}, nil)
		})
	})

	t.Run("FilterLargerThanInput", func(t *testing.T) {
		filter := f32Tensor(b, tensor.Shape{1, 1, 5, 5}, make([]float32, 25))
		wantPanic(t, func() {
			conv2D(b, map[string]tensor.Info{"x": x, "filter": filter}, nil)
		})
	})
}

func TestPool2D(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})

	t.Run("Max", func(t *testing.T) {
		out := maxPool2D(b, map[string]tensor.Info{"x": x}, nil)
		wantShape(t, out[0], tensor.Shape{1, 1, 2, 2})
		equalF32(t, readF32(t, b, out[0]), []float32{6, 8, 14, 16})
	})

	t.Run("Avg", func(t *testing.T) {
		out := avgPool2D(b, map[string]tensor.Info{"x": x}, nil)
		equalF32(t, readF32(t, b, out[0]), []float32{3.5, 5.5, 11.5, 13.5})
	})

	t.Run("OverlappingStride", func(t *testing.T) {
		out := maxPool2D(b, map[string]tensor.Info{"x": x},
			engine.Attrs{"kernelSize": 2, "stride": 1})
		wantShape(t, out[0], tensor.Shape{1, 1, 3, 3})
		equalF32(t, readF32(t, b, out[0]), []float32{6, 7, 8, 10, 11, 12, 14, 15, 16})
	})

	t.Run("NegativeValuesMax", func(t *testing.T) {
		neg := f32Tensor(b, tensor.Shape{1, 1, 2, 2}, []float32{-4, -3, -2, -1})
		out := maxPool2D(b, map[string]tensor.Info{"x": neg}, nil)
		equalF32(t, readF32(t, b, out[0]), []float32{-1})
	})

	t.Run("WindowTooLarge", func(t *testing.T) {
		wantPanic(t, func() {
			maxPool2D(b, map[string]tensor.Info{"x": x}, engine.Attrs{"kernelSize": 5})
		})
	})
}
