package cpu

import (
	"math"
	"testing"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

func TestUnaryKernels(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{3}, []float32{-1, 0, 2})
	in := map[string]tensor.Info{"x": x}

	cases := []struct {
		kernel string
		want   []float32
	}{
		{"Exp", []float32{float32(math.Exp(-1)), 1, float32(math.Exp(2))}},
		{"Neg", []float32{1, 0, -2}},
		{"Abs", []float32{1, 0, 2}},
		{"Relu", []float32{0, 0, 2}},
		{"Sigmoid", []float32{float32(1 / (1 + math.E)), 0.5, float32(1 / (1 + math.Exp(-2)))}},
		{"Sin", []float32{float32(math.Sin(-1)), 0, float32(math.Sin(2))}},
		{"Cos", []float32{float32(math.Cos(-1)), 1, float32(math.Cos(2))}},
	}
	for _, tc := range cases {
		t.Run(tc.kernel, func(t *testing.T) {
			out := kernelTable[tc.kernel](b, in, nil)
			wantShape(t, out[0], x.Shape)
			closeF32(t, readF32(t, b, out[0]), tc.want, 1e-6)
		})
	}
}

func TestUnaryFloat64(t *testing.T) {
	b := seqBackend()
	x := b.MakeTensorInfo(tensor.Shape{2}, tensor.Float64, []float64{4, 9})
	out := kernelTable["Sqrt"](b, map[string]tensor.Info{"x": x}, nil)

	got := b.ReadSync(out[0].Data).([]float64)
	want := []float64{2, 3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUnaryRsqrt(t *testing.T) {
	b := seqBackend()
	x := f32Tensor(b, tensor.Shape{2}, []float32{4, 16})
	out := kernelTable["Rsqrt"](b, map[string]tensor.Info{"x": x}, nil)
	closeF32(t, readF32(t, b, out[0]), []float32{0.5, 0.25}, 1e-6)
}

func TestUnaryIntegerPanics(t *testing.T) {
	b := seqBackend()
	x := b.MakeTensorInfo(tensor.Shape{1}, tensor.Int32, []int32{4})
	wantPanic(t, func() {
		kernelTable["Sqrt"](b, map[string]tensor.Info{"x": x}, nil)
	})
}

func TestSoftmax(t *testing.T) {
	b := seqBackend()

	t.Run("LastAxis", func(t *testing.T) {
		x := f32Tensor(b, tensor.Shape{3}, []float32{1, 2, 3})
		out := softmax(b, map[string]tensor.Info{"x": x}, nil)
		got := readF32(t, b, out[0])
		closeF32(t, got, []float32{0.09003057, 0.24472847, 0.66524096}, 1e-6)

		var sum float32
		for _, v := range got {
			sum += v
		}
		if math.Abs(float64(sum)-1) > 1e-6 {
			t.Errorf("Probabilities sum to %v, want 1", sum)
		}
	})

	t.Run("Axis0", func(t *testing.T) {
		x := f32Tensor(b, tensor.Shape{2, 2}, []float32{1, 3, 2, 4})
		out := softmax(b, map[string]tensor.Info{"x": x}, engine.Attrs{"axis": 0})
		got := readF32(t, b, out[0])
		// Column-wise: softmax([1,2]) and softmax([3,4]).
		closeF32(t, got, []float32{0.26894143, 0.26894143, 0.7310586, 0.7310586}, 1e-6)
	})

	t.Run("LargeValuesStable", func(t *testing.T) {
		x := f32Tensor(b, tensor.Shape{2}, []float32{1000, 1000})
		out := softmax(b, map[string]tensor.Info{"x": x}, nil)
		closeF32(t, readF32(t, b, out[0]), []float32{0.5, 0.5}, 1e-6)
	})

	t.Run("EmptyAxisPanics", func(t *testing.T) {
		x := f32Tensor(b, tensor.Shape{2, 0}, []float32{})
		wantPanic(t, func() {
			softmax(b, map[string]tensor.Info{"x": x}, nil)
		})
	})
}
