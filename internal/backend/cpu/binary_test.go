package cpu

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/fornax-ml/fornax/internal/tensor"
)

func TestBinarySameShape(t *testing.T) {
	b := seqBackend()
	a := f32Tensor(b, tensor.Shape{4}, []float32{1, 2, 3, 4})
	c := f32Tensor(b, tensor.Shape{4}, []float32{10, 20, 30, 40})
	in := map[string]tensor.Info{"a": a, "b": c}

	cases := []struct {
		kernel string
		want   []float32
	}{
		{"Add", []float32{11, 22, 33, 44}},
		{"Sub", []float32{-9, -18, -27, -36}},
		{"Mul", []float32{10, 40, 90, 160}},
		{"Div", []float32{0.1, 0.1, 0.1, 0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.kernel, func(t *testing.T) {
			out := kernelTable[tc.kernel](b, in, nil)
			wantShape(t, out[0], tensor.Shape{4})
			closeF32(t, readF32(t, b, out[0]), tc.want, 1e-6)
		})
	}
}

func TestBinaryBroadcast(t *testing.T) {
	b := seqBackend()

	t.Run("VectorOverRows", func(t *testing.T) {
		a := f32Tensor(b, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
		c := f32Tensor(b, tensor.Shape{3}, []float32{10, 20, 30})
		out := add(b, map[string]tensor.Info{"a": a, "b": c}, nil)
		wantShape(t, out[0], tensor.Shape{2, 3})
		equalF32(t, readF32(t, b, out[0]), []float32{11, 22, 33, 14, 25, 36})
	})

	t.Run("Scalar", func(t *testing.T) {
		a := f32Tensor(b, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
		c := f32Tensor(b, tensor.Shape{}, []float32{10})
		out := mul(b, map[string]tensor.Info{"a": a, "b": c}, nil)
		equalF32(t, readF32(t, b, out[0]), []float32{10, 20, 30, 40})
	})

	t.Run("BothSidesExpand", func(t *testing.T) {
		a := f32Tensor(b, tensor.Shape{2, 1}, []float32{1, 2})
		c := f32Tensor(b, tensor.Shape{1, 3}, []float32{10, 20, 30})
		out := add(b, map[string]tensor.Info{"a": a, "b": c}, nil)
		wantShape(t, out[0], tensor.Shape{2, 3})
		equalF32(t, readF32(t, b, out[0]), []float32{11, 21, 31, 12, 22, 32})
	})

	t.Run("Incompatible", func(t *testing.T) {
		a := f32Tensor(b, tensor.Shape{2}, []float32{1, 2})
		c := f32Tensor(b, tensor.Shape{3}, []float32{1, 2, 3})
		wantPanic(t, func() {
			add(b, map[string]tensor.Info{"a": a, "b": c}, nil)
		})
	})
}

func TestBinaryInteger(t *testing.T) {
	b := seqBackend()
	a := b.MakeTensorInfo(tensor.Shape{3}, tensor.Int32, []int32{7, -7, 9})
	c := b.MakeTensorInfo(tensor.Shape{3}, tensor.Int32, []int32{2, 2, 3})

	out := div(b, map[string]tensor.Info{"a": a, "b": c}, nil)
	got := b.ReadSync(out[0].Data).([]int32)
	if want := []int32{3, -3, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Integer division: got %v, want %v", got, want)
	}
}

func TestDivIntegerByZero(t *testing.T) {
	b := seqBackend()

	for dtype, values := range map[tensor.DataType]any{
		tensor.Int32: []int32{7, 0},
		tensor.Int64: []int64{7, 0},
	} {
		a := b.MakeTensorInfo(tensor.Shape{2}, dtype, values)
		func() {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatalf("%s division by zero must panic", dtype)
				}
				if !strings.Contains(fmt.Sprint(r), "Div") {
					t.Errorf("Panic must name the kernel, got: %v", r)
				}
			}()
			div(b, map[string]tensor.Info{"a": a, "b": a}, nil)
		}()
	}

	// Float division by zero stays IEEE: +Inf, no panic.
	f := f32Tensor(b, tensor.Shape{2}, []float32{1, 0})
	out := div(b, map[string]tensor.Info{"a": f, "b": f}, nil)
	got := readF32(t, b, out[0])
	if !math.IsInf(float64(got[1]), 0) && !math.IsNaN(float64(got[1])) {
		t.Errorf("Float 0/0: got %v, want NaN", got[1])
	}
}

func TestBinaryDTypeMismatchPanics(t *testing.T) {
	b := seqBackend()
	a := f32Tensor(b, tensor.Shape{1}, []float32{1})
	c := b.MakeTensorInfo(tensor.Shape{1}, tensor.Int32, []int32{1})
	wantPanic(t, func() {
		add(b, map[string]tensor.Info{"a": a, "b": c}, nil)
	})
}
