package cpu

import (
	"math"
	"testing"

	"github.com/fornax-ml/fornax/internal/parallel"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// seqBackend returns a backend with parallelism disabled so tests run
// deterministically.
func seqBackend() *Backend {
	b := New()
	b.par = parallel.Sequential()
	return b
}

func f32Tensor(b *Backend, shape tensor.Shape, values []float32) tensor.Info {
	return b.MakeTensorInfo(shape, tensor.Float32, values)
}

func readF32(t *testing.T, b *Backend, info tensor.Info) []float32 {
	t.Helper()
	v, ok := b.ReadSync(info.Data).([]float32)
	if !ok {
		t.Fatalf("Expected []float32 storage, got %T", b.ReadSync(info.Data))
	}
	return v
}

func closeF32(t *testing.T, got, want []float32, eps float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if float32(math.Abs(float64(got[i]-want[i]))) > eps {
			t.Errorf("Element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func equalF32(t *testing.T, got, want []float32) {
	t.Helper()
	closeF32(t, got, want, 0)
}

func wantShape(t *testing.T, info tensor.Info, want tensor.Shape) {
	t.Helper()
	if !info.Shape.Equal(want) {
		t.Fatalf("Shape mismatch: got %v, want %v", info.Shape, want)
	}
}

func wantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("Expected a panic")
		}
	}()
	fn()
}
