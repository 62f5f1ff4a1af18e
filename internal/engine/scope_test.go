package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fornax-ml/fornax/internal/backend/cpu"
	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

func newCPUEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New()
	require.True(t, cpu.Register(e, "cpu", 1))
	require.NoError(t, e.Ready(context.Background()))
	return e
}

func makeF32(t *testing.T, e *engine.Engine, values []float32, shape tensor.Shape) tensor.Info {
	t.Helper()
	info, err := e.MakeTensor(values, shape, tensor.Float32)
	require.NoError(t, err)
	return info
}

func TestTidy_DisposesIntermediates(t *testing.T) {
	e := newCPUEngine(t)
	outer := makeF32(t, e, []float32{1, 2}, tensor.Shape{2})
	before := e.Memory()

	results := e.Tidy("sum-of-squares", func() []tensor.Info {
		a := makeF32(t, e, []float32{1, 2, 3}, tensor.Shape{3})
		sq, err := e.RunKernel("Mul", map[string]tensor.Info{"a": a, "b": a}, nil)
		require.NoError(t, err)
		out, err := e.RunKernel("Sum", map[string]tensor.Info{"x": sq[0]}, nil)
		require.NoError(t, err)
		return out
	})
	require.Len(t, results, 1)

	mem := e.Memory()
	assert.Equal(t, before.NumTensors+1, mem.NumTensors, "only the result survives")

	v, err := e.ReadSync(results[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{14}, v)

	// Intermediates are gone from the engine.
	_, err = e.ReadSync(outer)
	require.NoError(t, err, "tensors from the enclosing scope are untouched")

	e.DisposeTensor(results[0])
	e.DisposeTensor(outer)
	assert.Equal(t, 0, e.Memory().NumTensors)
}

func TestTidy_Nested(t *testing.T) {
	e := newCPUEngine(t)

	outer := e.Tidy("outer", func() []tensor.Info {
		inner := e.Tidy("inner", func() []tensor.Info {
			a := makeF32(t, e, []float32{2}, tensor.Shape{1})
			b, err := e.RunKernel("Add", map[string]tensor.Info{"a": a, "b": a}, nil)
			require.NoError(t, err)
			return b
		})
		// The inner result is owned by the outer scope now.
		require.Len(t, inner, 1)
		out, err := e.RunKernel("Mul", map[string]tensor.Info{"a": inner[0], "b": inner[0]}, nil)
		require.NoError(t, err)
		return out
	})
	require.Len(t, outer, 1)
	assert.Equal(t, 0, e.NumScopes())

	v, err := e.ReadSync(outer[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{16}, v)

	mem := e.Memory()
	assert.Equal(t, 1, mem.NumTensors, "the inner result was disposed when the outer scope ended")
}

func TestKeep_SurvivesScope(t *testing.T) {
	e := newCPUEngine(t)

	var kept tensor.Info
	e.Tidy("train-step", func() []tensor.Info {
		kept = e.Keep(makeF32(t, e, []float32{7}, tensor.Shape{1}))
		makeF32(t, e, []float32{8}, tensor.Shape{1}) // disposed
		return nil
	})

	v, err := e.ReadSync(kept)
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, v)
	assert.Equal(t, 1, e.Memory().NumTensors)

	e.DisposeTensor(kept)
	assert.Equal(t, 0, e.Memory().NumTensors)
}

func TestEndScope_NoOpenScope(t *testing.T) {
	e := newCPUEngine(t)
	// Must not panic, only warn.
	e.EndScope()
	assert.Equal(t, 0, e.NumScopes())
}

func TestReshape_AliasPassesLeakCheck(t *testing.T) {
	e := newCPUEngine(t)
	x := makeF32(t, e, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	out, err := e.RunKernel("Reshape",
		map[string]tensor.Info{"x": x},
		engine.Attrs{"shape": []int{3, 2}})
	require.NoError(t, err, "an aliasing kernel mints no buffer and must not trip the leak check")
	require.Len(t, out, 1)
	assert.Equal(t, x.Data, out[0].Data, "reshape aliases the input buffer")
	assert.Equal(t, tensor.Shape{3, 2}, out[0].Shape)

	mem := e.Memory()
	assert.Equal(t, 2, mem.NumTensors)
	assert.Equal(t, 1, mem.NumDataBuffers, "both tensors share one buffer")

	// The buffer survives until the last reference is released.
	e.DisposeTensor(x)
	v, err := e.ReadSync(out[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, v)

	e.DisposeTensor(out[0])
	assert.Equal(t, 0, e.Memory().NumDataBuffers)
}

func TestComplexKernel_AccountsThreeDataIDs(t *testing.T) {
	e := newCPUEngine(t)
	re := makeF32(t, e, []float32{1, 2}, tensor.Shape{2})
	im := makeF32(t, e, []float32{3, 4}, tensor.Shape{2})

	b, err := e.Backend()
	require.NoError(t, err)
	before := b.NumDataIDs()

	out, err := e.RunKernel("Complex", map[string]tensor.Info{"real": re, "imag": im}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, tensor.Complex64, out[0].DType)
	assert.Equal(t, 3, b.NumDataIDs()-before, "container plus two component buffers")

	v, err := e.ReadSync(out[0])
	require.NoError(t, err)
	assert.Equal(t, []complex64{complex(1, 3), complex(2, 4)}, v)

	e.DisposeTensor(out[0])
	assert.Equal(t, before, b.NumDataIDs(), "disposing the container frees the components")
}
