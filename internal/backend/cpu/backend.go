// Package cpu implements the pure-Go CPU backend of the Fornax
// runtime: flat typed buffers keyed by opaque data ids, and the kernel
// set operating on them with explicit stride arithmetic.
package cpu

import (
	"context"
	"sync"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/parallel"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// complexParts references the real and imaginary component buffers of
// a complex64 container buffer.
type complexParts struct {
	real tensor.Info
	imag tensor.Info
}

// buffer is one backend-owned allocation. refCount counts internal
// references only (a complex container holds one on each component);
// external tensor lifetime is the engine's bookkeeping, which calls
// DisposeData exactly once per buffer.
type buffer struct {
	values   any
	dtype    tensor.DataType
	parts    *complexParts
	refCount int
}

// Backend stores tensor data in flat Go slices indexed by DataID.
type Backend struct {
	mu   sync.RWMutex
	data map[tensor.DataID]*buffer

	par parallel.Config
}

var _ engine.Backend = (*Backend)(nil)

// New creates an empty CPU backend.
func New() *Backend {
	return &Backend{
		data: make(map[tensor.DataID]*buffer),
		par:  parallel.DefaultConfig(),
	}
}

// Register registers a CPU backend factory under the given name and
// binds the full CPU kernel set to that name. Returns false if the
// name is already taken by an initialized backend.
func Register(e *engine.Engine, name string, priority int) bool {
	ok := e.RegisterBackend(name, func(ctx context.Context) (engine.Backend, error) {
		return New(), nil
	}, priority)
	if ok {
		RegisterKernels(e, name)
	}
	return ok
}

// Write allocates a buffer for the given flat values. See
// engine.Backend. Complex values are decomposed into two real
// component buffers plus a container, so one complex write mints three
// data ids.
func (b *Backend) Write(values any, shape tensor.Shape, dtype tensor.DataType) tensor.DataID {
	n := shape.NumElements()
	if dtype == tensor.Complex64 {
		cv, ok := values.([]complex64)
		if !ok || len(cv) != n {
			exceptions.Panicf("cpu: write of %d complex64 elements got %T of wrong size", n, values)
		}
		re := make([]float32, n)
		im := make([]float32, n)
		for i, c := range cv {
			re[i] = real(c)
			im[i] = imag(c)
		}
		return b.makeComplexInfo(shape,
			b.MakeTensorInfo(shape, tensor.Float32, re),
			b.MakeTensorInfo(shape, tensor.Float32, im)).Data
	}

	if got := storageLen(values, dtype); got != n {
		exceptions.Panicf("cpu: write of %s tensor with %d elements got %T with %d elements",
			dtype, n, values, got)
	}
	id := tensor.NextDataID()
	b.mu.Lock()
	b.data[id] = &buffer{values: values, dtype: dtype, refCount: 1}
	b.mu.Unlock()
	return id
}

// MakeTensorInfo is the mint path kernels use for their outputs: it
// allocates a buffer and returns the descriptor referencing it.
func (b *Backend) MakeTensorInfo(shape tensor.Shape, dtype tensor.DataType, values any) tensor.Info {
	return tensor.Info{
		Data:  b.Write(values, shape, dtype),
		Shape: shape.Clone(),
		DType: dtype,
	}
}

// makeComplexInfo builds a complex64 container referencing already
// allocated component buffers.
func (b *Backend) makeComplexInfo(shape tensor.Shape, re, im tensor.Info) tensor.Info {
	id := tensor.NextDataID()
	b.mu.Lock()
	b.data[id] = &buffer{
		dtype:    tensor.Complex64,
		parts:    &complexParts{real: re, imag: im},
		refCount: 1,
	}
	b.mu.Unlock()
	return tensor.Info{Data: id, Shape: shape.Clone(), DType: tensor.Complex64}
}

// ReadSync returns the flat storage slice for a buffer. Complex
// containers are reassembled into []complex64 from their components.
func (b *Backend) ReadSync(id tensor.DataID) any {
	buf := b.buffer(id)
	if buf.dtype == tensor.Complex64 {
		re := typedValues[float32](b, buf.parts.real.Data, "complex real part")
		im := typedValues[float32](b, buf.parts.imag.Data, "complex imaginary part")
		out := make([]complex64, len(re))
		for i := range out {
			out[i] = complex(re[i], im[i])
		}
		return out
	}
	return buf.values
}

// NumDataIDs reports the number of live buffers, component buffers
// included.
func (b *Backend) NumDataIDs() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// DisposeData releases one buffer reference. A complex container
// releases its component buffers with it. Unknown ids are ignored.
func (b *Backend) DisposeData(id tensor.DataID) {
	b.mu.Lock()
	buf, ok := b.data[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	buf.refCount--
	if buf.refCount > 0 {
		b.mu.Unlock()
		return
	}
	delete(b.data, id)
	parts := buf.parts
	b.mu.Unlock()

	if parts != nil {
		b.DisposeData(parts.real.Data)
		b.DisposeData(parts.imag.Data)
	}
}

// Dispose releases every buffer. The backend is invalid afterwards.
func (b *Backend) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[tensor.DataID]*buffer)
}

// buffer looks up a live buffer, panicking on unknown ids: kernels
// asking for disposed or foreign data is a programming error.
func (b *Backend) buffer(id tensor.DataID) *buffer {
	b.mu.RLock()
	buf, ok := b.data[id]
	b.mu.RUnlock()
	if !ok {
		exceptions.Panicf("cpu: no data found for id %d (disposed or owned by another backend?)", id)
	}
	return buf
}

// typedValues returns the storage slice of a buffer as []T.
func typedValues[T any](b *Backend, id tensor.DataID, what string) []T {
	buf := b.buffer(id)
	s, ok := buf.values.([]T)
	if !ok {
		exceptions.Panicf("cpu: %s stored as %T, requested incompatible element type", what, buf.values)
	}
	return s
}

// vals returns the storage slice backing an input tensor as []T,
// panicking with the kernel name on dtype mismatch.
func vals[T any](b *Backend, info tensor.Info, kernel string) []T {
	buf := b.buffer(info.Data)
	s, ok := buf.values.([]T)
	if !ok {
		exceptions.Panicf("%s: input stored as %T, incompatible with dtype %s", kernel, buf.values, info.DType)
	}
	return s
}

func storageLen(values any, dtype tensor.DataType) int {
	switch v := values.(type) {
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	case []uint16:
		// Float16 storage.
		return len(v)
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	case []uint8:
		return len(v)
	case []bool:
		return len(v)
	case [][]byte:
		return len(v)
	default:
		return -1
	}
}
