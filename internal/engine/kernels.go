package engine

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/fornax-ml/fornax/internal/tensor"
)

// Attrs carries the non-tensor parameters of a kernel invocation
// (strides, axes, target dtypes, ...).
type Attrs map[string]any

// KernelFunc is a backend-specific implementation of a named kernel.
// Kernels are pure: they read input buffers through the backend, mint
// output buffers through the backend's write path, and never mutate
// inputs in place. Invalid shapes or dtypes are signaled by panicking
// with a descriptive message; the engine does not catch or reinterpret
// those panics.
type KernelFunc func(b Backend, inputs map[string]tensor.Info, attrs Attrs) []tensor.Info

type kernelKey struct {
	kernel  string
	backend string
}

// RegisterKernel binds an implementation of kernelName to backendName.
// Re-registering an existing pair overwrites it with a warning.
func (e *Engine) RegisterKernel(kernelName, backendName string, fn KernelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := kernelKey{kernel: kernelName, backend: backendName}
	if _, ok := e.kernels[key]; ok {
		klog.Warningf("Kernel '%s' for backend '%s' is already registered; overwriting", kernelName, backendName)
	}
	e.kernels[key] = fn
}

// HasKernel reports whether kernelName is registered for backendName.
func (e *Engine) HasKernel(kernelName, backendName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.kernels[kernelKey{kernel: kernelName, backend: backendName}]
	return ok
}

// RunKernel resolves the named kernel on the active backend, executes
// it, verifies the backend's buffer accounting, and tracks the outputs
// in the current scope.
//
// The leak check compares the backend's buffer count around the call
// with the count implied by the outputs: one buffer per output, except
// complex64 outputs which decompose into a container plus two real
// component buffers (three ids). A kernel holding more buffers than
// accounted for is a fatal implementation bug and surfaces as an
// error; holding fewer is legal (aliasing kernels mint no buffer).
func (e *Engine) RunKernel(kernelName string, inputs map[string]tensor.Info, attrs Attrs) ([]tensor.Info, error) {
	b, err := e.Backend()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	backendName := e.activeName
	fn, ok := e.kernels[kernelKey{kernel: kernelName, backend: backendName}]
	e.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("kernel '%s' is not registered for backend '%s'", kernelName, backendName)
	}

	before := b.NumDataIDs()
	outputs := fn(b, inputs, attrs)
	after := b.NumDataIDs()

	expected := 0
	for _, out := range outputs {
		if out.DType == tensor.Complex64 {
			// A complex tensor holds three data ids: the container
			// plus the real and imaginary component buffers.
			expected += 3
		} else {
			expected++
		}
	}
	if leaked := (after - before) - expected; leaked > 0 {
		return nil, errors.Errorf("Backend '%s' has an internal memory leak (%d data ids) after running '%s'", backendName, leaked, kernelName)
	}

	e.mu.Lock()
	for _, out := range outputs {
		e.trackLocked(out, b, backendName)
	}
	e.mu.Unlock()
	return outputs, nil
}
