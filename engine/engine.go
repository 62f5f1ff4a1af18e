// Copyright 2025 Fornax ML Runtime. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides the public API of the Fornax runtime core:
// backend registration with priority-ordered resolution, kernel
// dispatch with leak detection, and scoped tensor lifetime management.
//
// # Basic Usage
//
//	import (
//	    "github.com/fornax-ml/fornax/backend/cpu"
//	    "github.com/fornax-ml/fornax/engine"
//	    "github.com/fornax-ml/fornax/tensor"
//	)
//
//	func main() {
//	    eng := engine.New()
//	    cpu.Register(eng, "cpu", 1)
//
//	    a, _ := eng.MakeTensor([]float32{1, 2}, tensor.Shape{2}, tensor.Float32)
//	    b, _ := eng.MakeTensor([]float32{3, 4}, tensor.Shape{2}, tensor.Float32)
//	    out, _ := eng.RunKernel("Add", map[string]tensor.Info{"a": a, "b": b}, nil)
//	    sum, _ := eng.ReadSync(out[0]) // []float32{4, 6}
//	    _ = sum
//	}
//
// # Memory Management
//
// Tensors created inside a Tidy scope are disposed when the scope ends
// unless returned or marked with Keep:
//
//	result := eng.Tidy("step", func() []tensor.Info {
//	    tmp, _ := eng.RunKernel("Mul", inputs, nil)
//	    out, _ := eng.RunKernel("Add", map[string]tensor.Info{"a": tmp[0], "b": bias}, nil)
//	    return out // tmp is disposed, out survives
//	})
package engine

import (
	internalengine "github.com/fornax-ml/fornax/internal/engine"
)

// Engine tracks registered backends, the active backend, the kernel
// registry and every live tensor.
type Engine = internalengine.Engine

// Backend is the contract compute devices implement.
type Backend = internalengine.Backend

// Factory creates a backend instance.
type Factory = internalengine.Factory

// KernelFunc is a backend-specific kernel implementation.
type KernelFunc = internalengine.KernelFunc

// Attrs carries the non-tensor parameters of a kernel invocation.
type Attrs = internalengine.Attrs

// MemoryInfo is a snapshot of the engine's buffer accounting.
type MemoryInfo = internalengine.MemoryInfo

// New creates an empty engine with no backends or kernels registered.
func New() *Engine {
	return internalengine.New()
}
