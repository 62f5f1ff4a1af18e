// Copyright 2025 Fornax ML Runtime. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend of the Fornax runtime.
//
// The backend stores tensor data in flat typed slices keyed by opaque
// data ids and implements the runtime's kernel set with explicit
// stride arithmetic. Register binds both the backend factory and its
// kernels to an engine:
//
//	eng := engine.New()
//	cpu.Register(eng, "cpu", 1)
package cpu

import (
	internalcpu "github.com/fornax-ml/fornax/internal/backend/cpu"
	"github.com/fornax-ml/fornax/internal/engine"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.Backend

// New creates a CPU backend that is not yet registered with any
// engine. Most callers want Register instead.
func New() *Backend {
	return internalcpu.New()
}

// Register registers a CPU backend factory under name with the given
// priority and binds the CPU kernel set to that name. Returns false if
// the name is already bound to an initialized backend.
func Register(e *engine.Engine, name string, priority int) bool {
	return internalcpu.Register(e, name, priority)
}

// RegisterKernels binds the CPU kernel set to backendName without
// registering a factory, for callers that register their own.
func RegisterKernels(e *engine.Engine, backendName string) {
	internalcpu.RegisterKernels(e, backendName)
}

// KernelNames lists the kernels the CPU backend implements, sorted.
func KernelNames() []string {
	return internalcpu.KernelNames()
}
