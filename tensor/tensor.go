// Copyright 2025 Fornax ML Runtime. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public value types of the Fornax
// runtime: data types, shapes and the Info descriptor.
//
// An Info references a backend-owned buffer through an opaque DataID
// but does not own its lifetime; the engine's tracking table does.
//
// Example:
//
//	eng := engine.New()
//	cpu.Register(eng, "cpu", 1)
//	x, _ := eng.MakeTensor([]float32{1, 2, 3}, tensor.Shape{3}, tensor.Float32)
package tensor

import (
	"github.com/fornax-ml/fornax/internal/tensor"
)

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32   DataType = tensor.Float32
	Float64   DataType = tensor.Float64
	Float16   DataType = tensor.Float16
	Int32     DataType = tensor.Int32
	Int64     DataType = tensor.Int64
	Uint8     DataType = tensor.Uint8
	Bool      DataType = tensor.Bool
	Complex64 DataType = tensor.Complex64
	String    DataType = tensor.String
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// BroadcastShapes implements NumPy-style broadcasting rules over two
// shapes.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// DataID is an opaque handle identifying a backend-owned buffer.
type DataID = tensor.DataID

// Info describes a tensor: buffer handle, shape and dtype.
type Info = tensor.Info
