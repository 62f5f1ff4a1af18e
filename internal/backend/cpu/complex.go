package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// complexKernel combines float32 inputs "real" and "imag" of the same
// shape into a complex64 tensor. The components are copied into fresh
// buffers and referenced by a container buffer, so one complex output
// accounts for three data ids.
func complexKernel(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "Complex"
	cb := self(b, name)
	re := input(inputs, "real", name)
	im := input(inputs, "imag", name)
	if re.DType != tensor.Float32 || im.DType != tensor.Float32 {
		exceptions.Panicf("%s: components must be float32, got %s and %s", name, re.DType, im.DType)
	}
	if !re.Shape.Equal(im.Shape) {
		exceptions.Panicf("%s: component shapes differ: %s vs %s", name, shapeString(re.Shape), shapeString(im.Shape))
	}

	rev := vals[float32](cb, re, name)
	imv := vals[float32](cb, im, name)
	reCopy := make([]float32, len(rev))
	imCopy := make([]float32, len(imv))
	copy(reCopy, rev)
	copy(imCopy, imv)

	out := cb.makeComplexInfo(re.Shape,
		cb.MakeTensorInfo(re.Shape, tensor.Float32, reCopy),
		cb.MakeTensorInfo(im.Shape, tensor.Float32, imCopy))
	return []tensor.Info{out}
}

// realKernel extracts the real component of complex64 input "x" into a
// new float32 tensor.
func realKernel(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	return complexPart(b, inputs, "Real", false)
}

// imagKernel extracts the imaginary component of complex64 input "x"
// into a new float32 tensor.
func imagKernel(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	return complexPart(b, inputs, "Imag", true)
}

func complexPart(b engine.Backend, inputs map[string]tensor.Info, name string, wantImag bool) []tensor.Info {
	cb := self(b, name)
	x := input(inputs, "x", name)
	if x.DType != tensor.Complex64 {
		exceptions.Panicf("%s: input must be complex64, got %s", name, x.DType)
	}
	buf := cb.buffer(x.Data)
	if buf.parts == nil {
		exceptions.Panicf("%s: complex buffer %d has no component parts", name, x.Data)
	}
	part := buf.parts.real
	if wantImag {
		part = buf.parts.imag
	}
	src := typedValues[float32](cb, part.Data, "complex component")
	out := make([]float32, len(src))
	copy(out, src)
	return []tensor.Info{cb.MakeTensorInfo(x.Shape, tensor.Float32, out)}
}
