package cpu

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// kernelTable maps kernel names to their CPU implementations.
var kernelTable = map[string]engine.KernelFunc{
	"Add": add,
	"Sub": sub,
	"Mul": mul,
	"Div": div,

	"Exp":     unaryKernel("Exp", mathExp),
	"Log":     unaryKernel("Log", mathLog),
	"Sqrt":    unaryKernel("Sqrt", mathSqrt),
	"Rsqrt":   unaryKernel("Rsqrt", mathRsqrt),
	"Sin":     unaryKernel("Sin", mathSin),
	"Cos":     unaryKernel("Cos", mathCos),
	"Neg":     unaryKernel("Neg", func(x float64) float64 { return -x }),
	"Abs":     unaryKernel("Abs", mathAbs),
	"Relu":    unaryKernel("Relu", mathRelu),
	"Sigmoid": unaryKernel("Sigmoid", mathSigmoid),

	"MatMul":    matMul,
	"Conv2D":    conv2D,
	"MaxPool2D": maxPool2D,
	"AvgPool2D": avgPool2D,

	"ResizeBilinear":        resizeBilinear,
	"ResizeNearestNeighbor": resizeNearestNeighbor,

	"Sum":    reduceKernel("Sum", reduceSum),
	"Mean":   reduceKernel("Mean", reduceMean),
	"Max":    reduceKernel("Max", reduceMax),
	"ArgMax": argMax,

	"Softmax": softmax,

	"Reshape":   reshape,
	"Transpose": transpose,
	"Slice":     sliceKernel,
	"Concat":    concat,

	"Cast":  cast,
	"Fill":  fill,
	"Range": rangeKernel,

	"Complex": complexKernel,
	"Real":    realKernel,
	"Imag":    imagKernel,

	"StringToHashBucketFast": stringToHashBucketFast,
	"StringLength":           stringLength,

	"SparseToDense": sparseToDense,
	"BatchNorm":     batchNorm,
}

// RegisterKernels binds the CPU kernel set to backendName on e. Used
// directly when the factory is registered under several names (two CPU
// backends under different names stay fully independent).
func RegisterKernels(e *engine.Engine, backendName string) {
	for name, fn := range kernelTable {
		e.RegisterKernel(name, backendName, fn)
	}
}

// KernelNames lists the kernels the CPU backend implements, sorted.
func KernelNames() []string {
	names := make([]string, 0, len(kernelTable))
	for name := range kernelTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// self asserts that the engine dispatched to a CPU backend instance.
func self(b engine.Backend, kernel string) *Backend {
	cb, ok := b.(*Backend)
	if !ok {
		exceptions.Panicf("%s: kernel dispatched to non-CPU backend %T", kernel, b)
	}
	return cb
}

// input fetches a required named input.
func input(inputs map[string]tensor.Info, key, kernel string) tensor.Info {
	info, ok := inputs[key]
	if !ok {
		exceptions.Panicf("%s: missing input '%s'", kernel, key)
	}
	return info
}

// numberedInputs collects inputs keyed "0", "1", ... in order, for
// variadic kernels such as Concat.
func numberedInputs(inputs map[string]tensor.Info, kernel string) []tensor.Info {
	out := make([]tensor.Info, len(inputs))
	for i := range out {
		info, ok := inputs[strconv.Itoa(i)]
		if !ok {
			exceptions.Panicf("%s: expected %d numbered inputs, missing '%d'", kernel, len(inputs), i)
		}
		out[i] = info
	}
	return out
}

func attrInt(attrs engine.Attrs, key string, def int) int {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		exceptions.Panicf("attribute '%s' must be an int, got %T", key, v)
		return 0
	}
}

func attrBool(attrs engine.Attrs, key string, def bool) bool {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	x, ok := v.(bool)
	if !ok {
		exceptions.Panicf("attribute '%s' must be a bool, got %T", key, v)
	}
	return x
}

func attrFloat(attrs engine.Attrs, key string, def float64) float64 {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	default:
		exceptions.Panicf("attribute '%s' must be a number, got %T", key, v)
		return 0
	}
}

func attrInts(attrs engine.Attrs, key, kernel string) []int {
	v, ok := attrs[key]
	if !ok {
		exceptions.Panicf("%s: missing attribute '%s'", kernel, key)
	}
	x, ok := v.([]int)
	if !ok {
		exceptions.Panicf("%s: attribute '%s' must be []int, got %T", kernel, key, v)
	}
	return x
}

func attrDType(attrs engine.Attrs, key, kernel string) tensor.DataType {
	v, ok := attrs[key]
	if !ok {
		exceptions.Panicf("%s: missing attribute '%s'", kernel, key)
	}
	dt, ok := v.(tensor.DataType)
	if !ok {
		exceptions.Panicf("%s: attribute '%s' must be a tensor.DataType, got %T", kernel, key, v)
	}
	return dt
}

func shapeString(s tensor.Shape) string {
	return fmt.Sprintf("%v", []int(s))
}
