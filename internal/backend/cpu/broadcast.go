package cpu

import (
	"github.com/fornax-ml/fornax/internal/tensor"
)

// number constrains the element types binary arithmetic supports.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// effectiveStrides returns the per-output-dimension stride of an input
// aligned to outShape on the right, with 0 where the input dimension
// is 1 or missing. Walking the output coordinates with these strides
// realizes NumPy broadcasting without materializing the expansion.
func effectiveStrides(in, out tensor.Shape) []int {
	inStrides := in.ComputeStrides()
	eff := make([]int, len(out))
	offset := len(out) - len(in)
	for d := range out {
		if d < offset || in[d-offset] == 1 {
			eff[d] = 0
			continue
		}
		eff[d] = inStrides[d-offset]
	}
	return eff
}

// broadcastLoop walks every output index in row-major order, keeping
// the two input offsets in lockstep via their effective strides.
func broadcastLoop[T, U any](out []U, av, bv []T, outShape tensor.Shape, aStr, bStr []int, op func(a, b T) U) {
	rank := len(outShape)
	coords := make([]int, rank)
	ai, bi := 0, 0
	for i := range out {
		out[i] = op(av[ai], bv[bi])
		for d := rank - 1; d >= 0; d-- {
			coords[d]++
			ai += aStr[d]
			bi += bStr[d]
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
			ai -= outShape[d] * aStr[d]
			bi -= outShape[d] * bStr[d]
		}
	}
}
