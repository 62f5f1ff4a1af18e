package cpu

import (
	"hash/fnv"

	"github.com/gomlx/exceptions"

	"github.com/fornax-ml/fornax/internal/engine"
	"github.com/fornax-ml/fornax/internal/tensor"
)

// stringToHashBucketFast hashes every element of string input "x" into
// [0, numBuckets) using FNV-1a, returning an int64 tensor of bucket
// ids. The hash is not cryptographic and stable across processes.
func stringToHashBucketFast(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "StringToHashBucketFast"
	cb := self(b, name)
	x := input(inputs, "x", name)
	if x.DType != tensor.String {
		exceptions.Panicf("%s: input must be string, got %s", name, x.DType)
	}
	numBuckets := attrInt(attrs, "numBuckets", 0)
	if numBuckets < 1 {
		exceptions.Panicf("%s: numBuckets must be >= 1, got %d", name, numBuckets)
	}

	src := vals[[]byte](cb, x, name)
	out := make([]int64, len(src))
	for i, s := range src {
		h := fnv.New64a()
		h.Write(s) //nolint:errcheck // hash.Hash64 never errors
		out[i] = int64(h.Sum64() % uint64(numBuckets))
	}
	return []tensor.Info{cb.MakeTensorInfo(x.Shape, tensor.Int64, out)}
}

// stringLength returns the byte length of every element of string
// input "x" as an int32 tensor.
func stringLength(b engine.Backend, inputs map[string]tensor.Info, attrs engine.Attrs) []tensor.Info {
	const name = "StringLength"
	cb := self(b, name)
	x := input(inputs, "x", name)
	if x.DType != tensor.String {
		exceptions.Panicf("%s: input must be string, got %s", name, x.DType)
	}

	src := vals[[]byte](cb, x, name)
	out := make([]int32, len(src))
	for i, s := range src {
		out[i] = int32(len(s))
	}
	return []tensor.Info{cb.MakeTensorInfo(x.Shape, tensor.Int32, out)}
}
