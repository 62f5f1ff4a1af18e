package engine

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// MemoryInfo is a point-in-time snapshot of the engine's buffer
// accounting.
type MemoryInfo struct {
	// NumTensors is the number of live tracked tensors.
	NumTensors int
	// NumDataBuffers is the number of distinct backend buffers;
	// aliasing tensors share one buffer.
	NumDataBuffers int
	// NumBytes is the total buffer size implied by shapes and dtypes.
	NumBytes int64
	// Unreliable is set when NumBytes cannot be exact, with the
	// explanations in Reasons.
	Unreliable bool
	Reasons    []string
}

// Memory returns a diagnostic snapshot of tensor and buffer counts.
// String tensors have no fixed element size, so their presence marks
// the byte count as unreliable.
func (e *Engine) Memory() MemoryInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := MemoryInfo{
		NumTensors:     e.numTensors,
		NumDataBuffers: len(e.tensors),
		NumBytes:       e.numBytes,
	}
	if e.numStringTensors > 0 {
		info.Unreliable = true
		info.Reasons = append(info.Reasons,
			"memory usage for string tensors is approximate: string elements have no fixed byte size")
	}
	return info
}

func (m MemoryInfo) String() string {
	s := fmt.Sprintf("%d tensors, %d buffers, %s",
		m.NumTensors, m.NumDataBuffers, humanize.IBytes(uint64(max(m.NumBytes, 0))))
	if m.Unreliable {
		s += " (approximate)"
	}
	return s
}
