package tensor

import "sync/atomic"

// DataID is an opaque handle identifying a backend-owned data buffer.
// IDs are minted process-wide so that buffers stay distinguishable
// across backend instances; ownership of the underlying buffer remains
// with the backend that allocated it.
type DataID int64

var nextDataID atomic.Int64

// NextDataID mints a fresh DataID. Backends call this from their
// write/allocate paths; nothing else should fabricate DataIDs.
func NextDataID() DataID {
	return DataID(nextDataID.Add(1))
}

// Info describes a tensor without owning its buffer: the buffer
// handle, the dimensions, and the element type. Infos are immutable
// values; operations produce new Infos referencing new or aliased
// DataIDs, they never mutate one in place.
type Info struct {
	Data  DataID
	Shape Shape
	DType DataType
}

// NumElements returns the number of elements described by the Info.
func (i Info) NumElements() int {
	return i.Shape.NumElements()
}

// Bytes returns the buffer size in bytes implied by shape and dtype.
// For string tensors the element size is unknown and Bytes returns 0;
// callers account for string storage separately.
func (i Info) Bytes() int64 {
	return int64(i.Shape.NumElements()) * int64(i.DType.Size())
}
