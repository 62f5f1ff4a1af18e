// Package engine implements the runtime core of Fornax: a registry of
// compute backends with priority-ordered resolution, kernel dispatch
// with backend-level leak detection, and engine-owned tensor lifetime
// tracking with scoped disposal.
//
// An Engine is an explicit value; there is no hidden process-wide
// state. Tests and embedders create as many independent engines as
// they need.
package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/fornax-ml/fornax/internal/tensor"
)

// Engine tracks registered backends, the active backend slot, the
// kernel registry, and every live tensor's buffer reference count.
type Engine struct {
	mu sync.Mutex

	registry   map[string]*backendEntry
	regSeq     int
	activeName string // targeted backend name, "" when unset

	kernels map[kernelKey]KernelFunc

	tensors          map[tensor.DataID]*dataEntry
	numTensors       int
	numBytes         int64
	numStringTensors int

	scopes []*scopeFrame
	kept   map[tensor.DataID]bool
}

// dataEntry records the engine's view of one backend buffer: which
// backend instance owns it and how many live tensors reference it.
type dataEntry struct {
	backend     Backend
	backendName string
	bytes       int64
	refCount    int
}

// New creates an empty engine with no backends or kernels registered.
func New() *Engine {
	return &Engine{
		registry: make(map[string]*backendEntry),
		kernels:  make(map[kernelKey]KernelFunc),
		tensors:  make(map[tensor.DataID]*dataEntry),
		kept:     make(map[tensor.DataID]bool),
	}
}

// SetBackend selects the named backend, bypassing priority scanning.
// A synchronous factory is instantiated before SetBackend returns and
// its failure is returned as an error. An asynchronous factory is
// started in the background and SetBackend returns nil immediately;
// the outcome is observed through Ready or Backend. SetBackend never
// falls back to another backend on failure.
func (e *Engine) SetBackend(name string) error {
	e.mu.Lock()
	entry, ok := e.registry[name]
	if !ok {
		e.mu.Unlock()
		return errors.Errorf("backend '%s' has not been registered", name)
	}
	e.activeName = name

	// Explicit selection retries a previously failed factory.
	if entry.state == stateFailed {
		entry.state = stateUnresolved
		entry.err = nil
		entry.done = nil
	}

	switch entry.state {
	case stateReady, stateResolving:
		e.mu.Unlock()
		return nil
	default: // stateUnresolved
	}

	if entry.async {
		e.startAsyncLocked(entry)
		e.mu.Unlock()
		return nil
	}

	e.instantiateSyncLocked(entry)
	err := entry.err
	e.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "backend '%s' failed to initialize", name)
	}
	return nil
}

// BackendName returns the currently targeted backend name, which may
// not yet be ready. It is a pure accessor and never triggers
// resolution; an empty string means no backend has been selected or
// resolved yet.
func (e *Engine) BackendName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeName
}

// Backend returns the active backend instance, resolving one by
// priority if none has been selected. It fails fast if the targeted
// (or highest-priority) backend is asynchronous and has not settled:
// await Ready before synchronous use.
func (e *Engine) Backend() (Backend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeBackendLocked()
}

func (e *Engine) activeBackendLocked() (Backend, error) {
	if e.activeName != "" {
		entry, ok := e.registry[e.activeName]
		if !ok {
			// The active backend was removed; re-resolve.
			e.activeName = ""
		} else {
			switch entry.state {
			case stateReady:
				return entry.instance, nil
			case stateResolving:
				return nil, errors.Errorf("backend '%s' has not yet been initialized; await engine.Ready() before use", entry.name)
			case stateFailed:
				return nil, errors.Wrapf(entry.err, "backend '%s' failed to initialize", entry.name)
			default: // stateUnresolved
				if entry.async {
					return nil, errors.Errorf("backend '%s' has not yet been initialized; await engine.Ready() before use", entry.name)
				}
				e.instantiateSyncLocked(entry)
				if entry.state == stateReady {
					return entry.instance, nil
				}
				return nil, errors.Wrapf(entry.err, "backend '%s' failed to initialize", entry.name)
			}
		}
	}
	return e.resolveSyncLocked()
}

// resolveSyncLocked performs the priority scan over registered
// backends without suspending. A pending or unstarted asynchronous
// factory at the top of the priority list is a hard error: the engine
// must not silently run on a lower-priority backend while a
// higher-priority one is still initializing.
func (e *Engine) resolveSyncLocked() (Backend, error) {
	for {
		candidates := e.sortedCandidatesLocked()
		if len(candidates) == 0 {
			return nil, errors.New("no backend found in registry; register one with RegisterBackend")
		}
		best := candidates[0]
		switch {
		case best.state == stateReady:
			e.activeName = best.name
			return best.instance, nil
		case best.async || best.state == stateResolving:
			return nil, errors.Errorf("the highest priority backend '%s' has not yet been initialized; await engine.Ready() before synchronous use", best.name)
		default:
			e.instantiateSyncLocked(best)
			if best.state == stateReady {
				e.activeName = best.name
				return best.instance, nil
			}
			// Failed: the next iteration re-sorts without it.
		}
	}
}

// Ready blocks until the targeted backend is initialized, or, when no
// backend was explicitly selected, until priority-ordered resolution
// produces one. Factory failures during implicit resolution are logged
// and the scan continues down the priority list; Ready returns an
// error only when the list is exhausted, when an explicitly selected
// backend fails, or when ctx is done.
func (e *Engine) Ready(ctx context.Context) error {
	e.mu.Lock()
	if e.activeName != "" {
		if entry, ok := e.registry[e.activeName]; ok {
			return e.awaitEntryLocked(ctx, entry)
		}
		e.activeName = ""
	}
	return e.resolveAwaitLocked(ctx)
}

// awaitEntryLocked waits for one explicitly selected entry to settle.
// No fallback to other backends. Unlocks e.mu before returning.
func (e *Engine) awaitEntryLocked(ctx context.Context, entry *backendEntry) error {
	for {
		switch entry.state {
		case stateReady:
			e.mu.Unlock()
			return nil
		case stateFailed:
			err := entry.err
			e.mu.Unlock()
			return errors.Wrapf(err, "backend '%s' failed to initialize", entry.name)
		case stateUnresolved:
			if entry.async {
				e.startAsyncLocked(entry)
			} else {
				e.instantiateSyncLocked(entry)
			}
		case stateResolving:
			done := entry.done
			e.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			e.mu.Lock()
		}
	}
}

// resolveAwaitLocked walks the priority list, awaiting asynchronous
// factories instead of failing fast. Unlocks e.mu before returning.
func (e *Engine) resolveAwaitLocked(ctx context.Context) error {
	for {
		// An explicit SetBackend that happened while we were waiting
		// takes over: the most recent selection wins.
		if e.activeName != "" {
			if entry, ok := e.registry[e.activeName]; ok {
				return e.awaitEntryLocked(ctx, entry)
			}
			e.activeName = ""
		}

		candidates := e.sortedCandidatesLocked()
		if len(candidates) == 0 {
			e.mu.Unlock()
			return errors.New("no backend available: every registered backend failed to initialize or none was registered")
		}
		best := candidates[0]
		switch best.state {
		case stateReady:
			e.activeName = best.name
			e.mu.Unlock()
			return nil
		case stateUnresolved:
			if best.async {
				e.startAsyncLocked(best)
			} else {
				e.instantiateSyncLocked(best)
			}
		case stateResolving:
			done := best.done
			e.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			e.mu.Lock()
		}
	}
}

// instantiateSyncLocked runs a synchronous factory. e.mu must be held;
// it is released around the factory call so that factories may call
// back into the engine.
func (e *Engine) instantiateSyncLocked(entry *backendEntry) {
	entry.state = stateResolving
	entry.done = make(chan struct{})
	e.mu.Unlock()
	b, err := entry.factory(context.Background())
	e.mu.Lock()
	e.settleLocked(entry, b, err)
}

// startAsyncLocked launches an asynchronous factory in its own
// goroutine. e.mu must be held.
func (e *Engine) startAsyncLocked(entry *backendEntry) {
	entry.state = stateResolving
	entry.done = make(chan struct{})
	go func() {
		b, err := entry.factory(context.Background())
		e.mu.Lock()
		e.settleLocked(entry, b, err)
		e.mu.Unlock()
	}()
}

// settleLocked applies a factory outcome to its entry. If the entry
// was removed or replaced while the factory ran, the outcome is
// discarded and a successfully built instance is disposed so it cannot
// clobber a later resolution.
func (e *Engine) settleLocked(entry *backendEntry, b Backend, err error) {
	defer close(entry.done)

	if e.registry[entry.name] != entry {
		if err == nil && b != nil {
			b.Dispose()
		}
		entry.state = stateFailed
		entry.err = errors.Errorf("backend '%s' was removed during initialization", entry.name)
		return
	}
	if err != nil {
		entry.state = stateFailed
		entry.err = err
		klog.Warningf("Initialization of backend '%s' failed: %v", entry.name, err)
		return
	}
	entry.state = stateReady
	entry.instance = b
}

// MakeTensor writes flat values to the active backend and tracks the
// resulting tensor in the current scope. Values must match the storage
// layout of dtype; the backend validates and panics on mismatch, like
// any kernel-level shape error.
func (e *Engine) MakeTensor(values any, shape tensor.Shape, dtype tensor.DataType) (tensor.Info, error) {
	b, err := e.Backend()
	if err != nil {
		return tensor.Info{}, err
	}
	id := b.Write(values, shape, dtype)
	info := tensor.Info{Data: id, Shape: shape.Clone(), DType: dtype}

	e.mu.Lock()
	e.trackLocked(info, b, e.activeName)
	e.mu.Unlock()
	return info, nil
}

// ReadSync returns the flat storage slice backing a tensor, reading
// from whichever backend instance owns its buffer. Switching the
// active backend does not affect reads of tensors bound elsewhere.
func (e *Engine) ReadSync(info tensor.Info) (any, error) {
	e.mu.Lock()
	d, ok := e.tensors[info.Data]
	e.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("tensor data (id %d) is not tracked by the engine or was already disposed", info.Data)
	}
	return d.backend.ReadSync(info.Data), nil
}

// trackLocked registers one live tensor referencing a buffer. The
// first tensor for a DataID creates the buffer accounting entry;
// further tensors (aliasing kernels such as Reshape) only bump the
// reference count.
func (e *Engine) trackLocked(info tensor.Info, b Backend, backendName string) {
	e.numTensors++
	if info.DType == tensor.String {
		e.numStringTensors++
	}
	if d, ok := e.tensors[info.Data]; ok {
		d.refCount++
	} else {
		bytes := info.Bytes()
		e.tensors[info.Data] = &dataEntry{
			backend:     b,
			backendName: backendName,
			bytes:       bytes,
			refCount:    1,
		}
		e.numBytes += bytes
	}
	if len(e.scopes) > 0 {
		frame := e.scopes[len(e.scopes)-1]
		frame.tracked = append(frame.tracked, info)
	}
}

// DisposeTensor releases one tensor reference. The backing buffer is
// freed on the owning backend once its last reference is gone.
// Disposing an untracked or already-disposed tensor is a no-op.
func (e *Engine) DisposeTensor(info tensor.Info) {
	e.mu.Lock()
	d, ok := e.tensors[info.Data]
	if !ok {
		e.mu.Unlock()
		return
	}
	e.numTensors--
	if info.DType == tensor.String {
		e.numStringTensors--
	}
	d.refCount--
	var owner Backend
	if d.refCount <= 0 {
		delete(e.tensors, info.Data)
		delete(e.kept, info.Data)
		e.numBytes -= d.bytes
		owner = d.backend
	}
	e.mu.Unlock()

	if owner != nil {
		owner.DisposeData(info.Data)
	}
}

// Close disposes every instantiated backend and clears the engine.
// The engine must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	instances := make([]Backend, 0, len(e.registry))
	for _, entry := range e.registry {
		if entry.instance != nil {
			instances = append(instances, entry.instance)
			entry.instance = nil
		}
	}
	e.registry = make(map[string]*backendEntry)
	e.activeName = ""
	e.tensors = make(map[tensor.DataID]*dataEntry)
	e.kept = make(map[tensor.DataID]bool)
	e.scopes = nil
	e.numTensors = 0
	e.numBytes = 0
	e.numStringTensors = 0
	e.mu.Unlock()

	for _, inst := range instances {
		inst.Dispose()
	}
}
