package engine

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/fornax-ml/fornax/internal/tensor"
)

// Backend is the device-side contract the engine dispatches against.
// A backend owns the data buffers it allocates; the engine owns the
// association between tensors and buffers and decides when a buffer
// may be released.
type Backend interface {
	// Write allocates a buffer holding the given flat values and
	// returns its handle. Values must be the storage slice matching
	// the dtype ([]float32, []float64, []int32, ...).
	Write(values any, shape tensor.Shape, dtype tensor.DataType) tensor.DataID

	// ReadSync returns the flat storage slice backing the buffer.
	ReadSync(id tensor.DataID) any

	// NumDataIDs reports how many buffers the backend currently
	// holds. The engine compares this before and after kernel
	// execution to detect leaks.
	NumDataIDs() int

	// DisposeData releases one buffer. Unknown ids are ignored.
	DisposeData(id tensor.DataID)

	// Dispose releases every resource held by the backend. The
	// backend is invalid afterwards.
	Dispose()
}

// Factory creates a backend instance. Synchronous factories are
// invoked inline; asynchronous ones (see RegisterAsyncBackend) run in
// their own goroutine with this context.
type Factory func(ctx context.Context) (Backend, error)

type resolveState int

const (
	stateUnresolved resolveState = iota
	stateResolving
	stateReady
	stateFailed
)

// backendEntry is one row of the registry. Entries move through
// unresolved -> resolving -> ready|failed; a failed entry stays failed
// for the resolution pass that tried it and is skipped by priority
// scans until explicitly re-selected.
type backendEntry struct {
	name     string
	factory  Factory
	async    bool
	priority int
	seq      int // registration order, breaks priority ties

	state    resolveState
	instance Backend
	err      error
	done     chan struct{} // closed when a resolution settles
}

// RegisterBackend registers a synchronous backend factory under the
// given name. Higher priority backends are preferred by implicit
// resolution; equal priorities resolve in registration order.
//
// Returns false without touching the registry if the name is already
// bound to a successfully instantiated backend. A previous
// registration that never instantiated (or failed) is overwritten.
func (e *Engine) RegisterBackend(name string, factory Factory, priority int) bool {
	return e.register(name, factory, false, priority)
}

// RegisterAsyncBackend registers a factory that performs asynchronous
// setup. The factory is run in a goroutine once the backend is
// selected; until it settles, synchronous accessors fail fast rather
// than silently falling back to a lower-priority backend. Use Ready to
// await the outcome.
func (e *Engine) RegisterAsyncBackend(name string, factory Factory, priority int) bool {
	return e.register(name, factory, true, priority)
}

func (e *Engine) register(name string, factory Factory, async bool, priority int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.registry[name]; ok && old.state == stateReady {
		klog.Warningf("Backend '%s' is already registered and initialized; ignoring re-registration", name)
		return false
	}
	e.regSeq++
	e.registry[name] = &backendEntry{
		name:     name,
		factory:  factory,
		async:    async,
		priority: priority,
		seq:      e.regSeq,
	}
	return true
}

// RemoveBackend deletes the registration for name. An instantiated
// backend is disposed exactly once. If name was the active backend the
// active slot is cleared, forcing re-resolution on next use. Removing
// a name that was never registered is an error.
func (e *Engine) RemoveBackend(name string) error {
	e.mu.Lock()
	entry, ok := e.registry[name]
	if !ok {
		e.mu.Unlock()
		return errors.Errorf("cannot remove backend '%s': it is not registered", name)
	}
	delete(e.registry, name)
	if e.activeName == name {
		e.activeName = ""
	}
	inst := entry.instance
	entry.instance = nil
	e.mu.Unlock()

	if inst != nil {
		inst.Dispose()
	}
	return nil
}

// FindBackendFactory returns the most recently registered factory for
// name, or nil if the name is absent.
func (e *Engine) FindBackendFactory(name string) Factory {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.registry[name]
	if !ok {
		return nil
	}
	return entry.factory
}

// FindBackend returns the instantiated backend registered under name.
// A synchronous factory is instantiated lazily on first lookup. For an
// asynchronous factory that has not settled yet FindBackend returns
// nil instead of blocking.
func (e *Engine) FindBackend(name string) Backend {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.registry[name]
	if !ok {
		return nil
	}
	if entry.state == stateUnresolved && !entry.async {
		e.instantiateSyncLocked(entry)
		// The lock was released during instantiation; the entry may
		// have been removed or replaced meanwhile.
		if e.registry[name] != entry {
			return nil
		}
	}
	if entry.state == stateReady {
		return entry.instance
	}
	return nil
}

// sortedCandidatesLocked returns the registered entries that are still
// usable for resolution (everything not marked failed), ordered by
// descending priority with ties broken by registration order.
func (e *Engine) sortedCandidatesLocked() []*backendEntry {
	candidates := make([]*backendEntry, 0, len(e.registry))
	for _, entry := range e.registry {
		if entry.state == stateFailed {
			continue
		}
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].seq < candidates[j].seq
	})
	return candidates
}
