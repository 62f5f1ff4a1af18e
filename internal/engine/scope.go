package engine

import (
	"k8s.io/klog/v2"

	"github.com/fornax-ml/fornax/internal/tensor"
)

// scopeFrame owns the tensors allocated during its dynamic extent.
type scopeFrame struct {
	name    string
	tracked []tensor.Info
}

// StartScope pushes a scope frame. Tensors created while the frame is
// on top of the stack belong to it and are disposed by the matching
// EndScope unless kept or returned as results.
func (e *Engine) StartScope(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scopes = append(e.scopes, &scopeFrame{name: name})
}

// EndScope pops the current frame and disposes every tensor it tracks
// that is neither marked by Keep nor listed in results. Survivors are
// re-parented to the enclosing frame, deferring their disposal; with
// no enclosing frame they live until explicitly disposed.
func (e *Engine) EndScope(results ...tensor.Info) {
	e.mu.Lock()
	if len(e.scopes) == 0 {
		e.mu.Unlock()
		klog.Warningf("EndScope called with no open scope")
		return
	}
	frame := e.scopes[len(e.scopes)-1]
	e.scopes = e.scopes[:len(e.scopes)-1]

	resultIDs := make(map[tensor.DataID]bool, len(results))
	for _, r := range results {
		resultIDs[r.Data] = true
	}

	var parent *scopeFrame
	if len(e.scopes) > 0 {
		parent = e.scopes[len(e.scopes)-1]
	}

	var toDispose []tensor.Info
	for _, info := range frame.tracked {
		if e.kept[info.Data] || resultIDs[info.Data] {
			if parent != nil {
				parent.tracked = append(parent.tracked, info)
			}
			continue
		}
		toDispose = append(toDispose, info)
	}
	e.mu.Unlock()

	for _, info := range toDispose {
		e.DisposeTensor(info)
	}
}

// Keep exempts a tensor from automatic scope disposal. Tensors are
// identified by their buffer handle, so keeping one tensor keeps every
// tensor aliasing the same buffer.
func (e *Engine) Keep(info tensor.Info) tensor.Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kept[info.Data] = true
	return info
}

// Tidy runs fn inside a fresh scope and disposes every tensor fn
// allocated except the ones it returns. Nested calls compose: results
// of an inner Tidy are re-parented to the enclosing scope.
func (e *Engine) Tidy(name string, fn func() []tensor.Info) []tensor.Info {
	e.StartScope(name)
	results := fn()
	e.EndScope(results...)
	return results
}

// NumScopes reports the current scope stack depth.
func (e *Engine) NumScopes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.scopes)
}
