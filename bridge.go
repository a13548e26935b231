package glesutil

import (
	"errors"
	"fmt"

	"github.com/buke/glesutil-go/native"
	"github.com/dop251/goja"
)

// EventKind is one of the native events a context can forward to scripts.
type EventKind uint8

const (
	EventDraw EventKind = iota
	EventUpdate
	EventKey

	eventKinds = 3
)

var eventProperties = [eventKinds]string{"drawFunc", "updateFunc", "keyFunc"}

// Property returns the script property holding the handler.
func (k EventKind) Property() string {
	if int(k) < len(eventProperties) {
		return eventProperties[k]
	}
	return fmt.Sprintf("event(%d)", k)
}

func (k EventKind) String() string {
	switch k {
	case EventDraw:
		return "draw"
	case EventUpdate:
		return "update"
	case EventKey:
		return "key"
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

// errNotCallable is the dispatch failure of a stored non-function handler.
var errNotCallable = errors.New("handler is not callable")

// =============================================================================
// REGISTRATION
// =============================================================================

// isNone reports whether v stands for "no handler".
func isNone(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// setHandler stores v as the handler of kind and rewires the native
// callback: the trampoline when a handler is stored, nil when none is.
func (r *Runtime) setHandler(c Call, kind EventKind, v goja.Value) {
	if isNone(v) {
		v = nil
	} else if _, ok := goja.AssertFunction(v); !ok && r.policy == ArgumentsStrict {
		r.throwError(&ArgumentError{Kind: WrongArgumentType, Func: "register" + kind.title() + "Func", Index: 0, Want: "function"})
	}
	c.slot.handlers[kind] = v

	nc := c.Value().(*wrappedContext).native
	id := c.slot.id
	switch kind {
	case EventDraw:
		if v == nil {
			nc.RegisterDrawFunc(nil)
		} else {
			nc.RegisterDrawFunc(r.drawTrampoline(id))
		}
	case EventUpdate:
		if v == nil {
			nc.RegisterUpdateFunc(nil)
		} else {
			nc.RegisterUpdateFunc(r.updateTrampoline(id))
		}
	case EventKey:
		if v == nil {
			nc.RegisterKeyFunc(nil)
		} else {
			nc.RegisterKeyFunc(r.keyTrampoline(id))
		}
	}
}

func (k EventKind) title() string {
	switch k {
	case EventDraw:
		return "Draw"
	case EventUpdate:
		return "Update"
	}
	return "Key"
}

// registerFunc implements registerDrawFunc and friends.
func registerFunc(kind EventKind) MethodFunc {
	return func(c Call) goja.Value {
		c.Runtime.setHandler(c, kind, c.Argument(0))
		return goja.Undefined()
	}
}

func handlerGetter(kind EventKind) GetterFunc {
	return func(c Call) goja.Value {
		if h := c.slot.handlers[kind]; h != nil {
			return h
		}
		return goja.Undefined()
	}
}

func handlerSetter(kind EventKind) SetterFunc {
	return func(c Call) {
		c.Runtime.setHandler(c, kind, c.Argument(0))
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

// The trampolines capture only the Runtime and the handle id: a native
// context holding them does not keep its script object alive.

func (r *Runtime) drawTrampoline(id int32) native.DrawFunc {
	return func() bool {
		return r.dispatch(EventDraw, id, nil)
	}
}

func (r *Runtime) updateTrampoline(id int32) native.UpdateFunc {
	return func(deltaTime float32) bool {
		return r.dispatch(EventUpdate, id, func() []goja.Value {
			return []goja.Value{r.vm.ToValue(float64(deltaTime))}
		})
	}
}

func (r *Runtime) keyTrampoline(id int32) native.KeyFunc {
	return func(key byte, x, y int) bool {
		return r.dispatch(EventKey, id, func() []goja.Value {
			return []goja.Value{keyValue(r.vm, key), r.vm.ToValue(x), r.vm.ToValue(y)}
		})
	}
}

// dispatch invokes the handler of kind on the context behind id as
// handler(ctx, args...) with this bound to ctx. It reports whether the
// event was handled; failures are logged and never propagate to the caller.
func (r *Runtime) dispatch(kind EventKind, id int32, args func() []goja.Value) bool {
	r.ReleasePending()

	e, ok := r.store.Load(id)
	if !ok {
		return false
	}
	obj := e.Owner()
	if obj == nil {
		return false
	}
	_, slot, _, err := r.unwrap(obj, KindContext)
	if err != nil {
		return false
	}
	h := slot.handlers[kind]
	if h == nil {
		return false
	}
	fn, ok := goja.AssertFunction(h)
	if !ok {
		r.dispatchFailed(kind, id, errNotCallable)
		return false
	}

	callArgs := []goja.Value{obj}
	if args != nil {
		callArgs = append(callArgs, args()...)
	}
	if _, err := fn(obj, callArgs...); err != nil {
		r.dispatchFailed(kind, id, scriptError(err))
		return false
	}
	return true
}

func (r *Runtime) dispatchFailed(kind EventKind, id int32, err error) {
	derr := &DispatchError{Event: kind, Context: id, Err: err}
	r.stats.dispatch.Add(1)
	r.logger.Warn("glesutil: event handler failed", "event", kind, "context", id, "err", err)
	if r.onDispatch != nil {
		r.onDispatch(derr)
	}
}
