package glesutil

import (
	"fmt"
	"runtime"

	"github.com/dop251/goja"
)

// =============================================================================
// OBJECT TEMPLATE TYPES
// =============================================================================

// Call is what a template method or accessor sees: the script call plus the
// checked native record of its receiver.
type Call struct {
	goja.FunctionCall
	Runtime *Runtime
	Object  *goja.Object // the receiver, always a live instance of the template
	slot    *instanceSlot
	entry   *handleEntry
}

// Value returns the native record of the receiver.
func (c Call) Value() interface{} { return c.entry.value }

// MethodFunc implements a template method.
type MethodFunc func(c Call) goja.Value

// GetterFunc implements an accessor getter.
type GetterFunc func(c Call) goja.Value

// SetterFunc implements an accessor setter; the new value is c.Argument(0).
type SetterFunc func(c Call)

type methodEntry struct {
	name string
	fn   MethodFunc
}

type accessorEntry struct {
	name   string
	getter GetterFunc
	setter SetterFunc
}

type constantEntry struct {
	name  string
	value uint32
}

// instanceSlot is the internal slot of a wrapped object. It is reachable only
// from the object itself, so anything stored here dies with the object.
type instanceSlot struct {
	id       int32
	kind     Kind
	handlers [eventKinds]goja.Value
}

// =============================================================================
// TEMPLATE BUILDER - FLUENT API FOR WRAPPED OBJECT SHAPES
// =============================================================================

// Template describes the script shape of one kind of wrapped native record:
// read-only constants, methods and accessors shared by every instance through
// a prototype, and one internal slot per instance.
type Template struct {
	name      string
	kind      Kind
	constants []constantEntry
	methods   []methodEntry
	accessors []accessorEntry
}

// NewTemplate creates an empty template for records of kind.
func NewTemplate(name string, kind Kind) *Template {
	return &Template{name: name, kind: kind}
}

// Constant adds a read-only integer property.
func (t *Template) Constant(name string, value uint32) *Template {
	t.constants = append(t.constants, constantEntry{name: name, value: value})
	return t
}

// Method adds a method.
func (t *Template) Method(name string, fn MethodFunc) *Template {
	t.methods = append(t.methods, methodEntry{name: name, fn: fn})
	return t
}

// Accessor adds an accessor property. A nil setter makes it read-only.
func (t *Template) Accessor(name string, getter GetterFunc, setter SetterFunc) *Template {
	t.accessors = append(t.accessors, accessorEntry{name: name, getter: getter, setter: setter})
	return t
}

// Name returns the template name used in error messages.
func (t *Template) Name() string { return t.name }

// =============================================================================
// INSTANTIATION
// =============================================================================

// prototype returns the prototype shared by all instances of t in r,
// building it on first use.
func (r *Runtime) prototype(t *Template) *goja.Object {
	if proto, ok := r.protos[t]; ok {
		return proto
	}
	vm := r.vm
	proto := vm.NewObject()

	for _, c := range t.constants {
		if err := proto.DefineDataProperty(c.name, vm.ToValue(c.value), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			panic(err)
		}
	}
	for _, m := range t.methods {
		m := m
		fn := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return m.fn(r.receiver(t, m.name, call))
		})
		if err := proto.Set(m.name, fn); err != nil {
			panic(err)
		}
	}
	for _, a := range t.accessors {
		a := a
		var getter, setter goja.Value
		if a.getter != nil {
			getter = vm.ToValue(func(call goja.FunctionCall) goja.Value {
				return a.getter(r.receiver(t, a.name, call))
			})
		}
		if a.setter != nil {
			setter = vm.ToValue(func(call goja.FunctionCall) goja.Value {
				a.setter(r.receiver(t, a.name, call))
				return goja.Undefined()
			})
		}
		if err := proto.DefineAccessorProperty(a.name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			panic(err)
		}
	}

	r.protos[t] = proto
	return proto
}

// createWrapped builds a new instance of t whose slot refers to value.
// release runs once, on the engine goroutine, after the instance has become
// unreachable (or at Runtime.Close).
func (r *Runtime) createWrapped(t *Template, value interface{}, release func()) *goja.Object {
	obj := r.vm.NewObject()
	if err := obj.SetPrototype(r.prototype(t)); err != nil {
		panic(err)
	}

	id := r.track(t.kind, value, obj, release)
	slot := &instanceSlot{id: id, kind: t.kind}
	if err := obj.DefineDataPropertySymbol(r.slot, r.vm.ToValue(slot), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		r.store.Release(id)
		panic(err)
	}
	return obj
}

// track stores value and arranges for its release once obj is collected.
// The cleanup only knows the id, it cannot keep obj alive and it never runs
// script code: it hands the release to the engine goroutine.
func (r *Runtime) track(kind Kind, value interface{}, obj *goja.Object, release func()) int32 {
	stats := r.stats
	logger := r.logger
	var id int32
	id = r.store.Store(kind, value, obj, func() {
		if release != nil {
			release()
		}
		stats.released(kind)
		logger.Debug("glesutil: released native object", "kind", kind, "id", id)
	})
	stats.created(kind)
	logger.Debug("glesutil: wrapped native object", "kind", kind, "id", id)

	loop, store := r.loop, r.store
	runtime.AddCleanup(obj, func(id int32) {
		_ = loop.ScheduleJob(func() { store.Release(id) })
	}, id)
	return id
}

// unwrap returns the slot and entry of v if it is a live instance of kind.
func (r *Runtime) unwrap(v goja.Value, kind Kind) (*goja.Object, *instanceSlot, *handleEntry, error) {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return nil, nil, nil, ErrNotWrapped
	}
	sv := obj.GetSymbol(r.slot)
	if sv == nil {
		return nil, nil, nil, ErrNotWrapped
	}
	slot, ok := sv.Export().(*instanceSlot)
	if !ok {
		return nil, nil, nil, ErrNotWrapped
	}
	if slot.kind != kind {
		return nil, nil, nil, fmt.Errorf("%w: have %s, want %s", ErrWrongKind, slot.kind, kind)
	}
	e, ok := r.store.Load(slot.id)
	if !ok {
		return nil, nil, nil, ErrReleased
	}
	// the slot is inherited by objects created from a wrapped prototype
	if e.kind != kind || e.Owner() != obj {
		return nil, nil, nil, ErrNotWrapped
	}
	return obj, slot, e, nil
}

// receiver checks the receiver of a template call and throws a TypeError
// for anything but a live instance.
func (r *Runtime) receiver(t *Template, name string, call goja.FunctionCall) Call {
	r.ReleasePending()
	obj, slot, e, err := r.unwrap(call.This, t.kind)
	if err != nil {
		panic(r.vm.NewTypeError(fmt.Sprintf("%s.%s: %v", t.name, name, err)))
	}
	return Call{FunctionCall: call, Runtime: r, Object: obj, slot: slot, entry: e}
}

// Unwrap returns the native record behind a wrapped object created by r.
func (r *Runtime) Unwrap(v goja.Value, kind Kind) (interface{}, error) {
	if kind == KindImage {
		img, err := r.unwrapImage(v)
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	_, _, e, err := r.unwrap(v, kind)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}
