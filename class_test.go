package glesutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

var counterTemplate = NewTemplate("Counter", KindImage).
	Constant("STEP", 2).
	Method("bump", func(c Call) goja.Value {
		cnt := c.Value().(*counter)
		cnt.n += 2
		return c.Runtime.vm.ToValue(cnt.n)
	}).
	Accessor("value", func(c Call) goja.Value {
		return c.Runtime.vm.ToValue(c.Value().(*counter).n)
	}, func(c Call) {
		c.Value().(*counter).n = int(c.Argument(0).ToInteger())
	})

func newClassRuntime(t *testing.T) *Runtime {
	t.Helper()
	r := NewRuntime(goja.New(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(r.Close)
	return r
}

func TestTemplateInstance(t *testing.T) {
	r := newClassRuntime(t)
	cnt := &counter{}
	released := 0
	obj := r.createWrapped(counterTemplate, cnt, func() { released++ })
	require.NoError(t, r.vm.Set("c", obj))

	v, err := r.vm.RunString(`c.bump(); c.bump()`)
	require.NoError(t, err)
	assert.EqualValues(t, 4, v.ToInteger())
	assert.Equal(t, 4, cnt.n)

	_, err = r.vm.RunString(`c.value = 10`)
	require.NoError(t, err)
	assert.Equal(t, 10, cnt.n)

	v, err = r.vm.RunString(`c.STEP`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.ToInteger())

	r.Close()
	assert.Equal(t, 1, released)
}

func TestTemplateSharedPrototype(t *testing.T) {
	r := newClassRuntime(t)
	a := r.createWrapped(counterTemplate, &counter{}, nil)
	b := r.createWrapped(counterTemplate, &counter{}, nil)
	require.Same(t, a.Prototype(), b.Prototype())
	require.Same(t, r.prototype(counterTemplate), a.Prototype())

	// a second Runtime builds its own
	other := newClassRuntime(t)
	require.NotSame(t, other.prototype(counterTemplate), a.Prototype())
}

func TestTemplateSlot(t *testing.T) {
	r := newClassRuntime(t)
	obj := r.createWrapped(counterTemplate, &counter{}, nil)

	_, slot, e, err := r.unwrap(obj, KindImage)
	require.NoError(t, err)
	assert.Equal(t, slot.id, e.id)
	assert.Same(t, obj, e.Owner())

	_, _, _, err = r.unwrap(obj, KindContext)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, _, _, err = r.unwrap(r.vm.NewObject(), KindImage)
	assert.ErrorIs(t, err, ErrNotWrapped)

	_, _, _, err = r.unwrap(goja.Undefined(), KindImage)
	assert.ErrorIs(t, err, ErrNotWrapped)

	require.True(t, r.store.Release(slot.id))
	_, _, _, err = r.unwrap(obj, KindImage)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestTemplateReceiverCheck(t *testing.T) {
	r := newClassRuntime(t)
	require.NoError(t, r.vm.Set("c", r.createWrapped(counterTemplate, &counter{}, nil)))

	_, err := r.vm.RunString(`c.bump.call({})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TypeError: Counter.bump: "+ErrNotWrapped.Error())

	_, err = r.vm.RunString(`Object.create(c).bump()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Counter.bump")
}
