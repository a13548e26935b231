package glesutil

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStore_Basic(t *testing.T) {
	hs := newHandleStore()
	require.NotNil(t, hs)
	assert.Equal(t, 0, hs.Count())

	released := 0
	id := hs.Store(KindContext, "native record", nil, func() { released++ })
	assert.Greater(t, id, int32(0))
	assert.Equal(t, 1, hs.Count())

	e, ok := hs.Load(id)
	require.True(t, ok)
	assert.Equal(t, "native record", e.value)
	assert.Equal(t, KindContext, e.kind)
	assert.Nil(t, e.Owner())

	assert.True(t, hs.Release(id))
	assert.Equal(t, 1, released)
	assert.Equal(t, 0, hs.Count())

	// second release is a no-op
	assert.False(t, hs.Release(id))
	assert.Equal(t, 1, released)

	_, ok = hs.Load(id)
	assert.False(t, ok)
}

func TestHandleStore_IDs(t *testing.T) {
	hs := newHandleStore()

	var ids []int32
	for i := 0; i < 5; i++ {
		ids = append(ids, hs.Store(KindImage, i, nil, nil))
	}
	assert.Equal(t, int32(1), ids[0], "0 is reserved")
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
	assert.False(t, hs.Release(0))
	assert.False(t, hs.Release(-1))
	assert.True(t, hs.Release(ids[2]))
	assert.Equal(t, 4, hs.Count())

	// ids are not reused
	assert.Greater(t, hs.Store(KindImage, 5, nil, nil), ids[4])
}

func TestHandleStore_Overflow(t *testing.T) {
	hs := newHandleStore()
	hs.nextID.Store(math.MaxInt32 - 1)
	require.EqualValues(t, math.MaxInt32, hs.Store(KindContext, nil, nil, nil))
	require.Panics(t, func() { hs.Store(KindContext, nil, nil, nil) })
}

func TestHandleStore_WeakOwner(t *testing.T) {
	hs := newHandleStore()
	vm := goja.New()
	obj := vm.NewObject()

	id := hs.Store(KindContext, nil, obj, nil)
	e, ok := hs.Load(id)
	require.True(t, ok)
	require.Same(t, obj, e.Owner())
}

func TestHandleStore_ClearAndCountKind(t *testing.T) {
	hs := newHandleStore()
	var released atomic.Int32
	for i := 0; i < 3; i++ {
		hs.Store(KindContext, i, nil, func() { released.Add(1) })
	}
	hs.Store(KindImage, "img", nil, func() { released.Add(1) })

	assert.Equal(t, 3, hs.CountKind(KindContext))
	assert.Equal(t, 1, hs.CountKind(KindImage))
	assert.Equal(t, 0, hs.CountKind(KindInvalid))

	assert.Equal(t, 4, hs.Clear())
	assert.EqualValues(t, 4, released.Load())
	assert.Equal(t, 0, hs.Count())
	assert.Equal(t, 0, hs.Clear())
}

func TestHandleStore_ConcurrentRelease(t *testing.T) {
	hs := newHandleStore()
	var released atomic.Int32
	id := hs.Store(KindContext, nil, nil, func() { released.Add(1) })

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hs.Release(id) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 1, released.Load())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Context", KindContext.String())
	assert.Equal(t, "Image", KindImage.String())
	assert.Equal(t, "Invalid", KindInvalid.String())
	assert.Equal(t, "Invalid", Kind(42).String())
}
