package glesutil

import (
	"sync"
	"sync/atomic"
	"weak"

	"github.com/dop251/goja"
)

// Kind tags what a handle refers to so that unwrapping is checked.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindContext
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindContext:
		return "Context"
	case KindImage:
		return "Image"
	}
	return "Invalid"
}

// handleEntry is the native side of one wrapped script object.
//
// It must never hold a strong reference to a script value: the store is
// reachable from the Runtime, so anything it references stays alive.
type handleEntry struct {
	id      int32
	kind    Kind
	value   interface{}
	owner   weak.Pointer[goja.Object]
	release func()
}

// Owner returns the script object wrapping the entry, or nil once it has
// been collected.
func (e *handleEntry) Owner() *goja.Object {
	return e.owner.Value()
}

// HandleStore maps handle ids to native records for one Runtime.
type HandleStore struct {
	handles sync.Map     // map[int32]*handleEntry
	nextID  atomic.Int32 // 0 is reserved as invalid
	count   atomic.Int64
}

func newHandleStore() *HandleStore {
	return &HandleStore{}
}

// Store records value under a new id. release is called exactly once when
// the id is released.
func (hs *HandleStore) Store(kind Kind, value interface{}, owner *goja.Object, release func()) int32 {
	id := hs.nextID.Add(1)

	// ids travel through script numbers, keep them positive int32
	if id <= 0 {
		panic("glesutil: HandleStore ID overflow, too many native objects wrapped")
	}

	e := &handleEntry{id: id, kind: kind, value: value, release: release}
	if owner != nil {
		e.owner = weak.Make(owner)
	}
	hs.handles.Store(id, e)
	hs.count.Add(1)
	return id
}

// Load returns the live entry for id.
func (hs *HandleStore) Load(id int32) (*handleEntry, bool) {
	if v, ok := hs.handles.Load(id); ok {
		return v.(*handleEntry), true
	}
	return nil, false
}

// Release removes id and runs its release function. Only the first call for
// an id does anything.
func (hs *HandleStore) Release(id int32) bool {
	v, ok := hs.handles.LoadAndDelete(id)
	if !ok {
		return false
	}
	hs.count.Add(-1)
	if e := v.(*handleEntry); e.release != nil {
		e.release()
	}
	return true
}

// Clear releases every remaining entry and returns how many there were.
func (hs *HandleStore) Clear() int {
	n := 0
	hs.handles.Range(func(key, _ interface{}) bool {
		if hs.Release(key.(int32)) {
			n++
		}
		return true
	})
	return n
}

// Count returns number of live entries.
func (hs *HandleStore) Count() int {
	return int(hs.count.Load())
}

// CountKind returns the number of live entries of kind k.
func (hs *HandleStore) CountKind(k Kind) int {
	n := 0
	hs.handles.Range(func(_, v interface{}) bool {
		if v.(*handleEntry).kind == k {
			n++
		}
		return true
	})
	return n
}
