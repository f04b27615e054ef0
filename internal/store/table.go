package store

import (
	"reflect"
	"slices"

	"livemap/internal/geo"
	"livemap/internal/render"
	"livemap/internal/selection"
)

// Entry is a stored record together with its visual state. Record is
// replaced wholesale; the other fields are owned by the engine and the
// lifecycle controller.
type Entry[V any] struct {
	Record V
	Extent geo.Bounds

	Handle         render.Handle
	Shown          bool
	Indicator      render.Handle
	IndicatorShown bool

	SuspendedAnimation render.Animation
	AnimationDisabled  bool
	Hidden             bool
	Selection          selection.State
	ScoutError         string
}

// Table is the store for one category. Each table has its own key space.
type Table[K comparable, V any] struct {
	name    string
	surface render.Surface
	compare func(a, b K) int
	equal   func(a, b V) bool
	entries map[K]*Entry[V]

	mutations int
}

func NewTable[K comparable, V any](name string, surface render.Surface, compare func(a, b K) int) *Table[K, V] {
	return &Table[K, V]{
		name:    name,
		surface: surface,
		compare: compare,
		equal:   func(a, b V) bool { return reflect.DeepEqual(a, b) },
		entries: make(map[K]*Entry[V]),
	}
}

func (t *Table[K, V]) Name() string {
	return t.name
}

func (t *Table[K, V]) Get(key K) (*Entry[V], bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Upsert stores rec under key. An existing entry keeps its handle and
// visual state; a new entry starts without a handle. changed is false when
// the stored record was already equal to rec.
func (t *Table[K, V]) Upsert(key K, rec V, extent geo.Bounds) (e *Entry[V], changed bool) {
	e, ok := t.entries[key]
	if !ok {
		e = &Entry[V]{Record: rec, Extent: extent}
		t.entries[key] = e
		t.mutations++
		return e, true
	}

	if t.equal(e.Record, rec) && e.Extent == extent {
		return e, false
	}
	e.Record = rec
	e.Extent = extent
	t.mutations++
	return e, true
}

// Replace stores rec under key with a new visual handle. The previous
// handle and radius indicator are released first.
func (t *Table[K, V]) Replace(key K, rec V, extent geo.Bounds, h render.Handle) *Entry[V] {
	e, ok := t.entries[key]
	if !ok {
		e = &Entry[V]{}
		t.entries[key] = e
	} else {
		t.release(e)
	}

	e.Record = rec
	e.Extent = extent
	e.Handle = h
	e.Shown = false
	t.mutations++
	return e
}

// Remove releases the entry's visuals and deletes it. Removing an absent
// key is a no-op.
func (t *Table[K, V]) Remove(key K) bool {
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	t.release(e)
	delete(t.entries, key)
	t.mutations++
	return true
}

// Clear removes every entry.
func (t *Table[K, V]) Clear() int {
	n := 0
	for _, key := range t.Keys() {
		if t.Remove(key) {
			n++
		}
	}
	return n
}

func (t *Table[K, V]) release(e *Entry[V]) {
	if e.Indicator != 0 {
		t.surface.Release(e.Indicator)
		e.Indicator = 0
		e.IndicatorShown = false
	}
	if e.Handle != 0 {
		t.surface.Release(e.Handle)
		e.Handle = 0
	}
	e.Shown = false
}

// Keys returns the keys in ascending order.
func (t *Table[K, V]) Keys() []K {
	keys := make([]K, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, t.compare)
	return keys
}

// ForEach visits entries in key order. fn may remove the visited key.
func (t *Table[K, V]) ForEach(fn func(key K, e *Entry[V])) {
	for _, k := range t.Keys() {
		if e, ok := t.entries[k]; ok {
			fn(k, e)
		}
	}
}

func (t *Table[K, V]) Len() int {
	return len(t.entries)
}

// Mutations is the running count of record inserts, changes and removals.
func (t *Table[K, V]) Mutations() int {
	return t.mutations
}
