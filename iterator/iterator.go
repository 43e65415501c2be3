// Package iterator defines the restartable cursor contract used by the join operators.
package iterator

import (
	"github.com/Frederickfan/Database-management-system/common"
)

// Iterator is a pull cursor. HasNext is a pure query; Next returns and consumes the next element, or
// common.ErrNoSuchElement if there is none.
type Iterator[T any] interface {
	HasNext() bool
	Next() (T, error)
}

// Backtracking is an Iterator that can replay a bounded window of elements.
//
// Mark remembers the element most recently returned by Next, so that after Reset the next call to Next returns
// that element again. Calling Mark before any Next marks the start of the cursor. A cursor holds at most one
// mark; marking again replaces it. Reset without a prior Mark rewinds to the start.
type Backtracking[T any] interface {
	Iterator[T]
	Mark()
	Reset()
}

// Window is a Backtracking cursor over an in-memory slice.
type Window[T any] struct {
	items []T
	pos   int // index of the next element Next returns
	last  int // index of the element most recently returned, valid if returned
	mark  int

	returned bool
}

// NewWindow creates a cursor over items. The slice is not copied and must not be modified afterwards.
func NewWindow[T any](items []T) *Window[T] {
	return &Window[T]{items: items}
}

// Empty returns a cursor with nothing in it.
func Empty[T any]() *Window[T] {
	return &Window[T]{}
}

func (w *Window[T]) HasNext() bool {
	return w.pos < len(w.items)
}

func (w *Window[T]) Next() (T, error) {
	if w.pos >= len(w.items) {
		var zero T
		return zero, common.ErrNoSuchElement
	}
	item := w.items[w.pos]
	w.last, w.returned = w.pos, true
	w.pos++
	return item, nil
}

func (w *Window[T]) Mark() {
	if !w.returned {
		w.mark = 0
		return
	}
	w.mark = w.last
}

// Reset rewinds to the mark. Marking again before the next call to Next keeps the same mark.
func (w *Window[T]) Reset() {
	w.pos = w.mark
	w.last, w.returned = w.mark, true
}

// Len returns the number of elements in the window, consumed or not.
func (w *Window[T]) Len() int {
	return len(w.items)
}
