package qbind

import (
	"fmt"
	"slices"
)

// List is a ready-made model holding a slice of T. Every mutation is
// announced to the bus, so a List can be the source of bindings, cursors
// and views without further code.
//
//	people := &qbind.List[*Person]{}
//	engine.InitObject(people)
//	people.Append(&Person{Name: "Robin"})
type List[T any] struct {
	Model
	items []T
}

// NewList returns a List holding items, initialized on e.
func NewList[T any](e *Engine, items ...T) *List[T] {
	l := &List[T]{items: append([]T(nil), items...)}
	e.InitObject(l)
	return l
}

func (l *List[T]) Row(row int) interface{} {
	return l.items[row]
}

func (l *List[T]) RowCount() int {
	return len(l.items)
}

// SetRow implements RowSetter.
func (l *List[T]) SetRow(row int, value interface{}) error {
	v, ok := value.(T)
	if !ok && value != nil {
		var zero T
		return &ConversionError{Property: fmt.Sprintf("[%d]", row), Want: fmt.Sprintf("%T", zero), Got: fmt.Sprintf("%T", value)}
	}
	if row < 0 || row >= len(l.items) {
		return &OutOfRangeError{Index: row, Length: len(l.items)}
	}
	l.Set(row, v)
	return nil
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	return len(l.items)
}

// At returns the item at i.
func (l *List[T]) At(i int) T {
	return l.items[i]
}

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	return slices.Clone(l.items)
}

// Append adds items to the end.
func (l *List[T]) Append(items ...T) {
	l.Insert(len(l.items), items...)
}

// Insert adds items at index i.
func (l *List[T]) Insert(i int, items ...T) {
	if len(items) == 0 {
		return
	}
	l.items = slices.Insert(l.items, i, items...)
	l.Inserted(i, len(items))
	l.changed("Count")
}

// RemoveAt removes count items starting at i.
func (l *List[T]) RemoveAt(i, count int) {
	if count < 1 {
		return
	}
	l.items = slices.Delete(l.items, i, i+count)
	l.Removed(i, count)
	l.changed("Count")
}

// Set replaces the item at i.
func (l *List[T]) Set(i int, item T) {
	l.items[i] = item
	l.Updated(i)
}

// Move moves the item at from so that it ends up at index to.
func (l *List[T]) Move(from, to int) {
	if from == to {
		return
	}
	item := l.items[from]
	l.items = slices.Delete(l.items, from, from+1)
	l.items = slices.Insert(l.items, to, item)
	// Destination is expressed in positions before the move
	dest := to
	if to > from {
		dest = to + 1
	}
	l.Moved(from, 1, dest)
}

// ReplaceAll swaps in a new set of items. Observers receive a single Reset.
func (l *List[T]) ReplaceAll(items []T) {
	l.items = append([]T(nil), items...)
	l.Reset()
	l.changed("Count")
}

// InsertSorted inserts items into an already sorted list, keeping it
// sorted by less.
func (l *List[T]) InsertSorted(less func(a, b T) bool, items ...T) {
	start := len(l.items)
	l.items = append(l.items, items...)
	SortModelInserted(&listSorter[T]{list: l, less: less}, start, len(l.items))
	l.changed("Count")
}

// Property exposes Count to paths; the items themselves are reached by
// index.
func (l *List[T]) Property(name string) (interface{}, bool) {
	if lowerFirst(name) == "count" {
		return len(l.items), true
	}
	return nil, false
}

// listSorter adapts a List to SortableModel.
type listSorter[T any] struct {
	list *List[T]
	less func(a, b T) bool
}

func (s *listSorter[T]) Row(row int) interface{} { return s.list.items[row] }
func (s *listSorter[T]) RowCount() int           { return len(s.list.items) }
func (s *listSorter[T]) Inserted(start, count int) {
	s.list.Inserted(start, count)
}

func (s *listSorter[T]) RowLess(i, j int) bool {
	return s.less(s.list.items[i], s.list.items[j])
}

func (s *listSorter[T]) RowMove(src, dst int) {
	item := s.list.items[src]
	s.list.items = slices.Delete(s.list.items, src, src+1)
	s.list.items = slices.Insert(s.list.items, dst, item)
}
