package qbind

import "reflect"

// Model is embedded in another type instead of Object to create an
// observable collection.
//
// To be a model, a type must embed Model and must implement the
// ModelDataSource interface. No other special initialization is
// necessary.
//
// When data changes, you must call Model's methods to notify bindings,
// cursors and views of the change. Calls on a model no binding has seen
// yet, and which was not passed to InitObject, are no-ops.
type Model struct {
	Object
}

// Types embedding Model must implement ModelDataSource to provide data.
// Paths index into a ModelDataSource with Row.
type ModelDataSource interface {
	Row(row int) interface{}
	RowCount() int
}

// Types embedding Model _may_ implement ModelDataSourceRows to provide a
// list of all rows more efficiently.
type ModelDataSourceRows interface {
	ModelDataSource
	Rows() []interface{}
}

// A ModelDataSource implementing RowSetter accepts writebacks through an
// indexed path step, e.g. a two-way binding on "Items[2]".
type RowSetter interface {
	SetRow(row int, value interface{}) error
}

var modelDataSourceType = reflect.TypeOf((*ModelDataSource)(nil)).Elem()

func (m *Model) impl() *objectImpl {
	// The Object interface is embedded in Model, so it can be accessed from
	// here, but Model is embedded in the app's model type as well, and that
	// is the type that is initialized for the Object. Its object field
	// points back to the app's type, which is usually not available from
	// embedded types.
	impl, _ := m.Object.(*objectImpl)
	if impl == nil || impl.engine == nil {
		return nil
	}
	return impl
}

func (m *Model) emit(change CollectionChange) {
	impl := m.impl()
	if impl == nil {
		// No-op for uninitialized objects
		return
	}
	impl.engine.bus.NotifyCollection(impl.object, change)
}

// changed is Changed that tolerates an uninitialized model.
func (m *Model) changed(property string) {
	if impl := m.impl(); impl != nil {
		impl.Changed(property)
	}
}

// Reset announces that the whole collection may have changed.
func (m *Model) Reset() {
	m.emit(CollectionChange{Kind: Reset})
}

// Inserted announces count rows inserted at start.
func (m *Model) Inserted(start, count int) {
	if count < 1 {
		return
	}
	m.emit(CollectionChange{Kind: Insert, Index: start, Count: count})
}

// Removed announces count rows removed starting at start.
func (m *Model) Removed(start, count int) {
	if count < 1 {
		return
	}
	m.emit(CollectionChange{Kind: Remove, Index: start, Count: count})
}

// Moved announces count rows starting at start moved to destination,
// where destination is a position in the collection before the move.
func (m *Model) Moved(start, count, destination int) {
	if count < 1 || destination == start {
		return
	}
	m.emit(CollectionChange{Kind: Move, Index: start, Count: count, Destination: destination})
}

// Updated announces a new value for row.
func (m *Model) Updated(row int) {
	m.emit(CollectionChange{Kind: Replace, Index: row, Count: 1})
}

// getRows returns count rows of data starting at start, clamped to the
// available rows. A negative count is for all remaining rows.
func getRows(data ModelDataSource, start, count int) []interface{} {
	if data == nil {
		return []interface{}{}
	}

	rowCount := data.RowCount()
	if start < 0 {
		start = 0
	}
	if count < 0 {
		count = rowCount - start
	}
	if start+count > rowCount {
		if start >= rowCount {
			start = rowCount
		}
		count = rowCount - start
	}
	if count < 0 {
		count = 0
	}

	if s, ok := data.(ModelDataSourceRows); ok {
		return append([]interface{}{}, s.Rows()[start:start+count]...)
	}
	rows := make([]interface{}, count)
	for i := 0; i < len(rows); i++ {
		rows[i] = data.Row(start + i)
	}
	return rows
}

// movedIndex returns the position after a Move change of the row that was
// at p before it.
func movedIndex(p int, c CollectionChange) int {
	start, end := c.Index, c.Index+c.Count
	switch {
	case p >= start && p < end:
		if c.Destination > start {
			return p + (c.Destination - end)
		}
		return c.Destination + (p - start)
	case c.Destination > start && p >= end && p < c.Destination:
		return p - c.Count
	case c.Destination < start && p >= c.Destination && p < start:
		return p + c.Count
	default:
		return p
	}
}
