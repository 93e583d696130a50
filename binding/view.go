package qbind

import "slices"

// View keeps a cached copy of a collection's rows, updated incrementally
// from its change notifications. A Reset makes it re-read every row.
//
// A View is itself a ModelDataSource and re-announces each change after
// applying it, so cursors and bindings can observe the cache instead of
// the collection.
type View struct {
	engine   *Engine
	coll     ModelDataSource
	rows     []interface{}
	sub      *Subscription
	disposed bool

	enumerations int
}

// NewView creates a view over coll and reads its rows.
func (e *Engine) NewView(coll ModelDataSource) *View {
	v := &View{engine: e, coll: coll}
	initObject(coll, e)
	v.enumerate()
	v.sub = e.bus.SubscribeCollection(coll, v.collectionChanged)
	return v
}

func (v *View) Row(row int) interface{} {
	return v.rows[row]
}

func (v *View) RowCount() int {
	return len(v.rows)
}

// Rows returns a copy of the cached rows.
func (v *View) Rows() []interface{} {
	return slices.Clone(v.rows)
}

// Enumerations returns how many times the view has read the whole
// collection, once at creation and once per Reset.
func (v *View) Enumerations() int {
	return v.enumerations
}

// Dispose stops following the collection.
func (v *View) Dispose() {
	if v.disposed {
		return
	}
	v.disposed = true
	v.sub.Unsubscribe()
}

func (v *View) enumerate() {
	v.rows = getRows(v.coll, 0, -1)
	v.enumerations++
}

func (v *View) collectionChanged(n ChangeNotification) error {
	if v.disposed || n.Collection == nil {
		return nil
	}
	c := *n.Collection

	switch c.Kind {
	case Insert:
		v.rows = slices.Insert(v.rows, c.Index, getRows(v.coll, c.Index, c.Count)...)
	case Remove:
		v.rows = slices.Delete(v.rows, c.Index, c.Index+c.Count)
	case Replace:
		copy(v.rows[c.Index:], getRows(v.coll, c.Index, c.Count))
	case Move:
		moved := slices.Clone(v.rows[c.Index : c.Index+c.Count])
		v.rows = slices.Delete(v.rows, c.Index, c.Index+c.Count)
		dest := c.Destination
		if dest > c.Index {
			dest -= c.Count
		}
		v.rows = slices.Insert(v.rows, dest, moved...)
	case Reset:
		v.enumerate()
	}

	// Collections may hold rows they have not announced yet, but never
	// fewer rows than announced.
	if len(v.rows) > v.coll.RowCount() {
		v.engine.warn("view of %T is out of sync (%d cached, %d rows), re-reading", v.coll, len(v.rows), v.coll.RowCount())
		v.enumerate()
	}

	return v.engine.bus.NotifyCollection(v, c)
}
