package qbind

// NoSelection is the current index of a cursor with no current item.
const NoSelection = -1

// Cursor is a shared current-item pointer into a collection, the selection
// a master list and its detail views agree on.
//
// The cursor follows changes of the collection: inserting or removing
// rows before the current item shifts the index, moving the current row
// follows it, and removing the current row selects the row that takes its
// place (or the new last row, or NoSelection once the collection is
// empty). Every settled change is announced exactly once, as a
// notification for all of the cursor's properties.
//
// Paths resolve "Current", "CurrentIndex" and "Count" against a cursor, so
// a detail binding uses a path such as "Current.Name" with the cursor as
// its source or DataContext.
type Cursor struct {
	engine   *Engine
	coll     ModelDataSource
	index    int
	disposed bool

	// adjustSub settles the index before other listeners of the
	// collection run; sub announces the settled change in turn.
	adjustSub *Subscription
	sub       *Subscription
	pending   bool
}

// NewCursor creates a cursor over coll. The first row is current if coll
// has any rows.
func (e *Engine) NewCursor(coll ModelDataSource) *Cursor {
	c := &Cursor{
		engine: e,
		coll:   coll,
		index:  NoSelection,
	}
	if coll.RowCount() > 0 {
		c.index = 0
	}
	initObject(coll, e)
	c.adjustSub = e.bus.subscribeCollectionEarly(coll, c.collectionChanged)
	c.sub = e.bus.SubscribeCollection(coll, c.announce)
	return c
}

// Collection returns the collection the cursor points into.
func (c *Cursor) Collection() ModelDataSource {
	return c.coll
}

// CurrentIndex returns the current index, or NoSelection.
func (c *Cursor) CurrentIndex() int {
	return c.index
}

// Current returns the current row, and false if there is none.
func (c *Cursor) Current() (interface{}, bool) {
	if c.index == NoSelection || c.index >= c.coll.RowCount() {
		return nil, false
	}
	return c.coll.Row(c.index), true
}

// Count returns the number of rows in the collection.
func (c *Cursor) Count() int {
	return c.coll.RowCount()
}

// SetCurrent makes row i current. i must be a valid row or NoSelection;
// otherwise an *OutOfRangeError is returned and the cursor is unchanged.
func (c *Cursor) SetCurrent(i int) error {
	if c.disposed {
		return ErrDisposed
	}
	if i != NoSelection && (i < 0 || i >= c.coll.RowCount()) {
		return &OutOfRangeError{Index: i, Length: c.coll.RowCount()}
	}
	if i == c.index {
		return nil
	}
	c.index = i
	c.changed()
	return nil
}

// MoveFirst selects the first row. It returns false if there are none.
func (c *Cursor) MoveFirst() bool {
	return c.moveTo(0)
}

// MoveLast selects the last row. It returns false if there are none.
func (c *Cursor) MoveLast() bool {
	return c.moveTo(c.coll.RowCount() - 1)
}

// MoveNext selects the row after the current one, or the first row if
// there is no selection. It returns false at the end of the collection.
func (c *Cursor) MoveNext() bool {
	return c.moveTo(c.index + 1)
}

// MovePrevious selects the row before the current one. It returns false at
// the start of the collection or without a selection.
func (c *Cursor) MovePrevious() bool {
	if c.index == NoSelection {
		return false
	}
	return c.moveTo(c.index - 1)
}

func (c *Cursor) moveTo(i int) bool {
	if i < 0 || i >= c.coll.RowCount() {
		return false
	}
	return c.SetCurrent(i) == nil
}

// Subscribe calls fn after every settled change of the cursor.
func (c *Cursor) Subscribe(fn func(c *Cursor)) *Subscription {
	return c.engine.bus.Subscribe(c, AllProperties, func(ChangeNotification) error {
		fn(c)
		return nil
	})
}

// Dispose stops following the collection. The cursor keeps its last state
// but can no longer be changed.
func (c *Cursor) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.adjustSub.Unsubscribe()
	c.sub.Unsubscribe()
}

// Property implements PropertyGetter.
func (c *Cursor) Property(name string) (interface{}, bool) {
	switch lowerFirst(name) {
	case "current":
		v, _ := c.Current()
		return v, true
	case "currentIndex":
		return c.index, true
	case "count":
		return c.coll.RowCount(), true
	}
	return nil, false
}

func (c *Cursor) changed() {
	c.engine.bus.notify(c, AllProperties)
}

// collectionChanged moves the index to follow a change of the collection.
// The change is announced by announce, once every cursor and other early
// listener has settled.
func (c *Cursor) collectionChanged(n ChangeNotification) error {
	if c.disposed || n.Collection == nil {
		return nil
	}
	change := *n.Collection
	count := c.coll.RowCount()
	old := c.index

	switch change.Kind {
	case Insert:
		if c.index != NoSelection && change.Index <= c.index {
			c.index += change.Count
		}
		c.pending = true

	case Remove:
		end := change.Index + change.Count
		switch {
		case c.index == NoSelection:
		case c.index >= end:
			c.index -= change.Count
		case c.index >= change.Index:
			// The current row is gone; the row now at its place, if any,
			// takes over.
			c.index = change.Index
			if c.index >= count {
				c.index = count - 1
			}
		}
		c.pending = true

	case Move:
		if c.index != NoSelection {
			c.index = movedIndex(c.index, change)
		}
		c.pending = c.index != old

	case Replace:
		c.pending = c.index >= change.Index && c.index < change.Index+change.Count

	case Reset:
		if c.index >= count {
			c.index = count - 1
		}
		c.pending = true
	}
	return nil
}

func (c *Cursor) announce(n ChangeNotification) error {
	if c.disposed || !c.pending {
		return nil
	}
	c.pending = false
	c.changed()
	return nil
}
