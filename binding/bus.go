package qbind

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// AllProperties, passed to Notify, announces that every property of an
// object may have changed. Subscribing to AllProperties receives every
// property notification of the object.
const AllProperties = ""

// ChangeKind is the kind of a structural collection change.
type ChangeKind int

const (
	// Insert: Count rows were inserted at Index.
	Insert ChangeKind = iota
	// Remove: Count rows were removed starting at Index.
	Remove
	// Replace: the row at Index has a new value.
	Replace
	// Move: Count rows starting at Index moved to Destination, which is
	// expressed in positions of the collection before the move.
	Move
	// Reset: discard all cached positions and enumerate from scratch.
	Reset
)

func (k ChangeKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	case Replace:
		return "replace"
	case Move:
		return "move"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// CollectionChange describes one structural change of a collection.
type CollectionChange struct {
	Kind        ChangeKind
	Index       int
	Count       int
	Destination int
}

// ChangeNotification is delivered to listeners. Exactly one of Property
// and Collection is meaningful: Collection is nil for property changes.
type ChangeNotification struct {
	Source     interface{}
	Property   string
	Collection *CollectionChange
}

// Listener receives change notifications. A returned error (or a panic) is
// reported and does not stop delivery to other listeners.
type Listener func(ChangeNotification) error

// Subscription is the handle returned by Subscribe and SubscribeCollection.
type Subscription struct {
	bus      *Bus
	key      interface{}
	property string
	coll     bool
	// early listeners see collection changes before all others
	early    bool
	seq      uint64
	listener Listener
	removed  bool
}

// Unsubscribe removes the listener. It is safe to call more than once and
// from within a notification callback; a listener removed during a delivery
// is not invoked later in that delivery.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.removed {
		return
	}
	s.removed = true
	s.bus.remove(s)
}

// Active reports whether the subscription has not been removed.
func (s *Subscription) Active() bool {
	return s != nil && !s.removed
}

type objectSubscriptions struct {
	properties map[string][]*Subscription
	collection []*Subscription
}

// Bus is the subscriber table for property and collection notifications.
// All calls must happen on the engine's logical thread.
type Bus struct {
	engine *Engine
	seq    uint64
	depth  int
	table  map[interface{}]*objectSubscriptions
}

func newBus(e *Engine) *Bus {
	return &Bus{
		engine: e,
		table:  make(map[interface{}]*objectSubscriptions),
	}
}

func (b *Bus) entry(key interface{}, create bool) *objectSubscriptions {
	os := b.table[key]
	if os == nil && create {
		os = &objectSubscriptions{properties: make(map[string][]*Subscription)}
		b.table[key] = os
	}
	return os
}

// Subscribe registers listener for changes of property on obj. Subscribing
// to AllProperties receives every property change of obj.
//
// Values without a stable identity (nil, or structs holding slices, maps
// or funcs) cannot be observed; the returned Subscription is inactive.
func (b *Bus) Subscribe(obj interface{}, property string, listener Listener) *Subscription {
	initObject(obj, b.engine)
	key, ok := objectKey(obj)
	if !ok {
		b.engine.debug("cannot observe value without identity", "type", fmt.Sprintf("%T", obj))
		return &Subscription{bus: b, removed: true}
	}
	b.seq++
	s := &Subscription{
		bus:      b,
		key:      key,
		property: propertyKey(obj, property),
		seq:      b.seq,
		listener: listener,
	}
	os := b.entry(s.key, true)
	os.properties[s.property] = append(os.properties[s.property], s)
	return s
}

// SubscribeCollection registers listener for structural changes of coll.
func (b *Bus) SubscribeCollection(coll interface{}, listener Listener) *Subscription {
	initObject(coll, b.engine)
	key, ok := objectKey(coll)
	if !ok {
		b.engine.debug("cannot observe value without identity", "type", fmt.Sprintf("%T", coll))
		return &Subscription{bus: b, coll: true, removed: true}
	}
	b.seq++
	s := &Subscription{
		bus:      b,
		key:      key,
		coll:     true,
		seq:      b.seq,
		listener: listener,
	}
	os := b.entry(s.key, true)
	os.collection = append(os.collection, s)
	return s
}

// subscribeCollectionEarly is SubscribeCollection for state that other
// listeners read, such as a cursor's index. Early listeners run before
// every ordinary listener of the same change.
func (b *Bus) subscribeCollectionEarly(coll interface{}, listener Listener) *Subscription {
	s := b.SubscribeCollection(coll, listener)
	s.early = true
	return s
}

func (b *Bus) remove(s *Subscription) {
	os := b.entry(s.key, false)
	if os == nil {
		return
	}
	if s.coll {
		os.collection = slices.DeleteFunc(os.collection, func(o *Subscription) bool { return o == s })
	} else {
		list := slices.DeleteFunc(os.properties[s.property], func(o *Subscription) bool { return o == s })
		if len(list) == 0 {
			delete(os.properties, s.property)
		} else {
			os.properties[s.property] = list
		}
	}
	if len(os.collection) == 0 && len(os.properties) == 0 {
		delete(b.table, s.key)
	}
}

// drop removes every subscription on key, as for an object that was
// garbage collected and can never be notified again.
func (b *Bus) drop(key interface{}) {
	os := b.entry(key, false)
	if os == nil {
		return
	}
	for _, s := range os.collection {
		s.removed = true
	}
	for _, list := range os.properties {
		for _, s := range list {
			s.removed = true
		}
	}
	delete(b.table, key)
}

// SubscriberCount returns the number of active subscriptions on obj.
func (b *Bus) SubscriberCount(obj interface{}) int {
	key, ok := objectKey(obj)
	if !ok {
		return 0
	}
	os := b.entry(key, false)
	if os == nil {
		return 0
	}
	n := len(os.collection)
	for _, list := range os.properties {
		n += len(list)
	}
	return n
}

// Notify synchronously invokes the listeners of (obj, property) in
// subscription order. Listeners subscribed to AllProperties are included.
// Passing AllProperties as property invokes every property listener of obj
// once. All listener failures are returned joined.
func (b *Bus) Notify(obj interface{}, property string) error {
	key, ok := objectKey(obj)
	if !ok {
		return nil
	}
	os := b.entry(key, false)
	if os == nil {
		return nil
	}

	var snapshot []*Subscription
	property = propertyKey(obj, property)
	if property == AllProperties {
		for _, list := range os.properties {
			snapshot = append(snapshot, list...)
		}
	} else {
		snapshot = append(snapshot, os.properties[property]...)
		snapshot = append(snapshot, os.properties[AllProperties]...)
	}
	if len(snapshot) == 0 {
		return nil
	}
	slices.SortFunc(snapshot, func(x, y *Subscription) int {
		return cmp.Compare(x.seq, y.seq)
	})

	return b.deliver("notify "+property, snapshot, ChangeNotification{Source: obj, Property: property})
}

// NotifyCollection synchronously invokes the collection listeners of coll.
func (b *Bus) NotifyCollection(coll interface{}, change CollectionChange) error {
	key, ok := objectKey(coll)
	if !ok {
		return nil
	}
	os := b.entry(key, false)
	if os == nil || len(os.collection) == 0 {
		return nil
	}
	snapshot := slices.Clone(os.collection)
	slices.SortStableFunc(snapshot, func(x, y *Subscription) int {
		switch {
		case x.early == y.early:
			return 0
		case x.early:
			return -1
		default:
			return 1
		}
	})
	return b.deliver("collection "+change.Kind.String(), snapshot, ChangeNotification{Source: coll, Collection: &change})
}

// notify is Notify for callers that have no use for the error; failures
// are already reported to the engine.
func (b *Bus) notify(obj interface{}, property string) {
	_ = b.Notify(obj, property)
}

func (b *Bus) deliver(op string, snapshot []*Subscription, n ChangeNotification) error {
	if limit := b.engine.opts.MaxNotifyDepth; limit > 0 && b.depth >= limit {
		b.engine.warn("dropping %s from %T: nested %d deep", op, n.Source, b.depth)
		return ErrNotifyDepth
	}
	b.depth++
	defer func() { b.depth-- }()

	var errs []error
	for _, s := range snapshot {
		if s.removed {
			continue
		}
		if err := b.invoke(op, s, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) invoke(op string, s *Subscription, n ChangeNotification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ListenerError{Op: op, Recovered: r, StackTrace: captureStack()}
			b.engine.reportError(err)
		}
	}()

	if lerr := s.listener(n); lerr != nil {
		// Failures from nested deliveries were reported where they happened
		var nested *ListenerError
		if errors.As(lerr, &nested) || errors.Is(lerr, ErrNotifyDepth) {
			return lerr
		}
		err = &ListenerError{Op: op, Err: lerr}
		b.engine.reportError(err)
		return err
	}
	return nil
}
