package qbind

import (
	"errors"
	"fmt"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// Mode is the direction in which a binding propagates values.
type Mode int

const (
	// ModeDefault uses the engine's Options.DefaultMode.
	ModeDefault Mode = iota
	// OneWay updates the target when the source changes.
	OneWay
	// TwoWay also writes target changes back to the source.
	TwoWay
	// OneWayToSource only writes target changes back to the source.
	OneWayToSource
	// OneTime sets the target once at creation and never subscribes.
	OneTime
)

var modeNames = []string{"default", "oneWay", "twoWay", "oneWayToSource", "oneTime"}

func (m Mode) String() string {
	if int(m) < len(modeNames) && m >= 0 {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	for i, name := range modeNames {
		if strings.EqualFold(name, string(text)) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("qbind: unknown binding mode %q", text)
}

func (m Mode) toTarget() bool {
	return m == OneWay || m == TwoWay || m == OneTime
}

func (m Mode) toSource() bool {
	return m == TwoWay || m == OneWayToSource
}

// Trigger decides when target changes are written back to the source.
type Trigger int

const (
	// TriggerDefault uses the engine's Options.DefaultTrigger.
	TriggerDefault Trigger = iota
	// TriggerPropertyChanged writes back as soon as the target announces a
	// change of the bound property.
	TriggerPropertyChanged
	// TriggerExplicit writes back only when UpdateSource is called, e.g.
	// when an input loses focus or a form is submitted.
	TriggerExplicit
)

var triggerNames = []string{"default", "propertyChanged", "explicit"}

func (t Trigger) String() string {
	if int(t) < len(triggerNames) && t >= 0 {
		return triggerNames[t]
	}
	return fmt.Sprintf("Trigger(%d)", int(t))
}

func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Trigger) UnmarshalText(text []byte) error {
	for i, name := range triggerNames {
		if strings.EqualFold(name, string(text)) {
			*t = Trigger(i)
			return nil
		}
	}
	return fmt.Errorf("qbind: unknown update trigger %q", text)
}

// Status is the state of a binding's source value.
type Status int

const (
	// StatusActive: the path resolved and the target holds its value.
	StatusActive Status = iota
	// StatusNoValue: the path did not resolve; the target holds the
	// fallback. Err returns the reason.
	StatusNoValue
	// StatusDetached: the source or target was garbage collected.
	StatusDetached
	// StatusDisposed: Dispose was called.
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusNoValue:
		return "no value"
	case StatusDetached:
		return "detached"
	case StatusDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// BindParams describes a binding from a source path to a target property.
type BindParams struct {
	// Path is resolved against the source, e.g. "Owner.Address.City".
	Path string
	// Target and Property name the bound target property. Target must be
	// a pointer to a struct, a map, or implement PropertySetter.
	Target   interface{}
	Property string

	Mode    Mode
	Trigger Trigger

	// Converter, if set, transforms values in both directions.
	Converter Converter
	// Fallback is given to the target while the path does not resolve.
	// If nil, the target property's zero value is used.
	Fallback interface{}
}

// Binding is a live link between a source path and a target property.
type Binding struct {
	id       string
	engine   *Engine
	node     *Node
	path     PropertyPath
	source   objectRef
	target   objectRef
	property string

	mode      Mode
	trigger   Trigger
	converter Converter
	fallback  interface{}

	pathSubs  []*Subscription
	targetSub *Subscription

	status Status
	err    error
	value  interface{}

	// Echo suppression while this binding writes to either side
	updatingTarget bool
	updatingSource bool
	dirty          bool
	disposed       bool
}

// Bind creates a binding whose source is source. It fails with a
// *ParseError for malformed paths, in which case no binding exists. A path
// that does not resolve is not an error; see Binding.Status.
func (e *Engine) Bind(source interface{}, p BindParams) (*Binding, error) {
	return e.bind(source, nil, p)
}

func (e *Engine) bind(source interface{}, node *Node, p BindParams) (*Binding, error) {
	path, err := ParsePath(p.Path)
	if err != nil {
		return nil, err
	}
	if isNil(p.Target) {
		return nil, errors.New("qbind: binding has no target")
	}
	if p.Property == "" {
		return nil, errors.New("qbind: binding has no target property")
	}

	u, _ := uuid.NewV4()
	b := &Binding{
		id:        u.String(),
		engine:    e,
		node:      node,
		path:      path,
		property:  p.Property,
		mode:      p.Mode,
		trigger:   p.Trigger,
		converter: p.Converter,
		fallback:  p.Fallback,
	}
	if b.mode == ModeDefault {
		b.mode = e.opts.DefaultMode
	}
	if b.trigger == TriggerDefault {
		b.trigger = e.opts.DefaultTrigger
	}

	// Bindable targets are initialized so that their Changed calls reach
	// this binding.
	initObject(p.Target, e)
	b.target = makeRef(p.Target)

	if b.mode.toSource() {
		b.targetSub = e.bus.Subscribe(p.Target, p.Property, b.onTargetChanged)
	}

	b.attach(source)
	return b, nil
}

// ID returns a unique identifier for log messages.
func (b *Binding) ID() string {
	return b.id
}

// Path returns the parsed source path.
func (b *Binding) Path() PropertyPath {
	return b.path
}

// Mode returns the effective mode.
func (b *Binding) Mode() Mode {
	return b.mode
}

// Trigger returns the effective writeback trigger.
func (b *Binding) Trigger() Trigger {
	return b.trigger
}

// Status returns the state of the source value.
func (b *Binding) Status() Status {
	return b.status
}

// Err returns the reason for StatusNoValue, or the last writeback failure.
func (b *Binding) Err() error {
	return b.err
}

// Value returns the last value resolved from the source, before
// conversion. It is nil while the binding has no value.
func (b *Binding) Value() interface{} {
	return b.value
}

// IsDirty reports whether the target has changes not yet written back with
// UpdateSource.
func (b *Binding) IsDirty() bool {
	return b.dirty
}

// Source returns the current source, or nil if it was collected.
func (b *Binding) Source() interface{} {
	v, _ := b.source.get()
	return v
}

// attach switches the binding to a new source, as happens when a Node's
// effective DataContext changes.
func (b *Binding) attach(source interface{}) {
	if b.disposed {
		return
	}
	if source != nil {
		initObject(source, b.engine)
	}
	b.source = makeRef(source)
	b.refresh()
	if b.mode == OneWayToSource {
		b.writeBack()
	}
}

// Refresh re-resolves the path and, for modes that propagate to the
// target, pushes the value again.
func (b *Binding) Refresh() error {
	if b.disposed {
		return ErrDisposed
	}
	b.refresh()
	return b.err
}

func (b *Binding) unsubscribePath() {
	for _, s := range b.pathSubs {
		s.Unsubscribe()
	}
	b.pathSubs = nil
}

// refresh walks the path, subscribing to every object along it, and pushes
// the result to the target.
func (b *Binding) refresh() {
	b.unsubscribePath()

	source, alive := b.source.get()
	if !alive {
		b.detach()
		return
	}

	value, err := b.walk(source)
	if err != nil {
		b.status = StatusNoValue
		b.err = err
		b.value = nil
		if b.mode.toTarget() {
			b.pushTarget(b.fallback, true)
		}
		return
	}

	b.status = StatusActive
	b.err = nil
	b.value = value
	if b.mode.toTarget() {
		b.pushTarget(value, false)
	}
}

func (b *Binding) walk(source interface{}) (interface{}, error) {
	subscribe := b.mode != OneTime
	if isNil(source) {
		return nil, &ResolutionError{Kind: NullIntermediate, Path: b.path, Step: -1}
	}
	cur := source
	for i, step := range b.path.steps {
		if isNil(cur) {
			return nil, &ResolutionError{Kind: NullIntermediate, Path: b.path, Step: i - 1}
		}

		// Subscribe before stepping so a missing value that appears later
		// refreshes the binding.
		if subscribe {
			initObject(cur, b.engine)
			if step.kind == stepName {
				b.pathSubs = append(b.pathSubs, b.engine.bus.Subscribe(cur, step.name, b.onSourceChanged))
			} else if _, ok := cur.(ModelDataSource); ok {
				b.pathSubs = append(b.pathSubs, b.engine.bus.SubscribeCollection(cur, b.onSourceChanged))
			}
		}

		next, kind, ok := resolveStep(cur, step)
		if !ok {
			return nil, &ResolutionError{Kind: kind, Path: b.path, Step: i, Type: fmt.Sprintf("%T", cur)}
		}
		cur = next
	}
	return cur, nil
}

func (b *Binding) onSourceChanged(n ChangeNotification) error {
	if b.disposed || b.updatingSource {
		return nil
	}
	b.refresh()
	return nil
}

func (b *Binding) pushTarget(value interface{}, noValue bool) {
	target, alive := b.target.get()
	if !alive {
		b.detachTarget()
		return
	}

	if noValue {
		if value == nil {
			value = zeroProperty(target, b.property)
		}
	} else if b.converter != nil {
		cv, err := b.converter.Convert(value)
		if err != nil {
			b.status = StatusNoValue
			b.err = err
			b.engine.warn("binding %s: convert %q failed: %s", b.id, b.path.String(), err)
			value = b.fallback
			if value == nil {
				value = zeroProperty(target, b.property)
			}
		} else {
			value = cv
		}
	}

	b.updatingTarget = true
	defer func() { b.updatingTarget = false }()

	var err error
	if s, ok := target.(PropertySetter); ok {
		err = s.SetProperty(b.property, value)
	} else {
		err = setField(target, b.property, value)
	}
	if err != nil {
		b.err = err
		b.engine.warn("binding %s: setting target %T.%s failed: %s", b.id, target, b.property, err)
		return
	}
	b.dirty = false
	b.engine.bus.notify(target, b.property)
}

func (b *Binding) onTargetChanged(n ChangeNotification) error {
	if b.disposed || b.updatingTarget {
		return nil
	}
	if b.trigger == TriggerExplicit {
		b.dirty = true
		return nil
	}
	return b.writeBack()
}

// UpdateSource writes the current target value back to the source. It is
// how TriggerExplicit bindings commit, and may be called in any mode that
// writes to the source. On failure the source keeps its prior value.
func (b *Binding) UpdateSource() error {
	if b.disposed {
		return ErrDisposed
	}
	if !b.mode.toSource() {
		return fmt.Errorf("qbind: binding %s is %s and does not write to its source", b.id, b.mode)
	}
	return b.writeBack()
}

func (b *Binding) writeBack() error {
	target, alive := b.target.get()
	if !alive {
		b.detachTarget()
		return ErrSourceCollected
	}
	source, alive := b.source.get()
	if !alive {
		b.detach()
		return ErrSourceCollected
	}
	if b.path.IsEmpty() {
		b.err = fmt.Errorf("%w: binding %s has an empty path", ErrNotWritable, b.id)
		return b.err
	}

	value, err := getProperty(target, b.property)
	if err != nil {
		b.err = err
		return err
	}
	if b.converter != nil {
		if value, err = b.converter.ConvertBack(value); err != nil {
			b.err = err
			b.engine.warn("binding %s: writeback of %q skipped: %s", b.id, b.path.String(), err)
			return err
		}
	}

	owner, err := Resolve(source, b.path.Parent())
	if err != nil {
		b.err = err
		return err
	}
	last := b.path.steps[len(b.path.steps)-1]

	b.updatingSource = true
	defer func() { b.updatingSource = false }()

	if err := setTerminal(owner, last, value); err != nil {
		b.err = err
		b.engine.warn("binding %s: writeback of %q skipped: %s", b.id, b.path.String(), err)
		return err
	}
	b.err = nil
	b.dirty = false
	b.value = value
	b.status = StatusActive

	// Other observers of the source property see the new value. Setters
	// going through PropertySetter or RowSetter announce their own changes.
	if last.kind == stepName {
		if _, ok := owner.(PropertySetter); !ok {
			b.engine.bus.notify(owner, last.name)
		}
	} else if _, ok := owner.(RowSetter); !ok {
		b.engine.bus.NotifyCollection(owner, CollectionChange{Kind: Replace, Index: last.index, Count: 1})
	}
	return nil
}

// detachTarget is detach for a collected target, which can never come
// back, so the writeback subscription goes as well.
func (b *Binding) detachTarget() {
	b.targetSub.Unsubscribe()
	b.targetSub = nil
	b.detach()
}

func (b *Binding) detach() {
	b.unsubscribePath()
	b.status = StatusDetached
	b.err = ErrSourceCollected
	b.value = nil
}

// Dispose unregisters the binding. After Dispose returns, the target
// receives no further updates. It is safe to call more than once.
func (b *Binding) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	b.unsubscribePath()
	b.targetSub.Unsubscribe()
	b.targetSub = nil
	b.status = StatusDisposed
	b.value = nil
	if b.node != nil {
		b.node.removeBinding(b)
		b.node = nil
	}
}
