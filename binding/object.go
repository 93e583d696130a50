package qbind

import (
	"errors"
	"reflect"
	"weak"

	uuid "github.com/satori/go.uuid"
)

// Add names of any methods in Object to typeShouldIgnoreField's checks in
// type.go if they ever become fields.

// The Object interface is embedded in any struct that should act as a
// bindable source: a value whose property changes are announced to the
// engine with Changed.
//
// The Object is initialized automatically when a binding encounters the
// struct along its path. It may also be initialized explicitly with
// Engine.InitObject, which is needed before calling Changed on an object no
// binding has seen yet.
//
//	type Person struct {
//	    qbind.Object
//	    Name string
//	}
//
//	func (p *Person) SetName(name string) {
//	    p.Name = name
//	    p.Changed("Name")
//	}
type Object interface {
	Engine() *Engine
	Identifier() string

	// Changed announces that the named property has a new value. Every
	// binding depending on the property, directly or as an intermediate
	// step of its path, is refreshed before Changed returns.
	Changed(property string)
	// ResetProperties is equivalent to calling Changed for every property
	// of the object.
	ResetProperties()
}

// If a type embedding Object implements ObjectHasInit, the InitObject
// function will be called immediately after Object is initialized. This
// can be used to initialize fields automatically at the right time, or
// even as a form of constructor.
type ObjectHasInit interface {
	Object
	InitObject()
}

type objectImpl struct {
	engine *Engine
	id     string

	// object points back to the struct embedding Object
	object   interface{}
	typeInfo *typeInfo
}

// objectID keys bindable objects in the bus and the engine registry, so
// neither holds the object itself.
type objectID string

var errNotObject = errors.New("struct does not embed Object")

// ObjectFor indicates whether a value is a bindable object, and returns the
// embedded Object instance if it has been initialized.
func ObjectFor(obj interface{}) (bool, Object) {
	field, ok := objectField(obj)
	if !ok {
		return false, nil
	}
	if re := field.Interface(); re == nil {
		return true, nil
	} else {
		return true, re.(Object)
	}
}

// objectField returns the embedded Object field of a pointer to struct.
func objectField(obj interface{}) (reflect.Value, bool) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return reflect.Value{}, false
	}
	v = v.Elem()
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	sField, ok := v.Type().FieldByName("Object")
	if !ok || sField.Type != objectInterfaceType {
		return reflect.Value{}, false
	}
	f, err := v.FieldByIndexErr(sField.Index)
	if err != nil {
		// Embedded through a nil pointer
		return reflect.Value{}, false
	}
	return f, true
}

func objectImplFor(obj interface{}) *objectImpl {
	if impl, ok := obj.(*objectImpl); ok {
		return impl
	}
	field, ok := objectField(obj)
	if !ok {
		return nil
	}
	impl, _ := field.Interface().(*objectImpl)
	return impl
}

func initObject(object interface{}, e *Engine) (*objectImpl, error) {
	if impl := objectImplFor(object); impl != nil && impl.engine != nil {
		return impl, nil
	}
	if _, ok := objectField(object); !ok {
		return nil, errNotObject
	}
	u, _ := uuid.NewV4()
	return initObjectId(object, e, u.String())
}

func initObjectId(object interface{}, e *Engine, id string) (*objectImpl, error) {
	field, ok := objectField(object)
	if !ok {
		return nil, errNotObject
	}

	impl, _ := field.Interface().(*objectImpl)
	if impl != nil {
		if impl.engine == nil && e != nil {
			impl.engine = e
			e.addObject(impl)
		}
		return impl, nil
	}

	impl = &objectImpl{
		engine:   e,
		id:       id,
		object:   object,
		typeInfo: parseType(reflect.TypeOf(object)),
	}

	// Write to the Object embedded field
	field.Set(reflect.ValueOf(impl))

	if e != nil {
		e.addObject(impl)
	}

	if io, ok := object.(ObjectHasInit); ok {
		io.InitObject()
	}

	return impl, nil
}

func (o *objectImpl) Engine() *Engine {
	return o.engine
}

func (o *objectImpl) Identifier() string {
	return o.id
}

func (o *objectImpl) Changed(property string) {
	if o.engine == nil {
		return
	}
	o.engine.bus.notify(o.object, property)
}

func (o *objectImpl) ResetProperties() {
	o.Changed(AllProperties)
}

// objectKey returns the identity under which obj is subscribed, and false
// for values that have none: nil, nil maps and slices, and values that
// cannot be compared, such as structs holding a slice.
func objectKey(obj interface{}) (interface{}, bool) {
	if impl := objectImplFor(obj); impl != nil {
		return objectID(impl.id), true
	}
	v := reflect.ValueOf(obj)
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, false
		}
		return referenceKey{v.Type(), v.Pointer()}, true
	}
	if !v.Comparable() {
		return nil, false
	}
	return obj, true
}

// referenceKey identifies maps and slices, which cannot be map keys.
type referenceKey struct {
	t reflect.Type
	p uintptr
}

// propertyKey canonicalizes a property name for obj, so that "Name",
// "name" and a json tag name all address the same subscriptions.
func propertyKey(obj interface{}, property string) string {
	if property == AllProperties {
		return property
	}
	var ti *typeInfo
	if impl := objectImplFor(obj); impl != nil {
		ti = impl.typeInfo
	} else if t := reflect.TypeOf(obj); t != nil {
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() == reflect.Struct {
			ti = parseType(t)
		}
	}
	if ti != nil {
		if canon, ok := ti.canonical(property); ok {
			return canon
		}
	}
	return lowerFirst(property)
}

// objectRef holds a binding endpoint without extending the lifetime of
// bindable objects. Other values are held as-is.
type objectRef struct {
	weak   weak.Pointer[objectImpl]
	strong interface{}
	isWeak bool
}

func makeRef(v interface{}) objectRef {
	if impl := objectImplFor(v); impl != nil {
		return objectRef{weak: weak.Make(impl), isWeak: true}
	}
	return objectRef{strong: v}
}

// get returns the referenced value, and false if it has been collected.
func (r objectRef) get() (interface{}, bool) {
	if !r.isWeak {
		return r.strong, true
	}
	if impl := r.weak.Value(); impl != nil {
		return impl.object, true
	}
	return nil, false
}
