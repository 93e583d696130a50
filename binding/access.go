package qbind

import (
	"fmt"
	"reflect"
)

// PropertyGetter can be implemented by sources whose properties are not
// plain struct fields. Returning false falls back to struct fields.
type PropertyGetter interface {
	Property(name string) (interface{}, bool)
}

// PropertySetter can be implemented by sources and targets that handle
// writes themselves, e.g. to validate or to call Changed.
type PropertySetter interface {
	SetProperty(name string, value interface{}) error
}

// Resolve walks p from root and returns the value at its end. It fails
// with a *ResolutionError when the root or an intermediate value is absent,
// a named property does not exist, or an index is out of range. Resolve
// never modifies the values it walks.
func Resolve(root interface{}, p PropertyPath) (interface{}, error) {
	cur := root
	for i, step := range p.steps {
		if isNil(cur) {
			return nil, &ResolutionError{Kind: NullIntermediate, Path: p, Step: i - 1}
		}
		next, kind, ok := resolveStep(cur, step)
		if !ok {
			return nil, &ResolutionError{Kind: kind, Path: p, Step: i, Type: fmt.Sprintf("%T", cur)}
		}
		cur = next
	}
	return cur, nil
}

// isNil reports whether v is absent: a nil interface, or a nil pointer,
// map, slice, interface or func.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// indirect dereferences pointers and interfaces, returning an invalid
// Value if a nil is reached.
func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func resolveStep(cur interface{}, step pathStep) (interface{}, ResolutionKind, bool) {
	if step.kind == stepName {
		return getMember(cur, step.name)
	}
	return getIndex(cur, step)
}

func getMember(cur interface{}, name string) (interface{}, ResolutionKind, bool) {
	if g, ok := cur.(PropertyGetter); ok {
		if v, ok := g.Property(name); ok {
			return v, 0, true
		}
	}

	v := indirect(reflect.ValueOf(cur))
	if !v.IsValid() {
		return nil, NullIntermediate, false
	}

	switch v.Kind() {
	case reflect.Struct:
		index, _, ok := parseType(v.Type()).lookup(name)
		if !ok {
			return nil, MissingMember, false
		}
		f, err := v.FieldByIndexErr(index)
		if err != nil {
			// Embedded through a nil pointer
			return nil, NullIntermediate, false
		}
		return f.Interface(), 0, true

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, MissingMember, false
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil, MissingMember, false
		}
		return mv.Interface(), 0, true
	}

	return nil, MissingMember, false
}

func getIndex(cur interface{}, step pathStep) (interface{}, ResolutionKind, bool) {
	if ds, ok := cur.(ModelDataSource); ok {
		if !step.isInt {
			return nil, MissingMember, false
		}
		if step.index < 0 || step.index >= ds.RowCount() {
			return nil, IndexOutOfRange, false
		}
		return ds.Row(step.index), 0, true
	}

	v := indirect(reflect.ValueOf(cur))
	if !v.IsValid() {
		return nil, NullIntermediate, false
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if !step.isInt {
			return nil, MissingMember, false
		}
		if step.index < 0 || step.index >= v.Len() {
			return nil, IndexOutOfRange, false
		}
		return v.Index(step.index).Interface(), 0, true

	case reflect.Map:
		key, err := convertValue(step.name, v.Type().Key())
		if err != nil {
			return nil, MissingMember, false
		}
		mv := v.MapIndex(key)
		if !mv.IsValid() {
			return nil, MissingMember, false
		}
		return mv.Interface(), 0, true
	}

	return nil, MissingMember, false
}

// setTerminal writes value to the final step of a path on owner, the value
// the path's parent resolved to.
func setTerminal(owner interface{}, step pathStep, value interface{}) error {
	if isNil(owner) {
		return ErrNotWritable
	}

	if step.kind == stepName {
		if s, ok := owner.(PropertySetter); ok {
			return s.SetProperty(step.name, value)
		}
		return setField(owner, step.name, value)
	}

	if rs, ok := owner.(RowSetter); ok {
		if !step.isInt {
			return ErrNotWritable
		}
		return rs.SetRow(step.index, value)
	}

	v := indirect(reflect.ValueOf(owner))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if !step.isInt || step.index < 0 || step.index >= v.Len() {
			return &OutOfRangeError{Index: step.index, Length: v.Len()}
		}
		elem := v.Index(step.index)
		if !elem.CanSet() {
			return ErrNotWritable
		}
		cv, err := convertValue(value, elem.Type())
		if err != nil {
			return conversionError(step.String(), elem.Type(), value, err)
		}
		elem.Set(cv)
		return nil

	case reflect.Map:
		key, err := convertValue(step.name, v.Type().Key())
		if err != nil {
			return conversionError(step.String(), v.Type().Key(), step.name, err)
		}
		cv, err := convertValue(value, v.Type().Elem())
		if err != nil {
			return conversionError(step.String(), v.Type().Elem(), value, err)
		}
		v.SetMapIndex(key, cv)
		return nil
	}

	return ErrNotWritable
}

// setField assigns a struct field or string-keyed map entry by property
// name.
func setField(owner interface{}, name string, value interface{}) error {
	v := indirect(reflect.ValueOf(owner))
	switch v.Kind() {
	case reflect.Struct:
		index, ft, ok := parseType(v.Type()).lookup(name)
		if !ok {
			return fmt.Errorf("%w: %q on %T", ErrNotWritable, name, owner)
		}
		f, err := v.FieldByIndexErr(index)
		if err != nil || !f.CanSet() {
			// Passed by value, or embedded through a nil pointer
			return fmt.Errorf("%w: %q on %T", ErrNotWritable, name, owner)
		}
		cv, err := convertValue(value, ft)
		if err != nil {
			return conversionError(name, ft, value, err)
		}
		f.Set(cv)
		return nil

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %q on %T", ErrNotWritable, name, owner)
		}
		cv, err := convertValue(value, v.Type().Elem())
		if err != nil {
			return conversionError(name, v.Type().Elem(), value, err)
		}
		v.SetMapIndex(reflect.ValueOf(name).Convert(v.Type().Key()), cv)
		return nil
	}

	return fmt.Errorf("%w: %q on %T", ErrNotWritable, name, owner)
}

// getProperty reads a single named property of obj, as used for binding
// targets.
func getProperty(obj interface{}, name string) (interface{}, error) {
	v, kind, ok := getMember(obj, name)
	if !ok {
		p := PropertyPath{steps: []pathStep{{kind: stepName, name: name}}}
		return nil, &ResolutionError{Kind: kind, Path: p, Step: 0, Type: fmt.Sprintf("%T", obj)}
	}
	return v, nil
}

// zeroProperty returns the zero value of a target property, used when a
// binding has no value and no fallback.
func zeroProperty(obj interface{}, name string) interface{} {
	v := indirect(reflect.ValueOf(obj))
	if v.Kind() != reflect.Struct {
		return nil
	}
	if _, ft, ok := parseType(v.Type()).lookup(name); ok {
		return reflect.Zero(ft).Interface()
	}
	return nil
}
