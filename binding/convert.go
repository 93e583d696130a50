package qbind

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
)

// Converter transforms values passing through a binding. Convert is
// applied source→target, ConvertBack target→source. An error from
// ConvertBack skips the writeback.
type Converter interface {
	Convert(value interface{}) (interface{}, error)
	ConvertBack(value interface{}) (interface{}, error)
}

// ConverterFuncs builds a Converter from two functions. A nil function
// passes values through unchanged.
type ConverterFuncs struct {
	To   func(interface{}) (interface{}, error)
	From func(interface{}) (interface{}, error)
}

func (c ConverterFuncs) Convert(v interface{}) (interface{}, error) {
	if c.To == nil {
		return v, nil
	}
	return c.To(v)
}

func (c ConverterFuncs) ConvertBack(v interface{}) (interface{}, error) {
	if c.From == nil {
		return v, nil
	}
	return c.From(v)
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func conversionError(property string, want reflect.Type, got interface{}, err error) error {
	return &ConversionError{
		Property: property,
		Want:     want.String(),
		Got:      fmt.Sprintf("%T", got),
		Err:      err,
	}
}

// convertValue matches value to argType, converting or unmarshaling if
// possible. A nil value converts to the zero value.
func convertValue(value interface{}, argType reflect.Type) (reflect.Value, error) {
	inValue := reflect.ValueOf(value)

	if !inValue.IsValid() {
		// Zero value, argument is nil
		return reflect.Zero(argType), nil
	} else if inValue.Type() == argType {
		// Types match
		return inValue, nil
	} else if inValue.Type().AssignableTo(argType) {
		v := reflect.New(argType).Elem()
		v.Set(inValue)
		return v, nil
	} else if inValue.Kind() == reflect.String {
		return convertString(inValue.String(), argType)
	} else if argType.Kind() == reflect.String {
		if s, ok := value.(fmt.Stringer); ok {
			return reflect.ValueOf(s.String()).Convert(argType), nil
		}
		if isNumberKind(inValue.Kind()) || inValue.Kind() == reflect.Bool {
			// Convert would read integers as runes
			return reflect.ValueOf(fmt.Sprint(value)).Convert(argType), nil
		}
	} else if isNumberKind(inValue.Kind()) && isNumberKind(argType.Kind()) {
		return convertNumber(inValue, argType)
	} else if inValue.Type().ConvertibleTo(argType) && inValue.Kind() == argType.Kind() {
		// Convert type directly
		return inValue.Convert(argType), nil
	}

	return reflect.Value{}, fmt.Errorf("no conversion from %s", inValue.Type())
}

// convertString handles text input, the common shape of values written
// back from editable targets.
func convertString(s string, argType reflect.Type) (reflect.Value, error) {
	// Attempt to unmarshal via TextUnmarshaler, directly or by pointer
	if argType.Implements(textUnmarshalerType) && argType.Kind() == reflect.Ptr {
		v := reflect.New(argType.Elem())
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	} else if reflect.PtrTo(argType).Implements(textUnmarshalerType) {
		v := reflect.New(argType)
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return v.Elem(), nil
	}

	out := reflect.New(argType).Elem()
	switch argType.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, argType.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, argType.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, argType.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.Interface:
		if reflect.TypeOf(s).AssignableTo(argType) {
			out.Set(reflect.ValueOf(s))
			break
		}
		fallthrough
	default:
		return reflect.Value{}, fmt.Errorf("no conversion from string")
	}
	return out, nil
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// convertNumber converts between numeric kinds, refusing conversions that
// would lose the value.
func convertNumber(v reflect.Value, argType reflect.Type) (reflect.Value, error) {
	out := v.Convert(argType)
	back := out.Convert(v.Type())
	if !back.Equal(v) || isNegative(v) != isNegative(out) {
		return reflect.Value{}, fmt.Errorf("%v overflows %s", v.Interface(), argType)
	}
	return out, nil
}

func isNegative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}
