package qbind

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// typeInfo is the internal parsing of a Go struct into the set of
// properties that paths can name. Names follow the rules of typeFieldName;
// both the Go field name and its lowercase form are accepted on lookup.
type typeInfo struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`

	propertyFieldIndex map[string][]int
	propertyType       map[string]reflect.Type
	// Go field name -> property name, where they differ
	aliases map[string]string
}

var (
	knownTypeInfo   = make(map[reflect.Type]*typeInfo)
	knownTypeInfoMu sync.RWMutex
)

var objectInterfaceType = reflect.TypeOf((*Object)(nil)).Elem()

func typeShouldIgnoreField(field reflect.StructField) bool {
	if field.PkgPath != "" && !field.Anonymous {
		// Unexported
		return true
	} else if field.Tag.Get("bind") == "-" || field.Tag.Get("json") == "-" {
		return true
	} else if field.Type.Kind() == reflect.Func || field.Type.Kind() == reflect.Chan {
		return true
	} else if field.Anonymous && field.Type == objectInterfaceType {
		return true
	} else {
		return false
	}
}

func lowerFirst(name string) string {
	if len(name) > 0 {
		name = strings.ToLower(string(name[0])) + name[1:]
	}
	return name
}

func typeFieldName(field reflect.StructField) string {
	name := lowerFirst(field.Name)
	if tag := field.Tag.Get("json"); len(tag) > 0 {
		tags := strings.Split(tag, ",")
		if len(tags) > 0 && len(tags[0]) > 0 {
			name = tags[0]
		}
	}
	return name
}

func typeInfoTypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	switch t.Kind() {
	case reflect.Ptr:
		return typeInfoTypeName(t.Elem())

	case reflect.Bool:
		return "bool"

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "int"

	case reflect.Float32, reflect.Float64:
		return "double"

	case reflect.String:
		return "string"

	case reflect.Array, reflect.Slice:
		return "array"

	case reflect.Map:
		return "map"

	case reflect.Struct:
		if reflect.PtrTo(t).Implements(modelDataSourceType) {
			return "model"
		} else if _, ok := t.FieldByName("Object"); ok {
			return "object"
		} else {
			return "map"
		}

	default:
		return "var"
	}
}

func parseType(t reflect.Type) *typeInfo {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	knownTypeInfoMu.RLock()
	ti, exists := knownTypeInfo[t]
	knownTypeInfoMu.RUnlock()
	if exists {
		return ti
	}

	ti = &typeInfo{
		Name:               t.Name(),
		Properties:         make(map[string]string),
		propertyFieldIndex: make(map[string][]int),
		propertyType:       make(map[string]reflect.Type),
		aliases:            make(map[string]string),
	}
	if t.Kind() == reflect.Struct {
		typeFieldsToTypeInfo(ti, t, []int{})
	}

	knownTypeInfoMu.Lock()
	if existing, ok := knownTypeInfo[t]; ok {
		ti = existing
	} else {
		knownTypeInfo[t] = ti
	}
	knownTypeInfoMu.Unlock()
	return ti
}

func typeFieldsToTypeInfo(ti *typeInfo, t reflect.Type, index []int) {
	var anonStructs []reflect.StructField

	numFields := t.NumField()
	for i := 0; i < numFields; i++ {
		field := t.Field(i)
		if typeShouldIgnoreField(field) {
			continue
		} else if field.Anonymous {
			at := field.Type
			if at.Kind() == reflect.Ptr {
				at = at.Elem()
			}
			if at.Kind() == reflect.Struct {
				// Recurse into these at the end for breadth-first
				anonStructs = append(anonStructs, field)
				continue
			}
			if field.PkgPath != "" {
				continue
			}
		}
		name := typeFieldName(field)
		if _, shadowed := ti.propertyFieldIndex[name]; shadowed {
			continue
		}
		ti.Properties[name] = typeInfoTypeName(field.Type)
		ti.propertyFieldIndex[name] = append(append([]int{}, index...), field.Index...)
		ti.propertyType[name] = field.Type
		if field.Name != name {
			if _, taken := ti.aliases[field.Name]; !taken {
				ti.aliases[field.Name] = name
			}
		}
	}

	for _, ast := range anonStructs {
		at := ast.Type
		if at.Kind() == reflect.Ptr {
			at = at.Elem()
		}
		typeFieldsToTypeInfo(ti, at, append(append([]int{}, index...), ast.Index...))
	}
}

// canonical maps a property name to the name it is stored under,
// accepting the Go field name as well as the lowercase-first form.
func (t *typeInfo) canonical(name string) (string, bool) {
	if _, ok := t.propertyFieldIndex[name]; ok {
		return name, true
	}
	if alias, ok := t.aliases[name]; ok {
		return alias, true
	}
	if lower := lowerFirst(name); lower != name {
		if _, ok := t.propertyFieldIndex[lower]; ok {
			return lower, true
		}
	}
	if len(name) > 0 {
		if alias, ok := t.aliases[strings.ToUpper(name[:1])+name[1:]]; ok {
			return alias, true
		}
	}
	return "", false
}

func (t *typeInfo) lookup(name string) ([]int, reflect.Type, bool) {
	canon, ok := t.canonical(name)
	if !ok {
		return nil, nil, false
	}
	return t.propertyFieldIndex[canon], t.propertyType[canon], true
}

func (t *typeInfo) String() string {
	str, _ := json.MarshalIndent(t, "", "  ")
	return string(str)
}
