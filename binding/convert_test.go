package qbind

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Level int

func TestConvertValue(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  interface{}
	}{
		{"nil to zero", nil, 0},
		{"same type", "x", "x"},
		{"assignable", "x", interface{}("x")},
		{"string to int", "42", 42},
		{"string to uint8", "200", uint8(200)},
		{"string to float", "1.5", 1.5},
		{"string to bool", "true", true},
		{"int to string", 42, "42"},
		{"float to string", 2.5, "2.5"},
		{"bool to string", true, "true"},
		{"stringer to string", 90 * time.Second, "1m30s"},
		{"int to float", 3, 3.0},
		{"whole float to int", 2.0, 2},
		{"int to int8", 100, int8(100)},
		{"named int", 3, Level(3)},
		{"text unmarshaler", "2024-05-01T12:00:00Z", stamp},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			argType := reflect.TypeOf(tc.want)
			if tc.name == "assignable" {
				argType = reflect.TypeOf((*interface{})(nil)).Elem()
			}
			v, err := convertValue(tc.value, argType)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Interface())
		})
	}
}

func TestConvertValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  interface{}
	}{
		{"not a number", "abc", 0},
		{"overflow", 300, int8(0)},
		{"fraction", 1.5, 0},
		{"negative to unsigned", -1, uint(0)},
		{"string to struct", "x", OrderLine{}},
		{"struct to int", OrderLine{}, 0},
		{"bad time", "yesterday", time.Time{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := convertValue(tc.value, reflect.TypeOf(tc.want))
			assert.Error(t, err)
		})
	}
}

func TestConverterFuncs(t *testing.T) {
	c := ConverterFuncs{
		To: func(v interface{}) (interface{}, error) {
			return strings.ToUpper(v.(string)), nil
		},
	}

	v, err := c.Convert("abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", v)

	// Nil From passes through
	v, err = c.ConvertBack("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}
