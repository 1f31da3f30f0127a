package utility

import (
	"reflect"
)

// TypeName returns a printable name for t, "<nil>" for a nil type.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice, func,
// chan or interface.
func IsNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// SameInstance reports referential identity of a and b. Pointers are
// compared by address, other comparable values with ==. Values that are
// not comparable all the way down are never identical.
func SameInstance(a interface{}, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) || !Comparable(a) || !Comparable(b) {
		return false
	}
	return a == b
}

// Comparable reports whether v can be used as a map key. Interface fields
// of structs and arrays are checked by their dynamic value.
func Comparable(v interface{}) bool {
	if v == nil {
		return false
	}
	return comparableValue(reflect.ValueOf(v))
}

func comparableValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return comparableValue(rv.Elem())
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !comparableValue(rv.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		if !rv.Type().Comparable() {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if !comparableValue(rv.Index(i)) {
				return false
			}
		}
		return true
	}
	return rv.Type().Comparable()
}
