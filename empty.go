package asyncstep

import (
	"fmt"
	"reflect"
)

// Emptier lets a result type decide on its own emptiness.
type Emptier interface {
	IsEmpty() bool
}

// IsEmpty reports whether a step result counts as absent: nil, a nil pointer,
// an empty string/slice/map/array/channel, false, or an Emptier reporting true.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan:
		if rv.IsNil() {
			return true
		}
	}

	if e, ok := v.(Emptier); ok {
		return e.IsEmpty()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	}
	return false
}

// IsLoggable reports whether fmt renders v into something a reader of a report
// can use. Pointers, structs, funcs and channels only print addresses or noise.
func IsLoggable(v any) bool {
	if v == nil {
		return true
	}

	switch v.(type) {
	case fmt.Stringer, error:
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !IsLoggable(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if !IsLoggable(iter.Key().Interface()) || !IsLoggable(iter.Value().Interface()) {
				return false
			}
		}
		return true
	}
	return false
}

// DescribeValue renders v for diagnostics, falling back to its type name.
func DescribeValue(v any) string {
	if IsLoggable(v) {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("<%T>", v)
}
