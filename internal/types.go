package internal

import (
	"context"
	"reflect"
)

var (
	AnyType       = reflect.TypeFor[any]()
	ErrorType     = reflect.TypeFor[error]()
	ContextType   = reflect.TypeFor[context.Context]()
	ByteSliceType = reflect.TypeFor[[]byte]()
)

// IsNil reports whether v is nil or holds a nil reference.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func,
		reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// IsIterable reports whether values of typ can be ranged over
// as a sequence of elements.
func IsIterable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return typ != ByteSliceType
	}
	return false
}

// SeqElem returns the element type of an iter.Seq shaped
// function type func(yield func(V) bool).
func SeqElem(typ reflect.Type) (reflect.Type, bool) {
	if typ.Kind() != reflect.Func || typ.NumIn() != 1 || typ.NumOut() != 0 {
		return nil, false
	}
	yield := typ.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() != 1 || yield.NumOut() != 1 ||
		yield.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return yield.In(0), true
}
