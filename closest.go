package courier

import (
	"math"
	"reflect"

	"github.com/miruken-go/courier/internal"
)

// ClosestMatch returns the candidate type closest to target, or
// nil if no candidate is compatible.  The distance of a candidate
// grows by 2 for every ancestor of target it is also compatible
// with, where ancestors are the chain of first embedded fields
// ending in the implicit any root, and by 1 when the candidate is
// an interface.  Equal minimum distances fail with an
// AmbiguousMatchError when failOnTie is set, otherwise the first
// in candidate order wins.
func ClosestMatch(
	target     reflect.Type,
	candidates []reflect.Type,
	failOnTie  bool,
) (reflect.Type, error) {
	var closest, tied reflect.Type
	minWeight := math.MaxInt
	for _, candidate := range candidates {
		weight := distance(candidate, target)
		if weight < minWeight {
			minWeight, closest, tied = weight, candidate, nil
		} else if weight == minWeight && weight < math.MaxInt && tied == nil {
			tied = candidate
		}
	}
	if failOnTie && tied != nil {
		return nil, &AmbiguousMatchError{target, [2]reflect.Type{closest, tied}}
	}
	return closest, nil
}

// Adapt returns value as a value of type to by assignment or by
// descending embedded fields.
func Adapt(value reflect.Value, to reflect.Type) (reflect.Value, bool) {
	for value.IsValid() {
		if value.Type().AssignableTo(to) {
			return value, true
		}
		up := parent(value.Type())
		if up == nil {
			break
		}
		if value.Kind() != reflect.Ptr {
			value = value.Field(0)
			continue
		}
		if value.IsNil() {
			break
		}
		field := value.Elem().Field(0)
		if up.Kind() == reflect.Ptr && field.Kind() != reflect.Ptr {
			field = field.Addr()
		}
		value = field
	}
	return reflect.Value{}, false
}

func distance(candidate, target reflect.Type) int {
	if !compatible(candidate, target) {
		return math.MaxInt
	}
	weight := 0
	for ancestor := parent(target); ; ancestor = parent(ancestor) {
		if ancestor == nil {
			if candidate == internal.AnyType {
				weight += 2
			}
			break
		}
		if !compatible(candidate, ancestor) {
			break
		}
		weight += 2
	}
	if candidate.Kind() == reflect.Interface && candidate != internal.AnyType {
		weight++
	}
	return weight
}

func compatible(candidate, typ reflect.Type) bool {
	for ; typ != nil; typ = parent(typ) {
		if typ.AssignableTo(candidate) {
			return true
		}
	}
	return false
}

// parent returns the type of the first embedded field of a
// struct.  The parent of a struct pointer is a pointer.
func parent(typ reflect.Type) reflect.Type {
	ptr := typ.Kind() == reflect.Ptr
	if ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct || typ.NumField() == 0 {
		return nil
	}
	field := typ.Field(0)
	if !field.Anonymous || !field.IsExported() {
		return nil
	}
	if ptr && field.Type.Kind() != reflect.Ptr {
		return reflect.PointerTo(field.Type)
	}
	return field.Type
}
