package convert

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

type (
	// Converter converts values between types.
	Converter interface {
		CanConvert(from, to reflect.Type) bool
		Convert(value any, to reflect.Type) (any, error)
	}

	// ConversionError reports a value that could not be converted.
	ConversionError struct {
		Value any
		To    reflect.Type
		Cause error
	}

	// Weak is the default Converter.  It assigns when possible,
	// converts between numeric kinds and otherwise decodes with
	// weakly typed mapstructure rules (string <-> number/bool,
	// map <-> struct, slice <-> slice).
	Weak struct {
		hooks []mapstructure.DecodeHookFunc
	}
)


// ConversionError

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %T to %v: %v", e.Value, e.To, e.Cause)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}


// Weak

func (w *Weak) CanConvert(from, to reflect.Type) bool {
	if to == nil {
		return false
	}
	if from == nil || from.AssignableTo(to) || to.Kind() == reflect.Interface && to.NumMethod() == 0 {
		return true
	}
	if isNumeric(from) && isNumeric(to) {
		return true
	}
	return decodable(from, to, 0)
}

func (w *Weak) Convert(value any, to reflect.Type) (any, error) {
	if to == nil {
		return nil, &ConversionError{value, to, ErrNoTargetType}
	}
	if value == nil {
		return reflect.Zero(to).Interface(), nil
	}
	val := reflect.ValueOf(value)
	from := val.Type()
	if from.AssignableTo(to) {
		return value, nil
	}
	if isNumeric(from) && isNumeric(to) {
		return val.Convert(to).Interface(), nil
	}
	if !decodable(from, to, 0) {
		return nil, &ConversionError{value, to, ErrNotConvertible}
	}
	out := reflect.New(to)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out.Interface(),
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(w.hooks...),
	})
	if err != nil {
		return nil, &ConversionError{value, to, err}
	}
	if err = decoder.Decode(value); err != nil {
		return nil, &ConversionError{value, to, err}
	}
	return out.Elem().Interface(), nil
}

// New returns a Weak converter.  Additional decode hooks run
// before the standard duration and time hooks.
func New(hooks ...mapstructure.DecodeHookFunc) *Weak {
	all := append(hooks,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
		mapstructure.StringToSliceHookFunc(","))
	return &Weak{hooks: all}
}

func isNumeric(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isScalar(typ reflect.Type) bool {
	return isNumeric(typ) || typ.Kind() == reflect.String || typ.Kind() == reflect.Bool
}

func decodable(from, to reflect.Type, depth int) bool {
	if depth > 8 {
		return false
	}
	if from.Kind() == reflect.Ptr {
		from = from.Elem()
	}
	if to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	if from.AssignableTo(to) || to.Kind() == reflect.Interface && to.NumMethod() == 0 {
		return true
	}
	switch {
	case isScalar(from) && isScalar(to):
		return true
	case from.Kind() == reflect.String && to.Kind() == reflect.Slice:
		return decodable(from, to.Elem(), depth+1)
	case (from.Kind() == reflect.Slice || from.Kind() == reflect.Array) &&
		(to.Kind() == reflect.Slice || to.Kind() == reflect.Array):
		return decodable(from.Elem(), to.Elem(), depth+1)
	case from.Kind() == reflect.Map || from.Kind() == reflect.Struct:
		return to.Kind() == reflect.Map || to.Kind() == reflect.Struct
	}
	return false
}

var (
	ErrNoTargetType   = errors.New("convert: no target type")
	ErrNotConvertible = errors.New("convert: types are not convertible")
)
