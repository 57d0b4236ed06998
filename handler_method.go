package courier

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/miruken-go/courier/internal"
)

type (
	// HandlerMethod is a method or function able to handle
	// messages.  Its parameters are analyzed once to decide the
	// single payload type it accepts and how each argument is
	// bound when a message arrives.
	HandlerMethod struct {
		name          string
		fun           reflect.Value
		funType       reflect.Type
		args          []arg
		targetType    reflect.Type
		messageMethod bool
		messageList   bool
		markers       []reflect.Type
		returnsValue  bool
		returnsError  bool
		batchElem     reflect.Type
		batchMessages bool
	}

	// voidKey is the target type of methods without a payload.
	voidKey struct{}

	// iteratorKey is the target type of methods accepting an
	// iter.Seq payload.
	iteratorKey struct{}
)

var (
	// VoidKey is the target type of methods without a payload
	// parameter.
	VoidKey = reflect.TypeFor[voidKey]()

	// IteratorKey is the target type shared by all methods
	// accepting an iter.Seq.
	IteratorKey = reflect.TypeFor[iteratorKey]()
)

func (h *HandlerMethod) Name() string {
	return h.name
}

// TargetType returns the payload type accepted, VoidKey or
// IteratorKey.
func (h *HandlerMethod) TargetType() reflect.Type {
	return h.targetType
}

// IsMessageMethod reports if the method accepts the Message.
func (h *HandlerMethod) IsMessageMethod() bool {
	return h.messageMethod
}

// CanProcessMessageList reports if the method handles batches.
func (h *HandlerMethod) CanProcessMessageList() bool {
	return h.messageList
}

// IsDefault reports if the method is marked Default.
func (h *HandlerMethod) IsDefault() bool {
	return h.HasMarker(defaultType)
}

// HasMarker reports if the method carries the marker.
func (h *HandlerMethod) HasMarker(marker reflect.Type) bool {
	for _, m := range h.markers {
		if m == marker {
			return true
		}
	}
	return false
}

// ResultType returns the value result type or nil.
func (h *HandlerMethod) ResultType() reflect.Type {
	if h.returnsValue {
		return h.funType.Out(0)
	}
	return nil
}

func (h *HandlerMethod) String() string {
	return fmt.Sprintf("%s(%v)", h.name, h.targetType)
}

// compile prepares the expressions of the arguments.
func (h *HandlerMethod) compile(parser ExpressionParser) error {
	for _, a := range h.args {
		if compiler, ok := a.(expressionArg); ok {
			if err := compiler.compile(parser); err != nil {
				return &IneligibleMethodError{h.name, err}
			}
		}
	}
	return nil
}

// invoke binds the arguments and calls the method.  Errors
// returned by the method are passed through unchanged.
func (h *HandlerMethod) invoke(inv *invocation) (any, error) {
	in := make([]reflect.Value, len(h.args))
	for i, a := range h.args {
		v, err := a.resolve(h.funType.In(i), inv)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	var out []reflect.Value
	if h.funType.IsVariadic() {
		out = h.fun.CallSlice(in)
	} else {
		out = h.fun.Call(in)
	}
	var result any
	var err error
	if h.returnsValue {
		result = valueOf(out[0])
		if internal.IsNil(result) {
			result = nil
		}
	}
	if h.returnsError {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	return result, err
}

// newHandlerMethod analyzes the parameters and results of fun.
func newHandlerMethod(
	name        string,
	fun         reflect.Value,
	messageList bool,
) (*HandlerMethod, error) {
	h := &HandlerMethod{
		name:        name,
		fun:         fun,
		funType:     fun.Type(),
		messageList: messageList,
	}
	if err := h.analyzeResults(); err != nil {
		return nil, &IneligibleMethodError{name, err}
	}
	if err := h.analyzeParameters(); err != nil {
		return nil, &IneligibleMethodError{name, err}
	}
	return h, nil
}

func (h *HandlerMethod) analyzeResults() error {
	typ := h.funType
	switch typ.NumOut() {
	case 0:
	case 1:
		if typ.Out(0) == internal.ErrorType {
			h.returnsError = true
		} else {
			h.returnsValue = true
		}
	case 2:
		if typ.Out(1) != internal.ErrorType {
			return fmt.Errorf("second result must be error, found %v", typ.Out(1))
		}
		h.returnsValue, h.returnsError = true, true
	default:
		return fmt.Errorf("at most a value and error can be returned, found %d results", typ.NumOut())
	}
	return nil
}

func (h *HandlerMethod) analyzeParameters() (err error) {
	typ := h.funType
	numIn := typ.NumIn()
	h.args = make([]arg, numIn)
	unqualifiedMap := false
	for i := 0; i < numIn; i++ {
		in := typ.In(i)
		if in == internal.ContextType {
			h.args[i] = contextArg{}
			continue
		}
		if spec, ok, err := parseParamSpec(in); ok {
			if err != nil {
				return err
			}
			if h.args[i], err = h.qualified(spec); err != nil {
				return err
			}
			continue
		}
		switch {
		case in.Implements(messageType):
			if err = h.exclusive(messagePayloadType(in)); err != nil {
				return err
			}
			h.messageMethod = true
			h.args[i] = messageArg{}
		case h.messageList && isMessages(in):
			if err = h.exclusive(in); err != nil {
				return err
			}
			h.args[i] = messagesArg{}
			h.batchElem, h.batchMessages = elemOf(in), true
		case (in.Kind() == reflect.Slice || in.Kind() == reflect.Array) && in != internal.ByteSliceType:
			if err = h.exclusive(in); err != nil {
				return err
			}
			h.args[i] = collectionArg{h.messageList}
			if h.messageList {
				h.batchElem = in.Elem()
			}
		case isSeq(in):
			if err = h.exclusive(IteratorKey); err != nil {
				return err
			}
			h.args[i] = iteratorArg{h.messageList}
			if h.messageList {
				h.batchElem = elemOf(in)
			}
		case in.Kind() == reflect.Map:
			if unqualifiedMap {
				return errors.New("found more than one unqualified map parameter")
			}
			unqualifiedMap = true
			h.args[i] = mapArg{}
		default:
			if err = h.exclusive(in); err != nil {
				return err
			}
			h.args[i] = payloadArg{}
		}
	}
	if h.targetType == nil {
		h.targetType = VoidKey
	} else if unqualifiedMap && h.targetType.Kind() == reflect.Map {
		return errors.New("unqualified map parameter is ambiguous with a map payload")
	}
	return nil
}

func (h *HandlerMethod) qualified(spec *paramSpec) (arg, error) {
	h.markers = append(h.markers, spec.markers...)
	if spec.qualifier == nil {
		return zeroArg{}, nil
	}
	var inner arg
	text := strings.TrimSpace(spec.tag.Get("expr"))
	switch spec.qualifier {
	case payloadType:
		if text != "" {
			inner = &payloadExprArg{text: text}
		} else {
			if err := h.exclusive(spec.value); err != nil {
				return nil, err
			}
			inner = payloadArg{}
		}
	case payloadsType:
		if !h.messageList {
			return nil, errors.New("payloads parameter requires message list processing")
		}
		if spec.value.Kind() != reflect.Slice {
			return nil, fmt.Errorf("payloads parameter must be a slice, found %v", spec.value)
		}
		if text == "" {
			if err := h.exclusive(spec.value); err != nil {
				return nil, err
			}
			h.batchElem = spec.value.Elem()
		} else {
			h.batchElem = internal.AnyType
		}
		inner = &payloadsArg{text: text}
	case headersType:
		if spec.value.Kind() != reflect.Map {
			return nil, fmt.Errorf("headers parameter must be a map, found %v", spec.value)
		}
		inner = headersArg{}
	case headerType:
		name, err := parseHeaderName(spec.tag.Get("name"), lowerFirst(spec.field))
		if err != nil {
			return nil, err
		}
		inner = &headerArg{headerName: name}
	}
	return &specArg{inner, spec.index}, nil
}

// acceptsBatch reports if every message, or payload, of the
// batch can be bound to the collection of the method.
func (h *HandlerMethod) acceptsBatch(
	params    *parameters,
	converter TypeConverter,
) bool {
	if h.batchElem == nil {
		return false
	}
	for _, msg := range params.messages {
		var value any = msg
		if !h.batchMessages {
			value = msg.Payload()
		}
		if internal.IsNil(value) {
			continue
		}
		v := reflect.ValueOf(value)
		if _, ok := Adapt(v, h.batchElem); ok {
			continue
		}
		if converter == nil || !converter.CanConvert(v.Type(), h.batchElem) {
			return false
		}
	}
	return true
}

func (h *HandlerMethod) exclusive(typ reflect.Type) error {
	if h.targetType != nil {
		return fmt.Errorf("%w: %v and %v", ErrTwoExclusiveTargets, h.targetType, typ)
	}
	h.targetType = typ
	return nil
}

// messagePayloadType returns T of *GenericMessage[T], or any.
func messagePayloadType(typ reflect.Type) reflect.Type {
	if msg, ok := messageOf(typ, nil, nil); ok {
		return msg.(typedMessage).payloadType()
	}
	return internal.AnyType
}

func isMessages(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Slice, reflect.Array:
		return typ.Elem().Implements(messageType)
	}
	if elem, ok := internal.SeqElem(typ); ok {
		return elem.Implements(messageType)
	}
	return false
}

// elemOf returns the element type of a slice, array or iter.Seq.
func elemOf(typ reflect.Type) reflect.Type {
	switch typ.Kind() {
	case reflect.Slice, reflect.Array:
		return typ.Elem()
	}
	elem, _ := internal.SeqElem(typ)
	return elem
}

func isSeq(typ reflect.Type) bool {
	_, ok := internal.SeqElem(typ)
	return ok
}

// lowerFirst lower cases the first letter of s.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
