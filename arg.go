package courier

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/miruken-go/courier/internal"
)

type (
	// parameters are the inputs of a single dispatch.
	parameters struct {
		message  Message
		messages []Message
		headers  MessageHeaders
	}

	// invocation carries a dispatch to the arg resolvers.
	invocation struct {
		ctx       context.Context
		params    *parameters
		converter TypeConverter
	}

	// arg resolves a single method argument.
	arg interface {
		resolve(
			typ reflect.Type,
			inv *invocation,
		) (reflect.Value, error)
	}

	// expressionArg is an arg compiling expressions on startup.
	expressionArg interface {
		compile(parser ExpressionParser) error
	}
)


// parameters

func singleMessage(msg Message) *parameters {
	return &parameters{message: msg, headers: msg.Headers()}
}

func messageBatch(msgs []Message, headers MessageHeaders) *parameters {
	if headers == nil {
		headers = MessageHeaders{}
	}
	return &parameters{messages: msgs, headers: headers}
}

func (p *parameters) batch() bool {
	return p.message == nil
}

// dispatchType is the type used to select a handler method.
func (p *parameters) dispatchType() reflect.Type {
	if p.batch() {
		return messageSliceType
	}
	if payload := p.message.Payload(); payload != nil {
		return reflect.TypeOf(payload)
	}
	return internal.AnyType
}

func (p *parameters) payload() (any, error) {
	if p.batch() {
		return nil, errPayloadOfBatch
	}
	return p.message.Payload(), nil
}

// envelope is the message, or a synthetic message wrapping a
// batch and its merged headers.
func (p *parameters) envelope() Message {
	if p.batch() {
		return &GenericMessage[[]Message]{p.messages, p.headers}
	}
	return p.message
}

func (p *parameters) payloads() ([]any, error) {
	if !p.batch() {
		return nil, errNotBatch
	}
	payloads := make([]any, len(p.messages))
	for i, msg := range p.messages {
		payloads[i] = msg.Payload()
	}
	return payloads, nil
}

func (p *parameters) vars() map[string]any {
	return map[string]any{
		"payload": p.envelope().Payload(),
		"headers": p.headers,
		"message": p.envelope(),
	}
}


// invocation

func (inv *invocation) fail(description string, cause error) error {
	return &MessageHandlingError{inv.params.envelope(), description, cause}
}

// assign adapts or converts value to typ.
func (inv *invocation) assign(value any, typ reflect.Type) (reflect.Value, error) {
	if internal.IsNil(value) {
		switch typ.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(typ), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %v", typ)
	}
	if v, ok := Adapt(reflect.ValueOf(value), typ); ok {
		return v, nil
	}
	from := reflect.TypeOf(value)
	if inv.converter != nil && inv.converter.CanConvert(from, typ) {
		converted, err := inv.converter.Convert(value, typ)
		if err != nil {
			return reflect.Value{}, err
		}
		if converted == nil {
			return reflect.Zero(typ), nil
		}
		if cv := reflect.ValueOf(converted); cv.Type().AssignableTo(typ) {
			return cv, nil
		}
		return reflect.Value{}, fmt.Errorf(
			"converter returned %T which is not assignable to %v", converted, typ)
	}
	return reflect.Value{}, fmt.Errorf("%v is not assignable to %v", from, typ)
}

// slice builds a slice of typ from values.
func (inv *invocation) slice(values []any, typ reflect.Type) (reflect.Value, error) {
	if typ.Kind() == reflect.Array {
		if len(values) != typ.Len() {
			return reflect.Value{}, fmt.Errorf(
				"%d values do not fit array %v", len(values), typ)
		}
	}
	var out reflect.Value
	if typ.Kind() == reflect.Array {
		out = reflect.New(typ).Elem()
	} else {
		out = reflect.MakeSlice(typ, len(values), len(values))
	}
	for i, value := range values {
		v, err := inv.assign(value, typ.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

// seq builds an iter.Seq of typ yielding values.
func (inv *invocation) seq(values []any, typ reflect.Type) (reflect.Value, error) {
	elem, _ := internal.SeqElem(typ)
	items := make([]reflect.Value, len(values))
	for i, value := range values {
		v, err := inv.assign(value, elem)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = v
	}
	return reflect.MakeFunc(typ, func(in []reflect.Value) []reflect.Value {
		yield := in[0]
		for _, item := range items {
			if !yield.Call([]reflect.Value{item})[0].Bool() {
				break
			}
		}
		return nil
	}), nil
}

// zeroArg

type zeroArg struct{}

func (a zeroArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	return reflect.Zero(typ), nil
}

// contextArg

type contextArg struct{}

func (a contextArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	return reflect.ValueOf(inv.ctx), nil
}

// payloadArg

type payloadArg struct{}

func (a payloadArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	payload, err := inv.params.payload()
	if err != nil {
		return reflect.Value{}, inv.fail("invalid method parameter for payload", err)
	}
	v, err := inv.assign(payload, typ)
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind payload", err)
	}
	return v, nil
}

// payloadExprArg

type payloadExprArg struct {
	text string
	expr Expression
}

func (a *payloadExprArg) compile(parser ExpressionParser) (err error) {
	a.expr, err = parse(parser, a.text)
	return
}

func (a *payloadExprArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	if inv.params.batch() {
		return reflect.Value{}, inv.fail("invalid method parameter for payload", errPayloadOfBatch)
	}
	vars := inv.params.vars()
	out, err := a.expr.Evaluate(vars, vars["payload"], nil)
	if err != nil {
		return reflect.Value{}, inv.fail(
			fmt.Sprintf("failed to evaluate payload expression %q", a.text), rootCause(err))
	}
	v, err := inv.assign(out, typ)
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind payload expression", err)
	}
	return v, nil
}

// payloadsArg

type payloadsArg struct {
	text string
	expr Expression
}

func (a *payloadsArg) compile(parser ExpressionParser) (err error) {
	if a.text != "" {
		a.expr, err = parse(parser, a.text)
	}
	return
}

func (a *payloadsArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	payloads, err := inv.params.payloads()
	if err != nil {
		return reflect.Value{}, inv.fail("invalid method parameter for payloads", err)
	}
	if a.expr != nil {
		for i, msg := range inv.params.messages {
			vars := map[string]any{
				"payload": payloads[i],
				"headers": msg.Headers(),
				"message": msg,
			}
			if payloads[i], err = a.expr.Evaluate(vars, payloads[i], nil); err != nil {
				return reflect.Value{}, inv.fail(
					fmt.Sprintf("failed to evaluate payloads expression %q", a.text), rootCause(err))
			}
		}
	}
	v, err := inv.slice(payloads, typ)
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind payloads", err)
	}
	return v, nil
}

// headersArg

type headersArg struct{}

func (a headersArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	headers := inv.params.headers
	if hv := reflect.ValueOf(headers); hv.Type().AssignableTo(typ) {
		return hv, nil
	}
	if typ.Key().Kind() != reflect.String {
		return reflect.Value{}, inv.fail("unable to bind headers",
			fmt.Errorf("headers map %v must have string keys", typ))
	}
	out := reflect.MakeMapWithSize(typ, len(headers))
	for name, value := range headers {
		v, err := inv.assign(value, typ.Elem())
		if err != nil {
			continue
		}
		out.SetMapIndex(reflect.ValueOf(name).Convert(typ.Key()), v)
	}
	return out, nil
}

// headerArg

type headerArg struct {
	headerName
	expr Expression
}

func (a *headerArg) compile(parser ExpressionParser) (err error) {
	if a.relative != "" {
		a.expr, err = parse(parser, "header"+a.relative)
	}
	return
}

func (a *headerArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	value, ok := inv.params.headers.Get(a.name)
	if !ok || value == nil {
		if a.required {
			return reflect.Value{}, inv.fail(
				fmt.Sprintf("required header %q not available", a.name), ErrMissingHeader)
		}
		return reflect.Zero(typ), nil
	}
	if a.expr != nil {
		out, err := a.expr.Evaluate(map[string]any{"header": value}, value, nil)
		if err != nil {
			return reflect.Value{}, inv.fail(
				fmt.Sprintf("failed to evaluate header %q expression %q", a.name, a.relative),
				rootCause(err))
		}
		value = out
	}
	v, err := inv.assign(value, typ)
	if err != nil {
		return reflect.Value{}, inv.fail(fmt.Sprintf("unable to bind header %q", a.name), err)
	}
	return v, nil
}

// messageArg

type messageArg struct{}

func (a messageArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	msg := inv.params.envelope()
	if v := reflect.ValueOf(msg); v.Type().AssignableTo(typ) {
		return v, nil
	}
	proto, ok := messageOf(typ, nil, nil)
	if !ok {
		return reflect.Value{}, inv.fail("unable to bind message",
			fmt.Errorf("%T is not assignable to %v", msg, typ))
	}
	payload, err := inv.assign(msg.Payload(), proto.(typedMessage).payloadType())
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind message payload", err)
	}
	rebuilt, _ := messageOf(typ, valueOf(payload), msg.Headers())
	return reflect.ValueOf(rebuilt), nil
}

// messagesArg

type messagesArg struct{}

func (a messagesArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	if !inv.params.batch() {
		return reflect.Value{}, inv.fail("invalid method parameter for messages", errNotBatch)
	}
	values := make([]any, len(inv.params.messages))
	for i, msg := range inv.params.messages {
		values[i] = msg
	}
	var v reflect.Value
	var err error
	if typ.Kind() == reflect.Func {
		v, err = inv.seq(values, typ)
	} else {
		v, err = inv.slice(values, typ)
	}
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind messages", err)
	}
	return v, nil
}

// collectionArg

type collectionArg struct {
	list bool
}

func (a collectionArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	if !a.list {
		return payloadArg{}.resolve(typ, inv)
	}
	payloads, err := inv.params.payloads()
	if err != nil {
		return reflect.Value{}, inv.fail("invalid method parameter for payloads", err)
	}
	v, err := inv.slice(payloads, typ)
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind payloads", err)
	}
	return v, nil
}

// iteratorArg

type iteratorArg struct {
	list bool
}

func (a iteratorArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	var values []any
	if a.list {
		payloads, err := inv.params.payloads()
		if err != nil {
			return reflect.Value{}, inv.fail("invalid method parameter for payloads", err)
		}
		values = payloads
	} else {
		payload, err := inv.params.payload()
		if err != nil {
			return reflect.Value{}, inv.fail("invalid method parameter for payload", err)
		}
		if pv := reflect.ValueOf(payload); pv.IsValid() && pv.Type().AssignableTo(typ) {
			return pv, nil
		}
		if values, err = elements(payload); err != nil {
			return reflect.Value{}, inv.fail("unable to iterate payload", err)
		}
	}
	v, err := inv.seq(values, typ)
	if err != nil {
		return reflect.Value{}, inv.fail("unable to bind iterator", err)
	}
	return v, nil
}

// mapArg binds an unqualified map parameter to the payload when
// it is a map, otherwise to the headers.
type mapArg struct{}

func (a mapArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	if !inv.params.batch() {
		if payload := inv.params.message.Payload(); payload != nil {
			if pv := reflect.ValueOf(payload); pv.Kind() == reflect.Map {
				v, err := inv.assign(payload, typ)
				if err != nil {
					return reflect.Value{}, inv.fail("unable to bind payload map", err)
				}
				return v, nil
			}
		}
	}
	return headersArg{}.resolve(typ, inv)
}

// specArg wraps a resolved value in its anonymous struct.
type specArg struct {
	arg
	index int
}

func (a *specArg) resolve(
	typ reflect.Type,
	inv *invocation,
) (reflect.Value, error) {
	val, err := a.arg.resolve(typ.Elem().Field(a.index).Type, inv)
	if err != nil {
		return reflect.Value{}, err
	}
	wrapper := reflect.New(typ.Elem())
	wrapper.Elem().Field(a.index).Set(val)
	return wrapper, nil
}

func (a *specArg) compile(parser ExpressionParser) error {
	if compiler, ok := a.arg.(expressionArg); ok {
		return compiler.compile(parser)
	}
	return nil
}

func parse(parser ExpressionParser, text string) (Expression, error) {
	if parser == nil {
		return nil, fmt.Errorf("%w for %q", ErrNoExpressionParser, text)
	}
	return parser.Parse(text)
}

func elements(collection any) ([]any, error) {
	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]any, v.Len())
		for i := range values {
			values[i] = v.Index(i).Interface()
		}
		return values, nil
	case reflect.Map:
		values := make([]any, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			values = append(values, iter.Value().Interface())
		}
		return values, nil
	}
	return nil, fmt.Errorf("%T is not iterable", collection)
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

var (
	messageSliceType = reflect.TypeFor[[]Message]()

	ErrMissingHeader  = errors.New("missing required header")
	errPayloadOfBatch = errors.New("payload is not available for a batch of messages, was expecting a collection")
	errNotBatch       = errors.New("was expecting a batch of messages")
)
