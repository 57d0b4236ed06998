package courier

import (
	"maps"
	"reflect"
	"time"

	"github.com/oklog/ulid/v2"
)

type (
	// MessageHeaders are the headers carried by a Message.
	// Headers are treated as immutable once the Message is built.
	MessageHeaders map[string]any

	// Message is a payload and its headers.
	Message interface {
		Payload() any
		Headers() MessageHeaders
	}

	// GenericMessage is a Message with a typed payload.
	// A handler parameter of type *GenericMessage[T] records T
	// as the payload type it accepts.
	GenericMessage[T any] struct {
		payload T
		headers MessageHeaders
	}

	// typedMessage is implemented by every *GenericMessage[T].
	typedMessage interface {
		Message
		payloadType() reflect.Type
		reset(payload any, headers MessageHeaders)
	}
)

// Well known header names.
const (
	IdHeader          = "id"
	TimestampHeader   = "timestamp"
	ContentTypeHeader = "contentType"
)


// MessageHeaders

// Get returns the header value and true if present.
func (h MessageHeaders) Get(name string) (any, bool) {
	v, ok := h[name]
	return v, ok
}

// ID returns the message id.
func (h MessageHeaders) ID() string {
	id, _ := h[IdHeader].(string)
	return id
}

// Timestamp returns the creation time in unix milliseconds.
func (h MessageHeaders) Timestamp() int64 {
	ts, _ := h[TimestampHeader].(int64)
	return ts
}

// ContentType returns the content type header.
func (h MessageHeaders) ContentType() string {
	ct, _ := h[ContentTypeHeader].(string)
	return ct
}


// GenericMessage

func (m *GenericMessage[T]) Payload() any {
	return m.payload
}

// Body returns the typed payload.
func (m *GenericMessage[T]) Body() T {
	return m.payload
}

func (m *GenericMessage[T]) Headers() MessageHeaders {
	return m.headers
}

func (m *GenericMessage[T]) payloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (m *GenericMessage[T]) reset(payload any, headers MessageHeaders) {
	if p, ok := payload.(T); ok {
		m.payload = p
	} else if payload == nil {
		var zero T
		m.payload = zero
	} else {
		reflect.ValueOf(&m.payload).Elem().Set(reflect.ValueOf(payload))
	}
	m.headers = headers
}

// NewMessage builds a GenericMessage from a payload and optional
// headers.  The id and timestamp headers are generated unless
// supplied.
func NewMessage[T any](payload T, headers map[string]any) *GenericMessage[T] {
	h := make(MessageHeaders, len(headers)+2)
	maps.Copy(h, headers)
	if _, ok := h[IdHeader]; !ok {
		h[IdHeader] = ulid.Make().String()
	}
	if _, ok := h[TimestampHeader]; !ok {
		h[TimestampHeader] = time.Now().UnixMilli()
	}
	return &GenericMessage[T]{payload, h}
}

// WithPayload returns a message with the payload replaced and the
// headers of msg retained.
func WithPayload(msg Message, payload any) Message {
	return &GenericMessage[any]{payload, msg.Headers()}
}

// messageOf builds an empty *GenericMessage[T] for the message
// type typ and fills it.
func messageOf(typ reflect.Type, payload any, headers MessageHeaders) (Message, bool) {
	if typ.Kind() != reflect.Ptr {
		return nil, false
	}
	if msg, ok := reflect.New(typ.Elem()).Interface().(typedMessage); ok {
		msg.reset(payload, headers)
		return msg, true
	}
	return nil, false
}

var messageType = reflect.TypeFor[Message]()
