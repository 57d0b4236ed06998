package courier

import (
	"fmt"
	"reflect"
	"strings"
)

type (
	// ServiceActivator marks a method as eligible for service
	// activation.  Embed it in an anonymous struct parameter:
	//   func (h *Handler) Handle(_ *struct{ courier.ServiceActivator }, order Order)
	ServiceActivator struct{}

	// Default marks the method used when no other method matches.
	Default struct{}

	// Payload qualifies a value field as the message payload.
	// An expr tag evaluates an expression against the message
	// instead:
	//   name *struct{ courier.Payload `expr:"payload.Customer.Name"`; V string }
	Payload struct{}

	// Payloads qualifies a slice value field as the payloads of
	// a message batch.  An expr tag is evaluated per payload.
	Payloads struct{}

	// Headers qualifies a map value field as the message headers.
	Headers struct{}

	// Header qualifies a value field as a single message header.
	// The name tag holds the header name and an optional required
	// flag, defaulting to the value field name with a lower case
	// first letter.  A dotted name selects header a and evaluates
	// the rest as an expression against it, quote the name to
	// disable:
	//   user *struct{ courier.Header `name:"user.id,required"`; V string }
	//   ct   *struct{ courier.Header; ContentType string }
	Header struct{}

	// paramSpec describes an anonymous struct parameter.
	paramSpec struct {
		qualifier reflect.Type
		tag       reflect.StructTag
		markers   []reflect.Type
		index     int
		field     string
		value     reflect.Type
	}

	// headerName is a parsed Header name tag.
	headerName struct {
		name     string
		relative string
		required bool
	}
)

var (
	serviceActivatorType = reflect.TypeFor[ServiceActivator]()
	defaultType          = reflect.TypeFor[Default]()
	payloadType          = reflect.TypeFor[Payload]()
	payloadsType         = reflect.TypeFor[Payloads]()
	headersType          = reflect.TypeFor[Headers]()
	headerType           = reflect.TypeFor[Header]()
)

func isQualifier(typ reflect.Type) bool {
	switch typ {
	case payloadType, payloadsType, headersType, headerType:
		return true
	}
	return false
}

func (s *paramSpec) hasMarker(marker reflect.Type) bool {
	for _, m := range s.markers {
		if m == marker {
			return true
		}
	}
	return false
}

// parseParamSpec inspects a parameter of the form *struct{...}.
// Embedded fields are qualifiers or markers, and at most one
// named field receives the argument value.
func parseParamSpec(typ reflect.Type) (spec *paramSpec, ok bool, err error) {
	if typ.Kind() != reflect.Ptr {
		return nil, false, nil
	}
	st := typ.Elem()
	if st.Kind() != reflect.Struct || st.Name() != "" || st.NumField() == 0 {
		return nil, false, nil
	}
	spec = &paramSpec{index: -1}
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		switch {
		case field.Anonymous && isQualifier(field.Type):
			if spec.qualifier != nil {
				return nil, true, fmt.Errorf(
					"parameter %v has qualifiers %v and %v", typ, spec.qualifier, field.Type)
			}
			spec.qualifier, spec.tag = field.Type, field.Tag
		case field.Anonymous:
			spec.markers = append(spec.markers, field.Type)
		case spec.index >= 0:
			return nil, true, fmt.Errorf(
				"parameter %v has more than one value field", typ)
		case !field.IsExported():
			return nil, true, fmt.Errorf(
				"parameter %v value field %q must be exported", typ, field.Name)
		default:
			spec.index, spec.field, spec.value = i, field.Name, field.Type
		}
	}
	if spec.qualifier != nil && spec.index < 0 {
		return nil, true, fmt.Errorf(
			"parameter %v qualified by %v has no value field", typ, spec.qualifier)
	}
	if spec.qualifier == nil && spec.index >= 0 {
		return nil, true, fmt.Errorf(
			"parameter %v value field requires a qualifier", typ)
	}
	return spec, true, nil
}

// parseHeaderName parses a Header name tag.
func parseHeaderName(tag string, fallback string) (headerName, error) {
	var h headerName
	name, opts, _ := strings.Cut(tag, ",")
	for _, opt := range strings.Split(opts, ",") {
		switch strings.TrimSpace(opt) {
		case "":
		case "required":
			h.required = true
		default:
			return h, fmt.Errorf("unrecognized header option %q", opt)
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if name == "" {
		return h, fmt.Errorf("header name is required")
	}
	if quoted := len(name) > 1 && (name[0] == '\'' || name[0] == '"'); quoted {
		if name[len(name)-1] != name[0] {
			return h, fmt.Errorf("unterminated header name %s", name)
		}
		h.name = name[1 : len(name)-1]
		return h, nil
	}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		h.name, h.relative = name[:dot], name[dot:]
		return h, nil
	}
	h.name = name
	return h, nil
}
