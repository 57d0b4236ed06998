package courier

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
)

type (
	// handlerMethods are methods keyed by target type in
	// discovery order.
	handlerMethods struct {
		keys    []reflect.Type
		methods map[reflect.Type]*HandlerMethod
	}

	// handlerSpec is the outcome of discovery.  A fixed method
	// handles every message, otherwise the method is selected
	// by payload type.
	handlerSpec struct {
		fixed          *HandlerMethod
		methods        handlerMethods
		messageMethods handlerMethods
		defaultMethod  *HandlerMethod
	}
)


// handlerMethods

func (m *handlerMethods) len() int {
	return len(m.keys)
}

func (m *handlerMethods) get(key reflect.Type) *HandlerMethod {
	return m.methods[key]
}

// add inserts the method unless its key is taken, returning the
// method holding the key.
func (m *handlerMethods) add(h *HandlerMethod) *HandlerMethod {
	if existing, ok := m.methods[h.targetType]; ok {
		return existing
	}
	if m.methods == nil {
		m.methods = make(map[reflect.Type]*HandlerMethod)
	}
	m.keys = append(m.keys, h.targetType)
	m.methods[h.targetType] = h
	return nil
}

func (m *handlerMethods) single() *HandlerMethod {
	if len(m.keys) == 1 {
		return m.methods[m.keys[0]]
	}
	return nil
}


// handlerSpec

func (s *handlerSpec) each(f func(*HandlerMethod) error) error {
	if s.fixed != nil {
		return f(s.fixed)
	}
	for _, ms := range [...]*handlerMethods{&s.methods, &s.messageMethods} {
		for _, key := range ms.keys {
			if err := f(ms.methods[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// discover finds the methods of target able to handle messages.
func discover(
	target any,
	opts   *Options,
	logger logr.Logger,
) (*handlerSpec, error) {
	val := reflect.ValueOf(target)
	typ := val.Type()
	list := opts.MessageList == OptionTrue

	if typ.Kind() == reflect.Func {
		h, err := newHandlerMethod(funcName(val), val, list)
		if err != nil {
			return nil, &DiscoveryError{typ, err}
		}
		return fixed(typ, h, opts)
	}

	if method := opts.Method; method != nil {
		bound := val.MethodByName(method.Name)
		if !bound.IsValid() {
			return nil, &DiscoveryError{typ, fmt.Errorf("method %s not found", method.Name)}
		}
		h, err := newHandlerMethod(method.Name, bound, list)
		if err != nil {
			return nil, &DiscoveryError{typ, err}
		}
		return fixed(typ, h, opts)
	}

	var eligible []reflect.Method
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if excluded(method.Name, opts.MethodName) {
			continue
		}
		if opts.MethodName != "" && !inFamily(method.Name, opts.MethodName) {
			continue
		}
		if opts.Filter != nil && !opts.Filter(method) {
			continue
		}
		eligible = append(eligible, method)
	}
	explicit := opts.MethodName != "" && len(eligible) == 1

	var invalid error
	var ambiguous *AmbiguousMethodError
	var candidates, candidateMessages, fallback, fallbackMessages handlerMethods
	spec := &handlerSpec{}

	for _, method := range eligible {
		h, err := newHandlerMethod(method.Name, val.Method(method.Index), list)
		if err == nil && opts.ExpectedType != nil && !h.returnsValue {
			err = &IneligibleMethodError{method.Name, ErrMissingReturnType}
		}
		if err != nil {
			if explicit {
				invalid = multierror.Append(invalid, err)
			} else {
				logger.V(1).Info("skipping method", "method", method.Name, "reason", err.Error())
			}
			continue
		}
		if h.IsDefault() {
			if spec.defaultMethod != nil {
				invalid = multierror.Append(invalid, fmt.Errorf("%w: found %s and %s",
					ErrMultipleDefaults, spec.defaultMethod.name, h.name))
			} else {
				spec.defaultMethod = h
			}
		}
		if opts.Annotation == nil || h.HasMarker(opts.Annotation) {
			methods := &candidates
			if h.messageMethod {
				methods = &candidateMessages
			}
			if existing := methods.add(h); existing != nil {
				invalid = multierror.Append(invalid, &AmbiguousMethodError{
					h.targetType, [2]string{existing.name, h.name}})
			}
		} else {
			methods := &fallback
			if h.messageMethod {
				methods = &fallbackMessages
			}
			if existing := methods.add(h); existing != nil && ambiguous == nil {
				ambiguous = &AmbiguousMethodError{h.targetType, [2]string{existing.name, h.name}}
			}
		}
	}
	if invalid != nil {
		return nil, &DiscoveryError{typ, invalid}
	}

	switch {
	case candidates.len() > 0 || candidateMessages.len() > 0:
		spec.methods, spec.messageMethods = candidates, candidateMessages
	case ambiguous != nil && opts.Annotation == serviceActivatorType && typ.Implements(exchangerType):
		exchange, _ := typ.MethodByName("Exchange")
		h, err := newHandlerMethod(exchange.Name, val.Method(exchange.Index), list)
		if err != nil {
			return nil, &DiscoveryError{typ, err}
		}
		logger.V(1).Info("using legacy exchange method", "target", typ)
		return fixed(typ, h, opts)
	case ambiguous != nil:
		return nil, &DiscoveryError{typ, ambiguous}
	case fallback.len() > 0 || fallbackMessages.len() > 0:
		spec.methods, spec.messageMethods = fallback, fallbackMessages
	default:
		return nil, &DiscoveryError{typ, ErrNoEligibleMethods}
	}

	if spec.methods.len() == 1 && spec.messageMethods.len() == 0 {
		spec.fixed = spec.methods.single()
	} else if spec.messageMethods.len() == 1 && spec.methods.len() == 0 {
		spec.fixed = spec.messageMethods.single()
	}
	if err := expectedFeasible(spec, opts); err != nil {
		return nil, &DiscoveryError{typ, err}
	}
	logger.V(1).Info("discovered handler methods",
		"target", typ,
		"methods", spec.methods.len(),
		"messageMethods", spec.messageMethods.len(),
		"fixed", spec.fixed != nil,
		"default", spec.defaultMethod != nil)
	return spec, nil
}

func fixed(typ reflect.Type, h *HandlerMethod, opts *Options) (*handlerSpec, error) {
	if opts.ExpectedType != nil && !h.returnsValue {
		return nil, &DiscoveryError{typ, &IneligibleMethodError{h.name, ErrMissingReturnType}}
	}
	spec := &handlerSpec{fixed: h}
	if err := expectedFeasible(spec, opts); err != nil {
		return nil, &DiscoveryError{typ, err}
	}
	return spec, nil
}

// expectedFeasible checks some method result can be converted
// to the expected type.
func expectedFeasible(spec *handlerSpec, opts *Options) error {
	expected := opts.ExpectedType
	if expected == nil || opts.Converter == nil {
		return nil
	}
	feasible := false
	_ = spec.each(func(h *HandlerMethod) error {
		if rt := h.ResultType(); rt != nil {
			if rt.Kind() == reflect.Interface || opts.Converter.CanConvert(rt, expected) {
				feasible = true
			}
		}
		return nil
	})
	if !feasible {
		return fmt.Errorf("no method result can be converted to %v", expected)
	}
	return nil
}

// excluded reports methods never used for message handling.
// Lifecycle methods are only used when named explicitly.
func excluded(name, requested string) bool {
	switch name {
	case "String", "GoString", "Error":
		return true
	case "Start", "Stop", "IsRunning":
		return name != requested
	}
	return false
}

// inFamily reports if name is family or family followed by a
// suffix starting with an upper case letter, digit or underscore.
func inFamily(name, family string) bool {
	rest, ok := strings.CutPrefix(name, family)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '_'
}

func funcName(fun reflect.Value) string {
	if f := runtime.FuncForPC(fun.Pointer()); f != nil {
		name := f.Name()
		if dot := strings.LastIndexByte(name, '/'); dot >= 0 {
			name = name[dot+1:]
		}
		return name
	}
	return fun.Type().String()
}
