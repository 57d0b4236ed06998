package courier

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	"github.com/miruken-go/courier/convert"
	"github.com/miruken-go/courier/expr"
	"github.com/miruken-go/courier/internal"
	"github.com/miruken-go/courier/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MethodInvoker handles messages by invoking the best matching
// method of a target.  It is read-only after Start, so concurrent
// dispatch is safe once started.
type MethodInvoker struct {
	target      any
	display     string
	spec        *handlerSpec
	opts        Options
	json        *convert.JSON
	logger      logr.Logger
	tracer      trace.Tracer
	initialized bool
}

// TracerName names the default tracer.
const TracerName = "github.com/miruken-go/courier"

// NewMethodInvoker discovers the methods of target able to handle
// messages.  A func value is invoked for every message.
func NewMethodInvoker(target any, opts ...Option) (*MethodInvoker, error) {
	if internal.IsNil(target) {
		return nil, &DiscoveryError{nil, ErrNilTarget}
	}
	options := Options{
		Expressions: expr.New(),
		Converter:   convert.New(),
		Logger:      logr.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.Converter == nil {
		options.Converter = convert.New()
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer(TracerName)
	}
	typ := reflect.TypeOf(target)
	logger := log.For(options.Logger, target)
	spec, err := discover(target, &options, logger)
	if err != nil {
		return nil, err
	}
	return &MethodInvoker{
		target:  target,
		display: display(typ, spec, &options),
		spec:    spec,
		opts:    options,
		json:    convert.NewJSON(),
		logger:  logger,
		tracer:  options.Tracer,
	}, nil
}

// Target returns the object handling messages.
func (i *MethodInvoker) Target() any {
	return i.target
}

// Process handles a single message.
func (i *MethodInvoker) Process(ctx context.Context, msg Message) (any, error) {
	if msg == nil {
		return nil, &MessageHandlingError{nil, "message cannot be nil", nil}
	}
	return i.process(ctx, singleMessage(msg))
}

// ProcessBatch handles a batch of messages sharing headers.
func (i *MethodInvoker) ProcessBatch(
	ctx      context.Context,
	msgs     []Message,
	headers  MessageHeaders,
) (any, error) {
	return i.process(ctx, messageBatch(msgs, headers))
}

// Start prepares the method arguments and starts the target
// when it has a lifecycle.
func (i *MethodInvoker) Start() error {
	if err := i.initialize(); err != nil {
		return err
	}
	if lc, ok := i.target.(Lifecycle); ok {
		return lc.Start()
	}
	return nil
}

// Stop stops the target when it has a lifecycle.
func (i *MethodInvoker) Stop() error {
	if lc, ok := i.target.(Lifecycle); ok {
		return lc.Stop()
	}
	return nil
}

// IsRunning reports if the target is running.  Targets without
// a lifecycle are always running.
func (i *MethodInvoker) IsRunning() bool {
	if lc, ok := i.target.(Lifecycle); ok {
		return lc.IsRunning()
	}
	return true
}

func (i *MethodInvoker) String() string {
	return i.display
}

// initialize compiles method expressions once.  It is not
// synchronized, Start must complete before concurrent dispatch.
func (i *MethodInvoker) initialize() error {
	if i.initialized {
		return nil
	}
	parser := i.opts.Expressions
	if err := i.spec.each(func(h *HandlerMethod) error {
		return h.compile(parser)
	}); err != nil {
		return &DiscoveryError{reflect.TypeOf(i.target), err}
	}
	i.initialized = true
	return nil
}

func (i *MethodInvoker) process(
	ctx    context.Context,
	params *parameters,
) (result any, err error) {
	ctx, span := i.tracer.Start(ctx, "courier.process",
		trace.WithAttributes(
			attribute.String("courier.handler", i.display),
			attribute.Bool("courier.batch", params.batch())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = i.initialize(); err != nil {
		return nil, err
	}
	h, err := i.handlerFor(params)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("courier.method", h.name))
	if params, err = i.decodeJSON(params, h); err != nil {
		return nil, err
	}
	inv := &invocation{ctx, params, i.opts.Converter}
	if result, err = h.invoke(inv); err != nil {
		return nil, err
	}
	if result != nil && i.opts.ExpectedType != nil {
		if result, err = i.opts.Converter.Convert(result, i.opts.ExpectedType); err != nil {
			return nil, &MessageHandlingError{params.envelope(),
				fmt.Sprintf("failed to convert result of %s to %v", h.name, i.opts.ExpectedType), err}
		}
	}
	return result, nil
}

// handlerFor selects the method for the parameters.
func (i *MethodInvoker) handlerFor(params *parameters) (*HandlerMethod, error) {
	spec := i.spec
	if spec.fixed != nil {
		return spec.fixed, nil
	}
	if params.batch() {
		if h, err := i.batchHandlerFor(params); h != nil || err != nil {
			return h, err
		}
	}
	key := params.dispatchType()
	for _, methods := range [...]*handlerMethods{&spec.methods, &spec.messageMethods} {
		match, err := ClosestMatch(key, methods.keys, true)
		if err != nil {
			return nil, &MessageHandlingError{params.envelope(), "ambiguous handler methods", err}
		}
		if match != nil {
			h := methods.get(match)
			i.logger.V(1).Info("selected method", "method", h.name, "payload", key)
			return h, nil
		}
	}
	if internal.IsIterable(key) || isSeq(key) {
		if h := spec.methods.get(IteratorKey); h != nil {
			return h, nil
		}
	}
	if h := spec.methods.get(VoidKey); h != nil {
		return h, nil
	}
	if spec.defaultMethod != nil {
		i.logger.V(1).Info("selected default method", "method", spec.defaultMethod.name, "payload", key)
		return spec.defaultMethod, nil
	}
	return nil, &MessageHandlingError{params.envelope(),
		fmt.Sprintf("no method of %s accepts %v", i.display, key), ErrNoCandidateMethods}
}

// batchHandlerFor selects a method exactly accepting []Message,
// then a method binding the batch to a collection.  Several
// collection methods are narrowed to those accepting every
// element of the batch.
func (i *MethodInvoker) batchHandlerFor(params *parameters) (*HandlerMethod, error) {
	methods := &i.spec.methods
	if h := methods.get(messageSliceType); h != nil {
		return h, nil
	}
	var lists []*HandlerMethod
	for _, key := range methods.keys {
		if h := methods.get(key); h.batchElem != nil {
			lists = append(lists, h)
		}
	}
	if len(lists) == 1 {
		return lists[0], nil
	}
	// elements assignable without conversion are preferred
	for _, converter := range [...]TypeConverter{nil, i.opts.Converter} {
		var found *HandlerMethod
		for _, h := range lists {
			if !h.acceptsBatch(params, converter) {
				continue
			}
			if found != nil {
				return nil, &MessageHandlingError{params.envelope(), "ambiguous handler methods",
					&AmbiguousMatchError{messageSliceType, [2]reflect.Type{found.targetType, h.targetType}}}
			}
			found = h
		}
		if found != nil {
			i.logger.V(1).Info("selected batch method", "method", found.name)
			return found, nil
		}
	}
	return nil, nil
}

// decodeJSON decodes a JSON document payload into the target
// type of the method.
func (i *MethodInvoker) decodeJSON(
	params *parameters,
	h      *HandlerMethod,
) (*parameters, error) {
	if params.batch() || !convert.IsJSON(params.headers.ContentType()) {
		return params, nil
	}
	payload := params.message.Payload()
	switch payload.(type) {
	case []byte, string:
	default:
		return params, nil
	}
	to := h.targetType
	if to == VoidKey || to == IteratorKey || to.Kind() == reflect.Interface {
		return params, nil
	}
	if reflect.TypeOf(payload).AssignableTo(to) {
		return params, nil
	}
	decoded, err := i.json.DecodePayload(payload, to)
	if err != nil {
		return nil, &MessageHandlingError{params.message,
			fmt.Sprintf("failed to decode json payload to %v", to), err}
	}
	return singleMessage(WithPayload(params.message, decoded)), nil
}

func display(typ reflect.Type, spec *handlerSpec, opts *Options) string {
	switch {
	case typ.Kind() == reflect.Func:
		return spec.fixed.name
	case spec.fixed != nil:
		return fmt.Sprintf("%v.%s", typ, spec.fixed.name)
	case opts.MethodName != "":
		return fmt.Sprintf("%v.%s", typ, opts.MethodName)
	}
	return fmt.Sprintf("%v.<candidates>", typ)
}
