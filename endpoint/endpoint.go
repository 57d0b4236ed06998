package endpoint

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/go-logr/logr"
	"github.com/miruken-go/courier"
	"github.com/miruken-go/courier/channel"
	"github.com/miruken-go/courier/config"
	"github.com/miruken-go/courier/log"
	"github.com/miruken-go/courier/pool"
	"github.com/miruken-go/courier/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Handler handles messages arriving at an endpoint.
	Handler interface {
		courier.Lifecycle
		Name() string
		Handle(ctx context.Context, msg courier.Message) (any, error)
	}

	// TargetFactory creates the targets of a pooled endpoint.
	// Each pooled item invokes its own target.
	TargetFactory func() (any, error)

	// Options configure an endpoint.
	Options struct {
		Courier []courier.Option
		Output  channel.Sender
		Logger  logr.Logger
		Tracer  trace.Tracer
		Metrics *pool.Metrics
		Emit    log.Emit
	}

	// Option configures Options.
	Option func(*Options)

	// replier dispatches messages and sends the replies.
	replier struct {
		name         string
		output       channel.Sender
		sendTimeout  time.Duration
		requireReply bool
		emit         log.Emit
		logger       logr.Logger
		tracer       trace.Tracer
	}
)

// CorrelationIdHeader carries the id of the request a reply answers.
const CorrelationIdHeader = "correlationId"

// TracerName names the default tracer.
const TracerName = "github.com/miruken-go/courier/endpoint"


// Options

// WithCourierOptions adds options to the method invokers.
func WithCourierOptions(opts ...courier.Option) Option {
	return func(o *Options) {
		o.Courier = append(o.Courier, opts...)
	}
}

// WithOutput sends replies to output instead of the configured channel.
func WithOutput(output channel.Sender) Option {
	return func(o *Options) {
		o.Output = output
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTracer sets the tracer spanning each message.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}

// WithMetrics reports pooled endpoints to metrics.
func WithMetrics(metrics *pool.Metrics) Option {
	return func(o *Options) {
		o.Metrics = metrics
	}
}

// WithEmit logs each message handled at the emit verbosity.
func WithEmit(emit log.Emit) Option {
	return func(o *Options) {
		o.Emit = emit
	}
}

// New creates the endpoint described by cfg.  The target is
// resolved by name from reg.  A pooled endpoint requires the
// target to be registered as a TargetFactory.  A configured
// output channel missing from reg is created as a channel.Queue
// and registered.
func New(
	reg  *registry.Registry,
	cfg  config.ActivatorConfig,
	opts ...Option,
) (Handler, error) {
	if reg == nil {
		panic("reg cannot be nil")
	}
	o := options(opts)
	cfg.ConfigurationReady()
	if o.Output == nil && cfg.Output != nil {
		output, err := outputChannel(reg, cfg.Output, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
		}
		o.Output = output
	}
	if cfg.Pooled {
		factory, err := targetFactory(reg, cfg.Target)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
		}
		pooled, err := NewPooled(factory, cfg, withOptions(o))
		if err != nil {
			return nil, err
		}
		return pooled, nil
	}
	target, ok := reg.Lookup(cfg.Target)
	if !ok {
		return nil, fmt.Errorf("endpoint %q: target %q: %w",
			cfg.Name, cfg.Target, registry.ErrNotFound)
	}
	activator, err := NewActivator(target, cfg, withOptions(o))
	if err != nil {
		return nil, err
	}
	return activator, nil
}

// NewAll creates and registers an endpoint for each activator.
func NewAll(
	reg  *registry.Registry,
	cfg  config.CourierConfig,
	opts ...Option,
) ([]Handler, error) {
	handlers := make([]Handler, 0, len(cfg.Activators))
	for _, activator := range cfg.Activators {
		h, err := New(reg, activator, opts...)
		if err != nil {
			return nil, err
		}
		if err = reg.Register(activator.Name, h); err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

func options(opts []Option) Options {
	o := Options{Logger: logr.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(TracerName)
	}
	return o
}

func withOptions(o Options) Option {
	return func(into *Options) {
		*into = o
	}
}

// courierOptions maps the activator configuration to invoker options.
func courierOptions(cfg config.ActivatorConfig, o Options) []courier.Option {
	opts := []courier.Option{
		courier.WithLogger(o.Logger),
		courier.WithTracer(o.Tracer),
		courier.WithMessageList(cfg.MessageList),
	}
	if cfg.Method != "" {
		opts = append(opts, courier.WithMethodName(cfg.Method))
	}
	if cfg.Annotated {
		opts = append(opts, courier.WithAnnotation[courier.ServiceActivator]())
	}
	return append(opts, o.Courier...)
}

func targetFactory(reg *registry.Registry, name string) (TargetFactory, error) {
	component, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("target %q: %w", name, registry.ErrNotFound)
	}
	switch f := component.(type) {
	case TargetFactory:
		return f, nil
	case func() (any, error):
		return f, nil
	}
	return nil, fmt.Errorf("target %q is %T: %w", name, component, ErrNotFactory)
}

func outputChannel(
	reg    *registry.Registry,
	cfg    *config.ChannelConfig,
	logger logr.Logger,
) (channel.Sender, error) {
	if existing, ok := reg.Lookup(cfg.Name); ok {
		if sender, ok := existing.(channel.Sender); ok {
			return sender, nil
		}
		return nil, fmt.Errorf("output %q is %T: %w", cfg.Name, existing, ErrNotChannel)
	}
	queue := channel.NewQueue(cfg.Name, cfg.Capacity,
		channel.WithLogger(log.For(logger, (*channel.Queue)(nil))))
	if err := reg.Register(cfg.Name, queue); err != nil {
		return nil, err
	}
	return queue, nil
}


// replier

func newReplier(cfg config.ActivatorConfig, o Options) replier {
	r := replier{
		name:         cfg.Name,
		output:       o.Output,
		requireReply: cfg.RequireReply,
		emit:         o.Emit,
		logger:       o.Logger.WithValues("endpoint", cfg.Name),
		tracer:       o.Tracer,
	}
	if cfg.Output != nil {
		r.sendTimeout = cfg.Output.SendTimeout
	}
	return r
}

// dispatch processes msg within a span and sends the reply.
func (r *replier) dispatch(
	ctx     context.Context,
	msg     courier.Message,
	target  any,
	process func(context.Context) (any, error),
) (result any, err error) {
	ctx, span := r.tracer.Start(ctx, "courier.endpoint",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("courier.endpoint", r.name),
			attribute.String("courier.message.id", msg.Headers().ID())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	err = r.emit.Run(r.logger, target, msg.Payload(), func() (err error) {
		result, err = process(ctx)
		return
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		if r.requireReply {
			return nil, &ReplyRequiredError{r.name, msg.Headers().ID()}
		}
		return nil, nil
	}
	if r.output != nil {
		if err = r.send(ctx, msg, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *replier) send(ctx context.Context, request courier.Message, result any) error {
	reply, ok := result.(courier.Message)
	if !ok {
		headers := make(map[string]any, 1)
		if id := request.Headers().ID(); id != "" {
			headers[CorrelationIdHeader] = id
		}
		reply = courier.NewMessage(result, headers)
	} else if _, ok := reply.Headers()[CorrelationIdHeader]; !ok {
		headers := maps.Clone(reply.Headers())
		if headers == nil {
			headers = courier.MessageHeaders{}
		}
		headers[CorrelationIdHeader] = request.Headers().ID()
		reply = courier.NewMessage(reply.Payload(), headers)
	}
	timeout := r.sendTimeout
	if timeout == 0 {
		timeout = -1
	}
	if !r.output.Send(ctx, reply, timeout) {
		return fmt.Errorf("endpoint %q: %w", r.name, ErrSendFailed)
	}
	r.logger.V(1).Info("sent reply", "id", reply.Headers().ID())
	return nil
}


// ReplyRequiredError reports a handler produced no reply
// for an endpoint requiring one.
type ReplyRequiredError struct {
	Endpoint string
	Id       string
}

func (e *ReplyRequiredError) Error() string {
	return fmt.Sprintf("endpoint %q: no reply for message %q", e.Endpoint, e.Id)
}

func (e *ReplyRequiredError) Unwrap() error {
	return ErrReplyRequired
}


var (
	ErrNotRunning    = errors.New("endpoint: not running")
	ErrReplyRequired = errors.New("endpoint: reply required")
	ErrSendFailed    = errors.New("endpoint: reply could not be sent")
	ErrNotChannel    = errors.New("endpoint: not a channel")
	ErrNotFactory    = errors.New("endpoint: pooled target must be a TargetFactory")
)
