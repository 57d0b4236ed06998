package courier

import (
	"reflect"

	"github.com/go-logr/logr"
	"github.com/imdario/mergo"
	"go.opentelemetry.io/otel/trace"
)

// OptionBool should be used in option structs instead of bool to
// be able to represent a bool not set.  Otherwise, the Zero value
// for of a bool cannot be distinguished from false.
type OptionBool byte

const (
	OptionNone OptionBool = iota
	OptionFalse
	OptionTrue
)

func (b OptionBool) Bool() bool {
	switch b {
	case OptionFalse:
		return false
	case OptionTrue:
		return true
	default:
		panic("only OptionFalse and OptionTrue can convert to a bool")
	}
}

type (
	// Options configure a MethodInvoker.
	Options struct {
		// MethodName restricts discovery to a method family: the
		// method named exactly, or named with it as a prefix
		// followed by an upper case letter, digit or underscore.
		MethodName string

		// Method is the single method to invoke.
		Method *reflect.Method

		// Annotation is the marker type preferred methods carry.
		Annotation reflect.Type

		// Filter excludes the methods it rejects.
		Filter func(reflect.Method) bool

		// ExpectedType is the type results are converted to.
		ExpectedType reflect.Type

		// MessageList enables batch processing.
		MessageList OptionBool

		Expressions ExpressionParser
		Converter   TypeConverter
		Logger      logr.Logger
		Tracer      trace.Tracer
	}

	// Option configures Options.
	Option func(*Options)

	// loggerTransformer merges logr.Logger values by sink.
	loggerTransformer struct{}
)

var loggerType = reflect.TypeFor[logr.Logger]()

func (loggerTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != loggerType {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if logger := src.Interface().(logr.Logger); logger.GetSink() != nil && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

// MergeOptions merges the non-empty values of from into into.
func MergeOptions(from, into *Options) error {
	return mergo.Merge(into, from, mergo.WithOverride,
		mergo.WithTransformers(loggerTransformer{}))
}

// WithOptions merges a complete Options value.
func WithOptions(options Options) Option {
	return func(o *Options) {
		if err := MergeOptions(&options, o); err != nil {
			panic(err)
		}
	}
}

// WithMethodName restricts discovery to the named method family.
func WithMethodName(name string) Option {
	return func(o *Options) {
		o.MethodName = name
	}
}

// WithMethod invokes the method only.
func WithMethod(method reflect.Method) Option {
	return func(o *Options) {
		o.Method = &method
	}
}

// WithAnnotation prefers methods carrying the marker M.
func WithAnnotation[M any]() Option {
	return func(o *Options) {
		o.Annotation = reflect.TypeFor[M]()
	}
}

// WithMethodFilter only considers methods accepted by filter.
func WithMethodFilter(filter func(reflect.Method) bool) Option {
	return func(o *Options) {
		o.Filter = filter
	}
}

// WithExpectedType converts non-nil results to typ.
func WithExpectedType(typ reflect.Type) Option {
	return func(o *Options) {
		o.ExpectedType = typ
	}
}

// WithMessageList enables or disables batch processing.
func WithMessageList(enabled bool) Option {
	return func(o *Options) {
		if enabled {
			o.MessageList = OptionTrue
		} else {
			o.MessageList = OptionFalse
		}
	}
}

// WithExpressions sets the expression parser.
func WithExpressions(parser ExpressionParser) Option {
	return func(o *Options) {
		o.Expressions = parser
	}
}

// WithConverter sets the type converter.
func WithConverter(converter TypeConverter) Option {
	return func(o *Options) {
		o.Converter = converter
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTracer sets the tracer spanning each dispatch.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}
