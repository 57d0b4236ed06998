package courier

import (
	"context"
	"reflect"

	"github.com/miruken-go/courier/convert"
	"github.com/miruken-go/courier/expr"
)

type (
	// ExpressionParser compiles qualifier expressions.
	ExpressionParser = expr.Parser

	// Expression is a compiled qualifier expression.
	Expression = expr.Expression

	// TypeConverter converts arguments and results.
	TypeConverter = convert.Converter

	// Lifecycle is implemented by components that can be started
	// and stopped.
	Lifecycle interface {
		Start() error
		Stop() error
		IsRunning() bool
	}

	// Registry resolves components by name.
	Registry interface {
		Lookup(name string) (any, bool)
	}

	// RequestReplyExchanger is the legacy contract of targets that
	// exchange a request message for a reply.
	RequestReplyExchanger interface {
		Exchange(ctx context.Context, request Message) (Message, error)
	}
)

var exchangerType = reflect.TypeFor[RequestReplyExchanger]()
