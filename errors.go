package courier

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/miruken-go/courier/convert"
	"github.com/miruken-go/courier/expr"
)

type (
	// DiscoveryError reports an invalid handler target.
	DiscoveryError struct {
		Target reflect.Type
		Cause  error
	}

	// AmbiguousMethodError reports two methods accepting the
	// same payload type.
	AmbiguousMethodError struct {
		Key     reflect.Type
		Methods [2]string
	}

	// IneligibleMethodError reports a method that cannot be used
	// for message handling.
	IneligibleMethodError struct {
		Method string
		Reason error
	}

	// AmbiguousMatchError reports candidate types equally close
	// to a target type.
	AmbiguousMatchError struct {
		Target     reflect.Type
		Candidates [2]reflect.Type
	}

	// MessageHandlingError reports a failure to bind arguments or
	// convert results while handling a message.
	MessageHandlingError struct {
		Message     Message
		Description string
		Cause       error
	}

	// EvaluationError reports a failed expression.
	EvaluationError = expr.EvaluationError

	// ConversionError reports a failed type conversion.
	ConversionError = convert.ConversionError
)


// DiscoveryError

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("courier: invalid handler %v: %v", e.Target, e.Cause)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}


// AmbiguousMethodError

func (e *AmbiguousMethodError) Error() string {
	return fmt.Sprintf("found more than one method match for type %v: %s",
		e.Key, strings.Join(e.Methods[:], ", "))
}


// IneligibleMethodError

func (e *IneligibleMethodError) Error() string {
	return fmt.Sprintf("method %s is not eligible for message handling: %v", e.Method, e.Reason)
}

func (e *IneligibleMethodError) Unwrap() error {
	return e.Reason
}


// AmbiguousMatchError

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match for %v: %v and %v",
		e.Target, e.Candidates[0], e.Candidates[1])
}


// MessageHandlingError

func (e *MessageHandlingError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Description)
	if e.Message != nil {
		if id := e.Message.Headers().ID(); id != "" {
			sb.WriteString(" [message ")
			sb.WriteString(id)
			sb.WriteString("]")
		}
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *MessageHandlingError) Unwrap() error {
	return e.Cause
}

// rootCause strips expression evaluation wrappers.
func rootCause(err error) error {
	var evalErr *EvaluationError
	for errors.As(err, &evalErr) && evalErr.Cause != nil {
		err = evalErr.Cause
	}
	return err
}

var (
	ErrNoEligibleMethods   = errors.New("target has no eligible methods for handling messages")
	ErrNoCandidateMethods  = errors.New("no candidate methods found for messages")
	ErrTwoExclusiveTargets = errors.New("found more than one parameter type candidate")
	ErrMissingReturnType   = errors.New("method must return a value when an expected type is set")
	ErrMultipleDefaults    = errors.New("only one method can be marked as default")
	ErrNilTarget           = errors.New("target cannot be nil")
	ErrNoExpressionParser  = errors.New("no expression parser configured")
)
