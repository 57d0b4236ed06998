package expr

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"
)

type (
	// Parser compiles expression text into an Expression.
	Parser interface {
		Parse(text string) (Expression, error)
	}

	// Expression is a compiled expression evaluated against a set
	// of variables and a root object.
	Expression interface {
		Evaluate(
			vars     map[string]any,
			root     any,
			expected reflect.Type,
		) (any, error)
		String() string
	}

	// EvaluationError reports an expression that could not be
	// compiled or evaluated.
	EvaluationError struct {
		Text  string
		Cause error
	}

	// Engine is the default Parser backed by expr-lang.
	// Compiled programs are cached by text.
	Engine struct {
		opts  []expr.Option
		mu    sync.RWMutex
		cache map[string]*expression
	}

	// expression is an Expression compiled by an Engine.
	expression struct {
		text    string
		program *vm.Program
	}
)

// RootVar is the variable holding the root object.
const RootVar = "root"


// EvaluationError

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Text, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}


// Engine

func (e *Engine) Parse(text string) (Expression, error) {
	if text == "" {
		return nil, &EvaluationError{text, ErrEmptyExpression}
	}
	e.mu.RLock()
	cached, ok := e.cache[text]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}
	program, err := expr.Compile(text, e.opts...)
	if err != nil {
		return nil, &EvaluationError{text, err}
	}
	compiled := &expression{text, program}
	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok = e.cache[text]; ok {
		return cached, nil
	}
	e.cache[text] = compiled
	return compiled, nil
}


// expression

func (x *expression) Evaluate(
	vars     map[string]any,
	root     any,
	expected reflect.Type,
) (any, error) {
	env := make(map[string]any, len(vars)+1)
	maps.Copy(env, vars)
	env[RootVar] = root
	out, err := expr.Run(x.program, env)
	if err != nil {
		return nil, &EvaluationError{x.text, err}
	}
	if expected == nil || out == nil {
		return out, nil
	}
	val := reflect.ValueOf(out)
	if val.Type().AssignableTo(expected) {
		return out, nil
	}
	if convertible(val.Type(), expected) {
		return val.Convert(expected).Interface(), nil
	}
	return nil, &EvaluationError{x.text,
		fmt.Errorf("%w: %v is not %v", ErrUnexpectedResult, val.Type(), expected)}
}

func (x *expression) String() string {
	return x.text
}

// New returns an Engine with the jsonPath builtin registered.
// jsonPath(data, path) queries a JSON document given as bytes
// or string and yields nil when the path does not exist.
func New(opts ...expr.Option) *Engine {
	all := make([]expr.Option, 0, len(opts)+1)
	all = append(all, expr.Function("jsonPath", jsonPath))
	return &Engine{
		opts:  append(all, opts...),
		cache: make(map[string]*expression),
	}
}

func jsonPath(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, errors.New("jsonPath expects a document and a path")
	}
	path, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("jsonPath path must be a string, got %T", params[1])
	}
	var result gjson.Result
	switch doc := params[0].(type) {
	case []byte:
		result = gjson.GetBytes(doc, path)
	case string:
		result = gjson.Get(doc, path)
	default:
		return nil, fmt.Errorf("jsonPath document must be []byte or string, got %T", doc)
	}
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	// int to string conversions yield runes
	if to.Kind() == reflect.String {
		return from.Kind() == reflect.String
	}
	return true
}

var (
	ErrEmptyExpression  = errors.New("expr: empty expression")
	ErrUnexpectedResult = errors.New("expr: unexpected result type")
)
