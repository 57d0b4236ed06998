package log

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-logr/logr"
)

// Emit logs the execution of message handlers at a verbosity.
type Emit struct {
	Verbosity int
}

// For returns a logger named after the owner type.
// Without an owner the root logger is returned.
func For(root logr.Logger, owner any) logr.Logger {
	if owner != nil {
		return root.WithName(fmt.Sprintf("%T", owner))
	}
	return root
}

// ParseEmit reads the verbosity from a `log:"verbosity=N"` tag.
func ParseEmit(tag reflect.StructTag) (Emit, error) {
	var emit Emit
	if log, ok := tag.Lookup("log"); ok {
		if _, err := fmt.Sscanf(log, "verbosity=%d", &emit.Verbosity); err != nil {
			return emit, fmt.Errorf("log: invalid tag %q: %w", log, err)
		}
	}
	return emit, nil
}

// EmitOf reads the emit of owner from the first of its fields
// carrying a `log` tag.  Owners without one use fallback.
func EmitOf(owner any, fallback Emit) (Emit, error) {
	typ := reflect.TypeOf(owner)
	if typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return fallback, nil
	}
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag; tag.Get("log") != "" {
			return ParseEmit(tag)
		}
	}
	return fallback, nil
}

// Run executes handle logging when it starts, completes and fails.
// Nothing is logged when the verbosity is not enabled.
func (e Emit) Run(
	logger  logr.Logger,
	handler any,
	source  any,
	handle  func() error,
) error {
	if logger = logger.V(e.Verbosity); !logger.Enabled() {
		return handle()
	}
	logger = For(logger, handler)
	logger.Info("handling",
		"source-type", reflect.TypeOf(source),
		"source", source)
	start := time.Now()
	if err := handle(); err != nil {
		logger.Error(err, "failed", "duration", time.Since(start))
		return err
	}
	logger.Info("completed", "duration", time.Since(start))
	return nil
}
