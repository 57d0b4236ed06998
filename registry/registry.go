package registry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/miruken-go/courier"
	"github.com/miruken-go/courier/internal/slices"
	"github.com/miruken-go/courier/log"
)

type (
	// Registry of named components.  Components are started in
	// registration order and stopped in reverse.
	Registry struct {
		logger     logr.Logger
		mu         sync.RWMutex
		components map[string]any
		names      []string
	}

	// Option configures a Registry.
	Option func(*Registry)
)

// WithLogger logs registration and lifecycle changes.
func WithLogger(logger logr.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:     logr.Discard(),
		components: make(map[string]any),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = log.For(r.logger, r)
	return r
}

// Register adds a component under name.
func (r *Registry) Register(name string, component any) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if component == nil {
		return fmt.Errorf("registry: component %q: %w", name, ErrNilComponent)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[name]; ok {
		return fmt.Errorf("registry: component %q: %w", name, ErrDuplicate)
	}
	r.components[name] = component
	r.names = append(r.names, name)
	r.logger.V(1).Info("registered", "name", name, "type", fmt.Sprintf("%T", component))
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, component any) *Registry {
	if err := r.Register(name, component); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	component, ok := r.components[name]
	return component, ok
}

// Names returns the component names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// StartAll starts every stopped Lifecycle component in
// registration order.  All components are attempted.
func (r *Registry) StartAll() error {
	var errs *multierror.Error
	for _, lc := range r.lifecycles() {
		if lc.IsRunning() {
			continue
		}
		if err := lc.Start(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("registry: start %T: %w", lc, err))
		}
	}
	return errs.ErrorOrNil()
}

// StopAll stops every running Lifecycle component in reverse
// registration order.  All components are attempted.
func (r *Registry) StopAll() error {
	var errs *multierror.Error
	for _, lc := range slices.Reversed(r.lifecycles()) {
		if !lc.IsRunning() {
			continue
		}
		if err := lc.Stop(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("registry: stop %T: %w", lc, err))
		}
	}
	return errs.ErrorOrNil()
}

func (r *Registry) lifecycles() []courier.Lifecycle {
	r.mu.RLock()
	components := make([]any, len(r.names))
	for i, name := range r.names {
		components[i] = r.components[name]
	}
	r.mu.RUnlock()
	return slices.OfType[any, courier.Lifecycle](components)
}

// Get returns the component registered under name as a T.
func Get[T any](registry courier.Registry, name string) (T, error) {
	var zero T
	component, ok := registry.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("registry: component %q: %w", name, ErrNotFound)
	}
	t, ok := component.(T)
	if !ok {
		return zero, fmt.Errorf("registry: component %q is %T, not %v: %w",
			name, component, reflect.TypeFor[T](), ErrWrongType)
	}
	return t, nil
}

var (
	ErrEmptyName    = errors.New("registry: name cannot be empty")
	ErrNilComponent = errors.New("registry: component cannot be nil")
	ErrDuplicate    = errors.New("registry: duplicate name")
	ErrNotFound     = errors.New("registry: not found")
	ErrWrongType    = errors.New("registry: wrong type")
)
