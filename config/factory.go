package config

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	play "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/hashicorp/go-multierror"
	"github.com/imdario/mergo"
)

type (
	// Factory of configurations using assigned Provider.
	// Loaded configurations are cached by type and path.
	Factory struct {
		Provider
		validate   *play.Validate
		translator ut.Translator
		lock       sync.Mutex
		cache      atomic.Pointer[map[loadKey]any]
	}

	// ValidationError reports the constraints a loaded
	// configuration violates.
	ValidationError struct {
		Path  string
		Cause error
	}

	loadKey struct{
		typ  reflect.Type
		path string
		flat bool
	}
)


// ValidationError

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: invalid configuration: %v", e.Cause)
	}
	return fmt.Sprintf("config: invalid configuration %q: %v", e.Path, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}


// Factory

// NewFactory creates a Factory loading from provider and
// validating with english messages.
func NewFactory(provider Provider) *Factory {
	if provider == nil {
		panic("provider cannot be nil")
	}
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")

	validate := play.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("path"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(fmt.Errorf("config: register translations: %w", err))
	}
	return &Factory{
		Provider:   provider,
		validate:   validate,
		translator: translator,
	}
}

// Load returns the configuration of type T at path.
// Defaults are merged into unset fields when T provides them,
// then the configuration is made ready and validated.
func Load[T any](f *Factory, path string) (T, error) {
	return load[T](f, path, false)
}

// LoadFlat is like Load but reads the path tags of T as
// full keys below path.
func LoadFlat[T any](f *Factory, path string) (T, error) {
	return load[T](f, path, true)
}

func load[T any](f *Factory, path string, flat bool) (T, error) {
	var zero T
	if f == nil {
		return zero, ErrNoFactory
	}
	key := loadKey{typ: reflect.TypeFor[T](), path: path, flat: flat}

	// Check cache first
	if cache := f.cache.Load(); cache != nil {
		if o, ok := (*cache)[key]; ok {
			return o.(T), nil
		}
	}

	// Use copy-on-write idiom since reads should be more frequent than writes.
	f.lock.Lock()
	defer f.lock.Unlock()

	var cc map[loadKey]any
	cache := f.cache.Load()
	if cache != nil {
		if o, ok := (*cache)[key]; ok {
			return o.(T), nil
		}
		cc = maps.Clone(*cache)
	} else {
		cc = make(map[loadKey]any, 1)
	}

	var out T
	if err := f.Unmarshal(path, key.flat, &out); err != nil {
		return zero, fmt.Errorf("config: %w", err)
	}
	if d, ok := any(out).(interface{ Defaults() T }); ok {
		if err := mergo.Merge(&out, d.Defaults()); err != nil {
			return zero, fmt.Errorf("config: defaults: %w", err)
		}
	}
	if ready, ok := any(&out).(Configuration); ok {
		ready.ConfigurationReady()
	}
	if err := f.validateStruct(path, out); err != nil {
		return zero, err
	}

	cc[key] = out
	f.cache.Store(&cc)
	return out, nil
}

func (f *Factory) validateStruct(path string, cfg any) error {
	if typ := reflect.TypeOf(cfg); typ == nil || typ.Kind() != reflect.Struct {
		return nil
	}
	err := f.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrors play.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("config: %w", err)
	}
	var errs *multierror.Error
	for field, msg := range fieldErrors.Translate(f.translator) {
		parts := strings.SplitN(field, ".", 2)
		if len(parts) > 1 { field = parts[1] }
		errs = multierror.Append(errs, fmt.Errorf("%s: %s", field, msg))
	}
	return &ValidationError{Path: path, Cause: errs.ErrorOrNil()}
}


var ErrNoFactory = errors.New("config: factory is nil")
