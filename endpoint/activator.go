package endpoint

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/miruken-go/courier"
	"github.com/miruken-go/courier/config"
	"github.com/miruken-go/courier/log"
)

// Activator invokes a single target for each message and sends
// the non-nil results to the output channel.  The target must be
// safe for concurrent use.
type Activator struct {
	replier
	invoker *courier.MethodInvoker
	running atomic.Bool
}

// NewActivator discovers the methods of target described by cfg.
func NewActivator(
	target any,
	cfg    config.ActivatorConfig,
	opts   ...Option,
) (*Activator, error) {
	o := options(opts)
	invoker, err := courier.NewMethodInvoker(target, courierOptions(cfg, o)...)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
	}
	if o.Emit, err = log.EmitOf(target, o.Emit); err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
	}
	return &Activator{
		replier: newReplier(cfg, o),
		invoker: invoker,
	}, nil
}

func (a *Activator) Name() string {
	return a.name
}

// Invoker returns the method invoker of the target.
func (a *Activator) Invoker() *courier.MethodInvoker {
	return a.invoker
}

func (a *Activator) Start() error {
	if a.running.Load() {
		return nil
	}
	if err := a.invoker.Start(); err != nil {
		return fmt.Errorf("endpoint %q: %w", a.name, err)
	}
	a.running.Store(true)
	a.logger.V(1).Info("started", "handler", a.invoker.String())
	return nil
}

func (a *Activator) Stop() error {
	if !a.running.Swap(false) {
		return nil
	}
	a.logger.V(1).Info("stopped")
	return a.invoker.Stop()
}

func (a *Activator) IsRunning() bool {
	return a.running.Load()
}

// Handle processes msg and sends the reply.
func (a *Activator) Handle(ctx context.Context, msg courier.Message) (any, error) {
	if msg == nil {
		return nil, fmt.Errorf("endpoint %q: message cannot be nil", a.name)
	}
	if !a.running.Load() {
		return nil, fmt.Errorf("endpoint %q: %w", a.name, ErrNotRunning)
	}
	return a.dispatch(ctx, msg, a.invoker.Target(), func(ctx context.Context) (any, error) {
		return a.invoker.Process(ctx, msg)
	})
}

// HandleBatch processes msgs together sharing headers and sends
// the reply.  The reply correlates to the first message.
func (a *Activator) HandleBatch(
	ctx     context.Context,
	msgs    []courier.Message,
	headers courier.MessageHeaders,
) (any, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if !a.running.Load() {
		return nil, fmt.Errorf("endpoint %q: %w", a.name, ErrNotRunning)
	}
	return a.dispatch(ctx, msgs[0], a.invoker.Target(), func(ctx context.Context) (any, error) {
		return a.invoker.ProcessBatch(ctx, msgs, headers)
	})
}

func (a *Activator) String() string {
	return fmt.Sprintf("activator %s -> %s", a.name, a.invoker)
}
