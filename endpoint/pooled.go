package endpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/miruken-go/courier"
	"github.com/miruken-go/courier/config"
	"github.com/miruken-go/courier/log"
	"github.com/miruken-go/courier/pool"
)

// Pooled invokes a target taken from a pool for each message.
// Each target handles one message at a time, so targets need
// not be safe for concurrent use.
type Pooled struct {
	replier
	factory TargetFactory
	cfg     config.ActivatorConfig
	opts    Options
	mu      sync.RWMutex
	pool    *pool.Pool[*courier.MethodInvoker]
}

// NewPooled creates a pooled endpoint creating targets with factory.
// The first target is created to verify discovery.
func NewPooled(
	factory TargetFactory,
	cfg     config.ActivatorConfig,
	opts    ...Option,
) (*Pooled, error) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	cfg.ConfigurationReady()
	p := &Pooled{
		replier: newReplier(cfg, options(opts)),
		factory: factory,
		cfg:     cfg,
		opts:    options(opts),
	}
	first, err := p.newInvoker()
	if err != nil {
		return nil, err
	}
	if err = first.Stop(); err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
	}
	if p.replier.emit, err = log.EmitOf(first.Target(), p.replier.emit); err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
	}
	return p, nil
}

func (p *Pooled) Name() string {
	return p.name
}

// Pool returns the pool of invokers while running.
func (p *Pooled) Pool() *pool.Pool[*courier.MethodInvoker] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool
}

func (p *Pooled) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		return nil
	}
	timeout := p.cfg.Pool.WaitTimeout
	if timeout == 0 {
		timeout = pool.WaitForever
	}
	p.pool = pool.New[*courier.MethodInvoker](p.cfg.Pool.Size, pool.Funcs[*courier.MethodInvoker]{
		CreateFunc:  p.newInvoker,
		IsStaleFunc: func(inv *courier.MethodInvoker) bool { return !inv.IsRunning() },
		RemovedFunc: p.removed,
	},
		pool.WithName(p.name),
		pool.WithWaitTimeout(timeout),
		pool.WithLogger(p.logger),
		pool.WithMetrics(p.opts.Metrics))
	p.logger.V(1).Info("started", "size", p.cfg.Pool.Size)
	return nil
}

func (p *Pooled) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return nil
	}
	p.pool.Close()
	p.pool = nil
	p.logger.V(1).Info("stopped")
	return nil
}

func (p *Pooled) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool != nil
}

// Resize changes the number of targets.
func (p *Pooled) Resize(size int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return fmt.Errorf("endpoint %q: %w", p.name, ErrNotRunning)
	}
	p.pool.SetSize(size)
	return nil
}

// Handle processes msg with a pooled target and sends the reply.
func (p *Pooled) Handle(ctx context.Context, msg courier.Message) (any, error) {
	if msg == nil {
		return nil, fmt.Errorf("endpoint %q: message cannot be nil", p.name)
	}
	items := p.Pool()
	if items == nil {
		return nil, fmt.Errorf("endpoint %q: %w", p.name, ErrNotRunning)
	}
	inv, err := items.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", p.name, err)
	}
	defer func() {
		if err := items.Release(inv); err != nil {
			p.logger.Error(err, "release target")
		}
	}()
	return p.dispatch(ctx, msg, inv.Target(), func(ctx context.Context) (any, error) {
		return inv.Process(ctx, msg)
	})
}

func (p *Pooled) String() string {
	return fmt.Sprintf("pooled %s", p.name)
}

func (p *Pooled) newInvoker() (*courier.MethodInvoker, error) {
	target, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: create target: %w", p.name, err)
	}
	inv, err := courier.NewMethodInvoker(target, courierOptions(p.cfg, p.opts)...)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", p.name, err)
	}
	if err = inv.Start(); err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", p.name, err)
	}
	return inv, nil
}

func (p *Pooled) removed(inv *courier.MethodInvoker) {
	if err := inv.Stop(); err != nil {
		p.logger.Error(err, "stop target", "target", inv.String())
	}
}
