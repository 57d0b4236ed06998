package pool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"
)

type (
	// Callback creates, validates and disposes pooled items.
	Callback[T comparable] interface {
		Create() (T, error)
		IsStale(item T) bool
		Removed(item T)
	}

	// Funcs adapts functions to a Callback.  Only CreateFunc
	// is required.
	Funcs[T comparable] struct {
		CreateFunc  func() (T, error)
		IsStaleFunc func(T) bool
		RemovedFunc func(T)
	}

	// Pool is a bounded pool of reusable items.  Items are created
	// on demand up to the pool size and handed out idle first in
	// FIFO order.  The size can be changed while items are in use,
	// shrinking below the items in use converges as they are
	// released.
	Pool[T comparable] struct {
		name      string
		callback  Callback[T]
		permits   *semaphore.Weighted
		timeout   time.Duration
		logger    logr.Logger
		metrics   *Metrics
		mu        sync.Mutex
		size      int
		target    int
		allocated map[T]struct{}
		inUse     map[T]struct{}
		idle      []T
		closed    bool
		closing   context.Context
		cancel    context.CancelFunc
	}

	// Option configures a Pool.
	Option func(*options)

	options struct {
		name    string
		timeout time.Duration
		logger  logr.Logger
		metrics *Metrics
	}

	// ItemNotAvailableError reports an item could not be obtained.
	ItemNotAvailableError struct {
		Cause error
	}
)

const (
	// Unbounded is the size of a pool created with a size <= 0.
	Unbounded = math.MaxInt32

	// WaitForever waits for an item until the context is done.
	WaitForever time.Duration = -1
)


// Funcs

func (f Funcs[T]) Create() (T, error) {
	return f.CreateFunc()
}

func (f Funcs[T]) IsStale(item T) bool {
	return f.IsStaleFunc != nil && f.IsStaleFunc(item)
}

func (f Funcs[T]) Removed(item T) {
	if f.RemovedFunc != nil {
		f.RemovedFunc(item)
	}
}


// ItemNotAvailableError

func (e *ItemNotAvailableError) Error() string {
	return fmt.Sprintf("pool: item not available: %v", e.Cause)
}

func (e *ItemNotAvailableError) Unwrap() error {
	return e.Cause
}


// Options

// WithName names the pool in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithWaitTimeout bounds how long Get waits for an item.  Zero
// fails immediately when none is available and a negative
// duration waits until the context is done.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithLogger logs item creation and removal.
func WithLogger(logger logr.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics reports pool occupancy to metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}


// Pool

// New creates a Pool of size items.  A size <= 0 is unbounded.
func New[T comparable](
	size     int,
	callback Callback[T],
	opts     ...Option,
) *Pool[T] {
	if callback == nil {
		panic("callback cannot be nil")
	}
	o := options{
		name:    "default",
		timeout: WaitForever,
		logger:  logr.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if size <= 0 {
		size = Unbounded
	}
	permits := semaphore.NewWeighted(math.MaxInt64)
	// withhold the permits beyond the pool size
	permits.TryAcquire(math.MaxInt64 - int64(size))
	closing, cancel := context.WithCancel(context.Background())
	p := &Pool[T]{
		name:      o.name,
		callback:  callback,
		permits:   permits,
		timeout:   o.timeout,
		logger:    o.logger.WithValues("pool", o.name),
		metrics:   o.metrics,
		size:      size,
		target:    size,
		allocated: make(map[T]struct{}),
		inUse:     make(map[T]struct{}),
		closing:   closing,
		cancel:    cancel,
	}
	p.observe()
	return p
}

// Size returns the target size of the pool.
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// IdleCount returns the number of items waiting to be reused.
func (p *Pool[T]) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// ActiveCount returns the number of items in use.
func (p *Pool[T]) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// AllocatedCount returns the number of items created and not
// yet removed.
func (p *Pool[T]) AllocatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allocated)
}

// Get obtains an item, waiting for one to be released when the
// pool is exhausted.  Stale idle items are removed and never
// returned.
func (p *Pool[T]) Get(ctx context.Context) (T, error) {
	var zero T
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return zero, &ItemNotAvailableError{ErrPoolClosed}
	}
	if err := p.acquire(ctx); err != nil {
		return zero, &ItemNotAvailableError{err}
	}
	item, err := p.take()
	if err != nil {
		p.permits.Release(1)
		return zero, err
	}
	return item, nil
}

// Release returns an item to the pool.  Items released when the
// pool is larger than its target size, or closed, are removed.
// Releasing an item twice is ignored.
func (p *Pool[T]) Release(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.allocated[item]; !ok {
		return ErrNotFromPool
	}
	if _, ok := p.inUse[item]; !ok {
		p.logger.V(1).Info("ignoring item already released", "item", item)
		return nil
	}
	delete(p.inUse, item)
	switch {
	case p.closed:
		p.remove(item, "closed")
	case p.size > p.target:
		p.size--
		p.remove(item, "resize")
	default:
		p.idle = append(p.idle, item)
		p.permits.Release(1)
	}
	p.observe()
	return nil
}

// SetSize changes the target size of the pool.  Growing takes
// effect immediately.  Shrinking withholds the available permits
// and removes idle items beyond them.  Permits held by items in
// use, or by callers about to take one, are withheld as the
// items are released.
func (p *Pool[T]) SetSize(size int) {
	if size <= 0 {
		size = Unbounded
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = size
	switch {
	case size > p.size:
		p.permits.Release(int64(size - p.size))
		p.size = size
	case size < p.size:
		p.size -= int(p.reduce(int64(p.size - size)))
		for len(p.allocated) > p.size && len(p.idle) > 0 {
			item := p.idle[0]
			p.idle = p.idle[1:]
			p.remove(item, "resize")
		}
	}
	p.logger.V(1).Info("resized pool", "size", size,
		"allocated", len(p.allocated), "inUse", len(p.inUse))
	p.observe()
}

// RemoveAllIdle removes every idle item.
func (p *Pool[T]) RemoveAllIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeIdle("idle")
	p.observe()
}

// Close removes all idle items and rejects further requests,
// including those waiting for an item.  Items in use are removed
// when released.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	p.removeIdle("closed")
	p.observe()
}

func (p *Pool[T]) String() string {
	return fmt.Sprintf("pool %s", p.name)
}

func (p *Pool[T]) acquire(ctx context.Context) error {
	if p.timeout == 0 {
		if !p.permits.TryAcquire(1) {
			return ErrTimeout
		}
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(p.closing, cancel)()
	if p.timeout > 0 {
		var cancelWait context.CancelFunc
		ctx, cancelWait = context.WithTimeout(ctx, p.timeout)
		defer cancelWait()
	}
	if err := p.permits.Acquire(ctx, 1); err != nil {
		if p.closing.Err() != nil {
			return ErrPoolClosed
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	}
	return nil
}

// take hands out an idle item or creates one.  A permit is held.
func (p *Pool[T]) take() (T, error) {
	var zero T
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return zero, &ItemNotAvailableError{ErrPoolClosed}
	}
	for len(p.idle) > 0 {
		item := p.idle[0]
		p.idle = p.idle[1:]
		if p.callback.IsStale(item) {
			p.remove(item, "stale")
			continue
		}
		p.inUse[item] = struct{}{}
		p.observe()
		return item, nil
	}
	item, err := p.callback.Create()
	if err != nil {
		return zero, fmt.Errorf("pool: create item: %w", err)
	}
	p.allocated[item] = struct{}{}
	p.inUse[item] = struct{}{}
	p.logger.V(1).Info("created item", "item", item, "allocated", len(p.allocated))
	p.observe()
	return item, nil
}

// reduce withholds up to n available permits, returning the
// number withheld.
func (p *Pool[T]) reduce(n int64) (withheld int64) {
	for chunk := n; withheld < n && chunk > 0; {
		if chunk > n-withheld {
			chunk = n - withheld
		}
		if p.permits.TryAcquire(chunk) {
			withheld += chunk
		} else {
			chunk /= 2
		}
	}
	return
}

func (p *Pool[T]) removeIdle(reason string) {
	idle := p.idle
	p.idle = nil
	for _, item := range idle {
		p.remove(item, reason)
	}
}

func (p *Pool[T]) remove(item T, reason string) {
	delete(p.allocated, item)
	delete(p.inUse, item)
	p.logger.V(1).Info("removed item", "item", item, "reason", reason)
	if p.metrics != nil {
		p.metrics.evicted(p.name, reason)
	}
	p.callback.Removed(item)
}

func (p *Pool[T]) observe() {
	if p.metrics != nil {
		p.metrics.observe(p.name, len(p.idle), len(p.inUse), len(p.allocated))
	}
}

var (
	ErrPoolClosed  = errors.New("pool: closed")
	ErrNotFromPool = errors.New("pool: item was not obtained from this pool")
	ErrTimeout     = errors.New("pool: timed out waiting for an item")
)
