package bound

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// UpperBound limits the number of concurrent permit holders.
// A capacity <= 0 is unbounded and every acquire succeeds.
// Permits must be released by the holders that acquired them,
// releasing more than acquired panics.
type UpperBound struct {
	capacity int
	permits  *semaphore.Weighted
	acquired atomic.Int64
}

// New creates an UpperBound with capacity permits.
func New(capacity int) *UpperBound {
	b := &UpperBound{capacity: capacity}
	if capacity > 0 {
		b.permits = semaphore.NewWeighted(int64(capacity))
	}
	return b
}

// Capacity returns the number of permits, 0 when unbounded.
func (b *UpperBound) Capacity() int {
	if b.permits == nil {
		return 0
	}
	return b.capacity
}

// TryAcquire acquires a permit.  A zero timeout only succeeds if
// a permit is available, a negative timeout waits until one is
// released and a positive timeout waits at most that long.  It
// reports false when the timeout expires or ctx is done.
func (b *UpperBound) TryAcquire(ctx context.Context, timeout time.Duration) bool {
	if b.permits == nil {
		return true
	}
	switch {
	case timeout == 0:
		if !b.permits.TryAcquire(1) {
			return false
		}
	default:
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := b.permits.Acquire(ctx, 1); err != nil {
			return false
		}
	}
	b.acquired.Add(1)
	return true
}

// Release returns a permit.
func (b *UpperBound) Release() {
	b.ReleaseN(1)
}

// ReleaseN returns n permits.
func (b *UpperBound) ReleaseN(n int) {
	if b.permits == nil || n <= 0 {
		return
	}
	b.permits.Release(int64(n))
	b.acquired.Add(-int64(n))
}

// AvailablePermits returns the permits not acquired, or
// math.MaxInt when unbounded.
func (b *UpperBound) AvailablePermits() int {
	if b.permits == nil {
		return math.MaxInt
	}
	return max(b.capacity-int(b.acquired.Load()), 0)
}

func (b *UpperBound) String() string {
	if b.permits == nil {
		return "UpperBound{unbounded}"
	}
	return fmt.Sprintf("UpperBound{capacity=%d, available=%d}",
		b.capacity, b.AvailablePermits())
}
