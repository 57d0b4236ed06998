package channel

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/miruken-go/courier"
	"github.com/miruken-go/courier/bound"
	"golang.org/x/sync/semaphore"
)

type (
	// Sender accepts messages.
	Sender interface {
		Send(ctx context.Context, msg courier.Message, timeout time.Duration) bool
	}

	// Receiver hands out messages.
	Receiver interface {
		Receive(ctx context.Context, timeout time.Duration) (courier.Message, bool)
	}

	// Queue is an in-memory channel holding messages in FIFO
	// order.  A Queue with a capacity blocks senders while full.
	Queue struct {
		name      string
		slots     *bound.UpperBound
		available *semaphore.Weighted
		logger    logr.Logger
		mu        sync.Mutex
		messages  []courier.Message
	}

	// Option configures a Queue.
	Option func(*Queue)
)

// WithLogger logs messages sent and dropped.
func WithLogger(logger logr.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// NewQueue creates a Queue holding at most capacity messages.
// A capacity <= 0 is unbounded.
func NewQueue(name string, capacity int, opts ...Option) *Queue {
	available := semaphore.NewWeighted(math.MaxInt64)
	// no messages available initially
	available.TryAcquire(math.MaxInt64)
	q := &Queue{
		name:      name,
		slots:     bound.New(capacity),
		available: available,
		logger:    logr.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	q.logger = q.logger.WithValues("channel", name)
	return q
}

func (q *Queue) Name() string {
	return q.name
}

// Len returns the number of messages queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// RemainingCapacity returns the number of messages that can be
// sent without blocking.
func (q *Queue) RemainingCapacity() int {
	return q.slots.AvailablePermits()
}

// Send queues msg, waiting for space as UpperBound.TryAcquire.
// It reports false if the message was not queued.
func (q *Queue) Send(
	ctx     context.Context,
	msg     courier.Message,
	timeout time.Duration,
) bool {
	if msg == nil {
		return false
	}
	if !q.slots.TryAcquire(ctx, timeout) {
		q.logger.V(1).Info("channel full, message not sent", "id", msg.Headers().ID())
		return false
	}
	q.mu.Lock()
	q.messages = append(q.messages, msg)
	q.mu.Unlock()
	q.available.Release(1)
	return true
}

// Receive removes the oldest message, waiting for one as
// UpperBound.TryAcquire.  It reports false if none was received.
func (q *Queue) Receive(
	ctx     context.Context,
	timeout time.Duration,
) (courier.Message, bool) {
	switch {
	case timeout == 0:
		if !q.available.TryAcquire(1) {
			return nil, false
		}
	default:
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := q.available.Acquire(ctx, 1); err != nil {
			return nil, false
		}
	}
	q.mu.Lock()
	msg := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]
	q.mu.Unlock()
	q.slots.Release()
	return msg, true
}

func (q *Queue) String() string {
	return fmt.Sprintf("channel %s %v", q.name, q.slots)
}
