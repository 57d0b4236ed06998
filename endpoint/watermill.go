package endpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-logr/logr"
	"github.com/miruken-go/courier"
)

// watermillLogger adapts a logr.Logger to watermill.
type watermillLogger struct {
	logger logr.Logger
}

// WatermillLogger logs watermill events to logger.  Debug and
// trace events are logged at verbosity 1 and 2.
func WatermillLogger(logger logr.Logger) watermill.LoggerAdapter {
	return watermillLogger{logger}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(err, msg, keysAndValues(fields)...)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, keysAndValues(fields)...)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.V(1).Info(msg, keysAndValues(fields)...)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.V(2).Info(msg, keysAndValues(fields)...)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{l.logger.WithValues(keysAndValues(fields)...)}
}

func keysAndValues(fields watermill.LogFields) []any {
	kvs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kvs = append(kvs, k, v)
	}
	return kvs
}

// FromWatermill converts a watermill message into a courier message.
// The metadata become headers and the uuid becomes the id.
func FromWatermill(msg *message.Message) courier.Message {
	headers := make(map[string]any, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		headers[k] = v
	}
	if msg.UUID != "" {
		headers[courier.IdHeader] = msg.UUID
	}
	return courier.NewMessage([]byte(msg.Payload), headers)
}

// WatermillHandler handles watermill messages with h.  Errors are
// returned to watermill which nacks the message.
func WatermillHandler(h Handler) message.NoPublishHandlerFunc {
	if h == nil {
		panic("h cannot be nil")
	}
	return func(msg *message.Message) error {
		_, err := h.Handle(msg.Context(), FromWatermill(msg))
		return err
	}
}

// Consume handles the messages of topic with h until ctx is done
// or the subscription closes.  Handled messages are acked and
// failed messages are nacked.
func Consume(
	ctx        context.Context,
	subscriber message.Subscriber,
	topic      string,
	h          Handler,
	logger     logr.Logger,
) error {
	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("endpoint %q: subscribe %q: %w", h.Name(), topic, err)
	}
	handle := WatermillHandler(h)
	logger = logger.WithValues("endpoint", h.Name(), "topic", topic)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := handle(msg); err != nil {
				logger.Error(err, "handling failed", "uuid", msg.UUID)
				msg.Nack()
				if errors.Is(err, ErrNotRunning) {
					return err
				}
				continue
			}
			msg.Ack()
		}
	}
}
