package consumers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"alertbus/internal/adapters/kafka"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Notifier accepts inbound events
type Notifier interface {
	Notify(ctx context.Context, eventType, priority string, attrs map[string]any) bool
}

// MessageSource delivers messages to a handler until ctx is cancelled
type MessageSource interface {
	Consume(ctx context.Context, handler kafka.MessageHandler) error
}

// EventMessage is the JSON envelope producers publish to the events topic
type EventMessage struct {
	Type       string         `json:"type"`
	Priority   string         `json:"priority,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

// EventConsumer turns Kafka events into notifications
type EventConsumer struct {
	notifier       Notifier
	log            *logger.Logger
	processTimeout time.Duration
}

// NewEventConsumer creates a consumer. processTimeout bounds each dispatch.
func NewEventConsumer(notifier Notifier, processTimeout time.Duration, log *logger.Logger) *EventConsumer {
	if log == nil {
		log = logger.Get()
	}
	if processTimeout <= 0 {
		processTimeout = 30 * time.Second
	}
	return &EventConsumer{
		notifier:       notifier,
		log:            log.With("component", "event_consumer"),
		processTimeout: processTimeout,
	}
}

// Start consumes until ctx is cancelled
func (c *EventConsumer) Start(ctx context.Context, source MessageSource) error {
	c.log.Info("Starting event consumer...")
	err := source.Consume(ctx, c.HandleMessage)
	if err != nil && ctx.Err() != nil {
		c.log.Info("Event consumer stopped")
		return nil
	}
	return err
}

// HandleMessage decodes one event and dispatches it. A dispatch that reaches
// no channel is not an error; the outcome is already in the delivery stats.
func (c *EventConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		return errors.Wrapf(err, "decode event at offset %d", msg.Offset)
	}

	// in-flight dispatch completes even when shutdown starts
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.processTimeout)
	defer cancel()

	delivered := c.notifier.Notify(processCtx, event.Type, event.Priority, event.Attributes)
	c.log.Debugw("Event dispatched",
		"event_type", event.Type,
		"priority", event.Priority,
		"delivered", delivered,
		"offset", msg.Offset,
	)
	return nil
}

// DecodeEvent parses an event envelope. Numbers stay json.Number so prices
// and profits keep their exact decimal form.
func DecodeEvent(data []byte) (EventMessage, error) {
	var event EventMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		return EventMessage{}, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return EventMessage{}, errors.NewValidationError("type", "event type is required", event.Type)
	}
	if event.Attributes == nil {
		event.Attributes = map[string]any{}
	}
	return event, nil
}
