// Package sms hands SMS jobs to an external gateway through Kafka
package sms

import (
	"context"
	"time"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Publisher is the Kafka producer as seen by the channel
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// Job is the message consumed by the SMS gateway
type Job struct {
	TargetKind string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxLength caps the SMS body; longer texts are cut on a rune boundary
const MaxLength = 480

// KafkaChannel publishes one SMS job per routed target
type KafkaChannel struct {
	publisher Publisher
	topic     string
	now       func() time.Time
	log       *logger.Logger
}

// NewKafkaChannel creates the SMS channel
func NewKafkaChannel(publisher Publisher, topic string, log *logger.Logger) *KafkaChannel {
	if log == nil {
		log = logger.Get()
	}
	return &KafkaChannel{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
		log:       log.With("component", "sms_channel"),
	}
}

// Send publishes the job keyed by target so one recipient keeps ordering.
// SMS has no silent mode; the flag is ignored.
func (c *KafkaChannel) Send(ctx context.Context, target alert.RouteTarget, text string, _ bool) error {
	job := Job{
		TargetKind: string(target.Kind),
		TargetID:   target.ID,
		Text:       shorten(text, MaxLength),
		CreatedAt:  c.now(),
	}
	if err := c.publisher.Publish(ctx, c.topic, target.String(), job); err != nil {
		return errors.Wrapf(err, "sms job for %s", target)
	}
	c.log.Debugw("SMS job published", "target", target.String())
	return nil
}

func shorten(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
