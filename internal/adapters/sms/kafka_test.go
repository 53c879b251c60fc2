package sms

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

type published struct {
	topic, key string
	payload    interface{}
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, key, payload})
	return nil
}

func TestKafkaChannel_PublishesJob(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewKafkaChannel(pub, "alerts.sms", logger.NewNop())
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ch.now = func() time.Time { return ts }

	err := ch.Send(context.Background(), alert.NewTarget(alert.TargetUser, "+15550100", 0), "EMERGENCY: margin call", true)
	require.NoError(t, err)

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "alerts.sms", msg.topic)
	assert.Equal(t, "user:+15550100", msg.key)
	assert.Equal(t, Job{TargetKind: "user", TargetID: "+15550100", Text: "EMERGENCY: margin call", CreatedAt: ts}, msg.payload)
}

func TestKafkaChannel_TruncatesLongText(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewKafkaChannel(pub, "alerts.sms", logger.NewNop())

	require.NoError(t, ch.Send(context.Background(), alert.NewTarget(alert.TargetBroadcast, "all", 0), strings.Repeat("x", 1000), false))

	job := pub.msgs[0].payload.(Job)
	assert.Len(t, []rune(job.Text), MaxLength)
	assert.True(t, strings.HasSuffix(job.Text, "..."))
}

func TestKafkaChannel_PublishError(t *testing.T) {
	ch := NewKafkaChannel(&fakePublisher{err: errors.New("broker down")}, "alerts.sms", logger.NewNop())

	err := ch.Send(context.Background(), alert.NewTarget(alert.TargetUser, "1", 0), "x", false)
	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "user:1")
}
