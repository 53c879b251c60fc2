package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/internal/adapters/kafka"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

type notifyCall struct {
	eventType string
	priority  string
	attrs     map[string]any
}

type fakeNotifier struct {
	mu     sync.Mutex
	calls  []notifyCall
	result bool
}

func (n *fakeNotifier) Notify(ctx context.Context, eventType, priority string, attrs map[string]any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{eventType, priority, attrs})
	return n.result
}

type sliceSource struct {
	messages []kafkago.Message
	errs     []error
}

func (s *sliceSource) Consume(ctx context.Context, handler kafka.MessageHandler) error {
	for _, m := range s.messages {
		s.errs = append(s.errs, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"entry","priority":"high","attributes":{"symbol":"XAUUSD","entry_price":2345.10}}`))
	require.NoError(t, err)
	assert.Equal(t, "entry", event.Type)
	assert.Equal(t, "high", event.Priority)
	assert.Equal(t, "XAUUSD", event.Attributes["symbol"])
	assert.Equal(t, json.Number("2345.10"), event.Attributes["entry_price"])
}

func TestDecodeEvent_Invalid(t *testing.T) {
	_, err := DecodeEvent([]byte(`not json`))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = DecodeEvent([]byte(`{"attributes":{}}`))
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	event, err := DecodeEvent([]byte(`{"type":" info "}`))
	require.NoError(t, err)
	assert.Equal(t, "info", event.Type)
	assert.NotNil(t, event.Attributes)
}

func TestEventConsumer_DispatchesMessages(t *testing.T) {
	notifier := &fakeNotifier{result: true}
	c := NewEventConsumer(notifier, time.Second, logger.NewNop())

	source := &sliceSource{messages: []kafkago.Message{
		{Offset: 1, Value: []byte(`{"type":"emergency","attributes":{"reason":"drawdown"}}`)},
		{Offset: 2, Value: []byte(`{garbage`)},
		{Offset: 3, Value: []byte(`{"type":"unknown_type","priority":"low"}`)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, source) }()

	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.calls) == 2
	}, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "emergency", notifier.calls[0].eventType)
	assert.Equal(t, "", notifier.calls[0].priority)
	assert.Equal(t, "drawdown", notifier.calls[0].attrs["reason"])
	assert.Equal(t, "unknown_type", notifier.calls[1].eventType)

	require.Len(t, source.errs, 3)
	assert.NoError(t, source.errs[0])
	assert.Error(t, source.errs[1])
	assert.NoError(t, source.errs[2], "unknown types are recorded by the dispatcher, not retried")
}

func TestEventConsumer_DispatchSurvivesShutdown(t *testing.T) {
	var (
		called      bool
		dispatchErr error
		hasDeadline bool
	)
	notifier := notifierFunc(func(ctx context.Context) {
		called = true
		dispatchErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
	})
	c := NewEventConsumer(notifier, time.Second, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.HandleMessage(ctx, kafkago.Message{Value: []byte(`{"type":"info"}`)}))
	require.True(t, called)
	assert.NoError(t, dispatchErr)
	assert.True(t, hasDeadline)
}

type notifierFunc func(ctx context.Context)

func (f notifierFunc) Notify(ctx context.Context, eventType, priority string, attrs map[string]any) bool {
	f(ctx)
	return true
}
