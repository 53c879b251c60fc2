package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

type fakePublisher struct {
	channel   string
	payload   interface{}
	receivers int64
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload interface{}) (int64, error) {
	p.channel, p.payload = channel, payload
	return p.receivers, p.err
}

func TestRedisSpeaker_Speak(t *testing.T) {
	pub := &fakePublisher{receivers: 1}
	s := NewRedisSpeaker(pub, "alertbus:voice", logger.NewNop())

	require.NoError(t, s.Speak(context.Background(), "Stop loss hit.", "en", "fast", 80))

	assert.Equal(t, "alertbus:voice", pub.channel)
	req := pub.payload.(SpeakRequest)
	assert.Equal(t, "Stop loss hit.", req.Text)
	assert.Equal(t, "fast", req.Speed)
	assert.Equal(t, 80, req.Volume)
}

func TestRedisSpeaker_NoListener(t *testing.T) {
	s := NewRedisSpeaker(&fakePublisher{}, "alertbus:voice", logger.NewNop())

	err := s.Speak(context.Background(), "x", "en", "normal", 100)
	assert.True(t, errors.Is(err, errors.ErrChannelUnavailable))
}

func TestRedisSpeaker_PublishError(t *testing.T) {
	s := NewRedisSpeaker(&fakePublisher{err: errors.New("READONLY")}, "c", logger.NewNop())

	assert.ErrorContains(t, s.Speak(context.Background(), "x", "en", "normal", 100), "READONLY")
}
