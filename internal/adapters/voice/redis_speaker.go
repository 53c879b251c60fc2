// Package voice plays voice alerts through a playback host listening on Redis
package voice

import (
	"context"
	"time"

	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Publisher is the Redis client as seen by the speaker
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) (int64, error)
}

// SpeakRequest is the pub/sub payload consumed by the playback host
type SpeakRequest struct {
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Speed     string    `json:"speed"`
	Volume    int       `json:"volume"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisSpeaker implements voice.Speaker by publishing speak requests
type RedisSpeaker struct {
	publisher Publisher
	channel   string
	log       *logger.Logger
}

// NewRedisSpeaker creates a speaker publishing on channel
func NewRedisSpeaker(publisher Publisher, channel string, log *logger.Logger) *RedisSpeaker {
	if log == nil {
		log = logger.Get()
	}
	return &RedisSpeaker{
		publisher: publisher,
		channel:   channel,
		log:       log.With("component", "redis_speaker"),
	}
}

// Speak fails when no playback host is subscribed, so the alert is not
// counted as played.
func (s *RedisSpeaker) Speak(ctx context.Context, text, language, speed string, volume int) error {
	receivers, err := s.publisher.Publish(ctx, s.channel, SpeakRequest{
		Text:      text,
		Language:  language,
		Speed:     speed,
		Volume:    volume,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "publish speak request")
	}
	if receivers == 0 {
		return errors.Wrapf(errors.ErrChannelUnavailable, "no playback host on %s", s.channel)
	}
	s.log.Debugw("Speak request published", "receivers", receivers, "language", language)
	return nil
}
