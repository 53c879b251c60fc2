package delivery

import (
	"time"
)

// Channel is a delivery medium
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelVoice Channel = "voice"
	ChannelSMS   Channel = "sms"

	// ChannelNone marks a dispatch that had no eligible channel
	ChannelNone Channel = "none"
)

func (c Channel) String() string {
	return string(c)
}

// Metric is the immutable record of one channel delivery attempt (for insertion)
type Metric struct {
	DispatchID string    `ch:"dispatch_id" json:"dispatch_id"`
	Type       string    `ch:"type" json:"type"`
	Priority   string    `ch:"priority" json:"priority"`
	Channel    Channel   `ch:"channel" json:"channel"`
	Timestamp  time.Time `ch:"timestamp" json:"timestamp"`

	Success        bool    `ch:"success" json:"success"`
	VoiceSent      bool    `ch:"voice_sent" json:"voice_sent"`
	DeliveryTimeMs float64 `ch:"delivery_time_ms" json:"delivery_time_ms"`

	UserID string `ch:"user_id" json:"user_id,omitempty"`
	Error  string `ch:"error" json:"error,omitempty"`
}

// DailyVolume is one row of the archived per-day rollup (from materialized view)
type DailyVolume struct {
	Date          time.Time `ch:"date" json:"date"`
	Channel       string    `ch:"channel" json:"channel"`
	Total         uint64    `ch:"total" json:"total"`
	Successful    uint64    `ch:"successful" json:"successful"`
	Failed        uint64    `ch:"failed" json:"failed"`
	AvgDeliveryMs float64   `ch:"avg_delivery_ms" json:"avg_delivery_ms"`
}
