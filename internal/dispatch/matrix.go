package dispatch

import (
	"alertbus/internal/domain/alert"
	"alertbus/internal/domain/delivery"
)

// ChannelsFor returns the channels eligible for a priority, in attempt order.
// Unknown priorities get no channels.
func ChannelsFor(p alert.Priority) []delivery.Channel {
	switch p {
	case alert.PriorityCritical:
		return []delivery.Channel{delivery.ChannelVoice, delivery.ChannelChat, delivery.ChannelSMS}
	case alert.PriorityHigh, alert.PriorityMedium:
		return []delivery.Channel{delivery.ChannelVoice, delivery.ChannelChat}
	case alert.PriorityLow, alert.PriorityInfo:
		return []delivery.Channel{delivery.ChannelChat}
	}
	return nil
}

// Silent reports whether chat delivery should skip the notification sound
func Silent(p alert.Priority) bool {
	return p == alert.PriorityInfo
}
