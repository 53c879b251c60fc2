package routing

import (
	"alertbus/internal/domain/alert"
)

// Well-known destinations of the default rule set
const (
	BotNotification = "notification"
	BotAnalytics    = "analytics"
	BotController   = "controller"
	BroadcastAll    = "all"
)

// defaultBots is the per-type destination used by dashboards and the default rules
var defaultBots = map[alert.EventType]string{
	alert.EventEntry:        BotNotification,
	alert.EventExit:         BotNotification,
	alert.EventTPHit:        BotNotification,
	alert.EventSLHit:        BotNotification,
	alert.EventPartialClose: BotNotification,
	alert.EventBreakeven:    BotNotification,
	alert.EventSystem:       BotController,
	alert.EventError:        BotNotification,
	alert.EventWarning:      BotNotification,
	alert.EventInfo:         BotController,
	alert.EventDailyReport:  BotAnalytics,
	alert.EventWeeklyReport: BotAnalytics,
	alert.EventPerformance:  BotAnalytics,
	alert.EventRisk:         BotNotification,
	alert.EventEmergency:    "broadcast",
	alert.EventCritical:     "broadcast",
}

// DefaultBot returns the default destination for an event type
func DefaultBot(t alert.EventType) string {
	if bot, ok := defaultBots[t]; ok {
		return bot
	}
	return BotNotification
}

func defaultRules() []Rule {
	return []Rule{
		{
			ID:          "DEFAULT-EMERGENCY",
			Name:        "Emergency Broadcast",
			EventTypes:  []alert.EventType{alert.EventEmergency, alert.EventCritical},
			Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBroadcast, BroadcastAll, 100)},
			Priority:    100,
			Enabled:     true,
			Description: "Broadcast emergency alerts to all bots",
		},
		{
			ID:   "DEFAULT-TRADES",
			Name: "Trade Notifications",
			EventTypes: []alert.EventType{
				alert.EventEntry, alert.EventExit, alert.EventTPHit,
				alert.EventSLHit, alert.EventPartialClose, alert.EventBreakeven,
			},
			Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, BotNotification, 50)},
			Priority:    50,
			Enabled:     true,
			Description: "Route trade alerts to notification bot",
		},
		{
			ID:          "DEFAULT-ANALYTICS",
			Name:        "Analytics Reports",
			EventTypes:  []alert.EventType{alert.EventDailyReport, alert.EventWeeklyReport, alert.EventPerformance},
			Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, BotAnalytics, 30)},
			Priority:    30,
			Enabled:     true,
			Description: "Route analytics to analytics bot",
		},
		{
			ID:          "DEFAULT-SYSTEM",
			Name:        "System Information",
			EventTypes:  []alert.EventType{alert.EventSystem, alert.EventInfo},
			Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, BotController, 20)},
			Priority:    20,
			Enabled:     true,
			Description: "Route system info to controller bot",
		},
		{
			ID:          "DEFAULT-ERRORS",
			Name:        "Errors and Warnings",
			EventTypes:  []alert.EventType{alert.EventError, alert.EventWarning, alert.EventRisk},
			Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, BotNotification, 40)},
			Priority:    40,
			Enabled:     true,
			Description: "Route errors and warnings to notification bot",
		},
	}
}

func defaultFallback() []alert.RouteTarget {
	return []alert.RouteTarget{alert.NewTarget(alert.TargetBot, BotNotification, 0)}
}
