package alert

import (
	"encoding/json"
	"strconv"
	"strings"

	"alertbus/pkg/errors"
)

// EventType is the closed set of notification-worthy events emitted by trading components
type EventType string

const (
	// Trade events
	EventEntry        EventType = "entry"
	EventExit         EventType = "exit"
	EventTPHit        EventType = "tp_hit"
	EventSLHit        EventType = "sl_hit"
	EventPartialClose EventType = "partial_close"
	EventBreakeven    EventType = "breakeven"

	// System events
	EventSystem  EventType = "system"
	EventError   EventType = "error"
	EventWarning EventType = "warning"
	EventInfo    EventType = "info"

	// Analytics events
	EventDailyReport  EventType = "daily_report"
	EventWeeklyReport EventType = "weekly_report"
	EventPerformance  EventType = "performance"
	EventRisk         EventType = "risk"

	// Emergency events
	EventEmergency EventType = "emergency"
	EventCritical  EventType = "critical"
)

var allEventTypes = []EventType{
	EventEntry, EventExit, EventTPHit, EventSLHit, EventPartialClose, EventBreakeven,
	EventSystem, EventError, EventWarning, EventInfo,
	EventDailyReport, EventWeeklyReport, EventPerformance, EventRisk,
	EventEmergency, EventCritical,
}

// AllEventTypes returns every known event type in declaration order
func AllEventTypes() []EventType {
	out := make([]EventType, len(allEventTypes))
	copy(out, allEventTypes)
	return out
}

// Valid reports whether t is part of the closed set
func (t EventType) Valid() bool {
	for _, known := range allEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t EventType) String() string {
	return string(t)
}

// IsTrade reports whether the event concerns a position lifecycle step
func (t EventType) IsTrade() bool {
	switch t {
	case EventEntry, EventExit, EventTPHit, EventSLHit, EventPartialClose, EventBreakeven:
		return true
	}
	return false
}

// ParseEventType converts a raw tag into an EventType
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.Wrapf(errors.ErrUnknownEventType, "%q", s)
	}
	return t, nil
}

// Priority is the urgency of an event. Higher values are more urgent.
type Priority int

const (
	PriorityUnknown  Priority = 0
	PriorityInfo     Priority = 1
	PriorityLow      Priority = 2
	PriorityMedium   Priority = 3
	PriorityHigh     Priority = 4
	PriorityCritical Priority = 5
)

var priorityNames = map[Priority]string{
	PriorityInfo:     "info",
	PriorityLow:      "low",
	PriorityMedium:   "medium",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

// String returns the lowercase priority name
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether p is one of the five defined levels
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// Marker is the emoji prefix used in chat messages
func (p Priority) Marker() string {
	switch p {
	case PriorityCritical:
		return "🔴"
	case PriorityHigh:
		return "🟠"
	case PriorityMedium:
		return "🟡"
	case PriorityLow:
		return "🔵"
	case PriorityInfo:
		return "🟢"
	default:
		return "⚪"
	}
}

// Color is the dashboard color name for the priority
func (p Priority) Color() string {
	switch p {
	case PriorityCritical:
		return "RED"
	case PriorityHigh:
		return "ORANGE"
	case PriorityMedium:
		return "YELLOW"
	case PriorityLow:
		return "BLUE"
	case PriorityInfo:
		return "GREEN"
	default:
		return "WHITE"
	}
}

// ParsePriority accepts a name (any case) or the numeric level
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Priority(n).Valid() {
		return Priority(n), nil
	}
	return PriorityUnknown, errors.Wrapf(errors.ErrUnknownPriority, "%q", s)
}

// DefaultPriority returns the priority used when a producer does not supply one
func DefaultPriority(t EventType) Priority {
	switch t {
	case EventEmergency, EventCritical:
		return PriorityCritical
	case EventEntry, EventExit, EventTPHit, EventSLHit, EventRisk, EventError:
		return PriorityHigh
	case EventPartialClose, EventBreakeven, EventWarning:
		return PriorityMedium
	case EventDailyReport, EventWeeklyReport, EventPerformance:
		return PriorityLow
	case EventSystem, EventInfo:
		return PriorityInfo
	default:
		return PriorityMedium
	}
}

// TargetKind is the addressing scheme of a route target
type TargetKind string

const (
	TargetBot       TargetKind = "bot"
	TargetChat      TargetKind = "chat"
	TargetUser      TargetKind = "user"
	TargetBroadcast TargetKind = "broadcast"
	TargetGroup     TargetKind = "group"
)

// Valid reports whether k is a known target kind
func (k TargetKind) Valid() bool {
	switch k {
	case TargetBot, TargetChat, TargetUser, TargetBroadcast, TargetGroup:
		return true
	}
	return false
}

// RouteTarget is an addressable destination for a formatted message
type RouteTarget struct {
	Kind     TargetKind `json:"target_type"`
	ID       string     `json:"target_id"`
	Priority int        `json:"priority"`
	Enabled  bool       `json:"enabled"`
}

// TargetKey identifies a target for deduplication
type TargetKey struct {
	Kind TargetKind
	ID   string
}

// Key returns the (kind, id) identity of the target
func (t RouteTarget) Key() TargetKey {
	return TargetKey{Kind: t.Kind, ID: t.ID}
}

func (t RouteTarget) String() string {
	return string(t.Kind) + ":" + t.ID
}

// NewTarget returns an enabled target
func NewTarget(kind TargetKind, id string, priority int) RouteTarget {
	return RouteTarget{Kind: kind, ID: id, Priority: priority, Enabled: true}
}

// Event is an immutable notification-worthy occurrence
type Event struct {
	Type       EventType
	Priority   Priority
	Attributes Attributes
}

// UnmarshalJSON defaults Enabled to true when the field is absent
func (t *RouteTarget) UnmarshalJSON(data []byte) error {
	type plain RouteTarget
	aux := plain{Enabled: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = RouteTarget(aux)
	return nil
}
