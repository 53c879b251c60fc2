package voice

import (
	"strings"
	"time"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
)

// Language of the spoken text
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
)

// Valid reports whether templates exist for the language
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageHindi
}

// ParseLanguage accepts "en" or "hi" in any case
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", errors.NewValidationError("language", "unsupported voice language", s)
	}
	return l, nil
}

// Speed of synthesized speech
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// Valid reports whether s is a known speed
func (s Speed) Valid() bool {
	switch s {
	case SpeedSlow, SpeedNormal, SpeedFast:
		return true
	}
	return false
}

// ParseSpeed accepts slow, normal or fast in any case
func ParseSpeed(s string) (Speed, error) {
	sp := Speed(strings.ToLower(strings.TrimSpace(s)))
	if !sp.Valid() {
		return "", errors.NewValidationError("speed", "unsupported voice speed", s)
	}
	return sp, nil
}

// Trigger is the voice-specific kind of an alert; each has its own template and switch
type Trigger string

const (
	TriggerEntry          Trigger = "entry"
	TriggerExitProfit     Trigger = "exit_profit"
	TriggerExitLoss       Trigger = "exit_loss"
	TriggerTPHit          Trigger = "tp_hit"
	TriggerSLHit          Trigger = "sl_hit"
	TriggerEmergency      Trigger = "emergency"
	TriggerDailySummary   Trigger = "daily_summary"
	TriggerRiskAlert      Trigger = "risk_alert"
	TriggerMT5Disconnect  Trigger = "mt5_disconnect"
	TriggerDailyLossLimit Trigger = "daily_loss_limit"
	TriggerPartialProfit  Trigger = "partial_profit"
	TriggerBreakeven      Trigger = "breakeven"
)

var allTriggers = []Trigger{
	TriggerEntry, TriggerExitProfit, TriggerExitLoss, TriggerTPHit, TriggerSLHit,
	TriggerEmergency, TriggerDailySummary, TriggerRiskAlert, TriggerMT5Disconnect,
	TriggerDailyLossLimit, TriggerPartialProfit, TriggerBreakeven,
}

// AllTriggers returns every trigger in declaration order
func AllTriggers() []Trigger {
	return append([]Trigger(nil), allTriggers...)
}

// Valid reports whether t is a known trigger
func (t Trigger) Valid() bool {
	for _, known := range allTriggers {
		if t == known {
			return true
		}
	}
	return false
}

// TriggerAttribute lets a producer pick the trigger explicitly,
// e.g. a risk event carrying voice_trigger=daily_loss_limit.
const TriggerAttribute = "voice_trigger"

// TriggerFor maps an event to its voice trigger.
// Exit events become exit_loss when profit is negative, exit_profit otherwise.
func TriggerFor(eventType alert.EventType, attrs alert.Attributes) (Trigger, bool) {
	if v, ok := attrs.Get(TriggerAttribute); ok {
		if s, isStr := v.Str(); isStr && Trigger(s).Valid() {
			return Trigger(s), true
		}
	}

	switch eventType {
	case alert.EventEntry:
		return TriggerEntry, true
	case alert.EventExit:
		if profit, ok := attrs.Get("profit"); ok {
			if d, isNum := profit.Num(); isNum && d.IsNegative() {
				return TriggerExitLoss, true
			}
		}
		return TriggerExitProfit, true
	case alert.EventTPHit:
		return TriggerTPHit, true
	case alert.EventSLHit:
		return TriggerSLHit, true
	case alert.EventPartialClose:
		return TriggerPartialProfit, true
	case alert.EventBreakeven:
		return TriggerBreakeven, true
	case alert.EventEmergency, alert.EventCritical:
		return TriggerEmergency, true
	case alert.EventDailyReport:
		return TriggerDailySummary, true
	case alert.EventRisk:
		return TriggerRiskAlert, true
	}
	return "", false
}

// Config controls generation, cooldown and queueing.
// Changes apply to the next alert.
type Config struct {
	Enabled       bool             `json:"enabled"`
	Language      Language         `json:"language"`
	Speed         Speed            `json:"speed"`
	Volume        int              `json:"volume"`
	Triggers      map[Trigger]bool `json:"triggers"`
	MaxTextLength int              `json:"max_text_length"`
	QueueEnabled  bool             `json:"queue_enabled"`
	MaxQueueSize  int              `json:"max_queue_size"`
	Cooldown      time.Duration    `json:"cooldown"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	triggers := make(map[Trigger]bool, len(allTriggers))
	for _, t := range allTriggers {
		triggers[t] = true
	}
	triggers[TriggerDailySummary] = false
	triggers[TriggerPartialProfit] = false
	triggers[TriggerBreakeven] = false

	return Config{
		Enabled:       true,
		Language:      LanguageEnglish,
		Speed:         SpeedNormal,
		Volume:        100,
		Triggers:      triggers,
		MaxTextLength: 200,
		QueueEnabled:  true,
		MaxQueueSize:  10,
		Cooldown:      2 * time.Second,
	}
}

// TriggerEnabled reports whether the pipeline and the trigger are both on
func (c Config) TriggerEnabled(t Trigger) bool {
	return c.Enabled && c.Triggers[t]
}

// Validate checks field ranges
func (c Config) Validate() error {
	var errs errors.MultiError
	if !c.Language.Valid() {
		errs.Add(errors.NewValidationError("language", "unsupported voice language", c.Language))
	}
	if !c.Speed.Valid() {
		errs.Add(errors.NewValidationError("speed", "unsupported voice speed", c.Speed))
	}
	if c.Volume < 0 || c.Volume > 100 {
		errs.Add(errors.NewValidationError("volume", "must be within 0-100", c.Volume))
	}
	if c.MaxTextLength < 4 {
		errs.Add(errors.NewValidationError("max_text_length", "must be at least 4", c.MaxTextLength))
	}
	if c.MaxQueueSize < 1 {
		errs.Add(errors.NewValidationError("max_queue_size", "must be positive", c.MaxQueueSize))
	}
	if c.Cooldown < 0 {
		errs.Add(errors.NewValidationError("cooldown", "must not be negative", c.Cooldown))
	}
	for t := range c.Triggers {
		if !t.Valid() {
			errs.Add(errors.NewValidationError("triggers", "unknown trigger", t))
		}
	}
	return errs.ToError()
}

func (c Config) clone() Config {
	out := c
	out.Triggers = make(map[Trigger]bool, len(c.Triggers))
	for t, on := range c.Triggers {
		out.Triggers[t] = on
	}
	return out
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}
