package routing

import (
	"encoding/json"
	"sort"
	"time"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
)

// Rule maps a set of event types, gated by AND-combined conditions, to an ordered target list
type Rule struct {
	ID          string              `json:"rule_id"`
	Name        string              `json:"name"`
	EventTypes  []alert.EventType   `json:"event_types"`
	Targets     []alert.RouteTarget `json:"targets"`
	Conditions  []Condition         `json:"conditions"`
	Priority    int                 `json:"priority"`
	Enabled     bool                `json:"enabled"`
	Description string              `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
}

// UnmarshalJSON defaults Enabled to true when the field is absent
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	aux := plain{Enabled: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Rule(aux)
	return nil
}

// Handles reports whether the rule applies to the event type
func (r *Rule) Handles(t alert.EventType) bool {
	for _, et := range r.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Matches reports whether an enabled rule accepts the event.
// A rule without conditions matches every event of its types.
func (r *Rule) Matches(t alert.EventType, attrs alert.Attributes) bool {
	if !r.Enabled || !r.Handles(t) {
		return false
	}
	for _, c := range r.Conditions {
		if !c.Evaluate(attrs) {
			return false
		}
	}
	return true
}

// EnabledTargets returns enabled targets ordered by priority, highest first
func (r *Rule) EnabledTargets() []alert.RouteTarget {
	out := make([]alert.RouteTarget, 0, len(r.Targets))
	for _, t := range r.Targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// clone returns a deep copy detached from the caller's slices
func (r *Rule) clone() *Rule {
	c := *r
	c.EventTypes = append([]alert.EventType(nil), r.EventTypes...)
	c.Targets = append([]alert.RouteTarget(nil), r.Targets...)
	c.Conditions = append([]Condition(nil), r.Conditions...)
	return &c
}

// prepare validates the rule, compiles its conditions and deduplicates its event types.
// Every problem is reported, not just the first.
func (r *Rule) prepare() error {
	var errs errors.MultiError

	if len(r.EventTypes) == 0 {
		errs.Add(errors.NewValidationError("event_types", "at least one event type is required", nil))
	}
	seen := make(map[alert.EventType]struct{}, len(r.EventTypes))
	types := r.EventTypes[:0:0]
	for _, et := range r.EventTypes {
		if !et.Valid() {
			errs.Add(errors.Wrapf(errors.ErrUnknownEventType, "%q", et))
			continue
		}
		if _, dup := seen[et]; dup {
			continue
		}
		seen[et] = struct{}{}
		types = append(types, et)
	}
	r.EventTypes = types

	for _, t := range r.Targets {
		if !t.Kind.Valid() {
			errs.Add(errors.Wrapf(errors.ErrUnknownTargetKind, "%q", t.Kind))
		}
		if t.ID == "" {
			errs.Add(errors.NewValidationError("target_id", "must not be empty", t.Kind))
		}
	}

	for i := range r.Conditions {
		if err := r.Conditions[i].compile(); err != nil {
			errs.Add(err)
		}
	}

	if err := errs.ToError(); err != nil {
		return errors.Newf("%w %q: %w", errors.ErrInvalidRule, r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}
