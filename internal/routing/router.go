package routing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"alertbus/internal/domain/alert"
	"alertbus/internal/metrics"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Result is the outcome of routing one event
type Result struct {
	EventType      alert.EventType     `json:"alert_type"`
	MatchedRuleIDs []string            `json:"matched_rules"`
	Targets        []alert.RouteTarget `json:"targets"`
	Routed         bool                `json:"routed"`
	FallbackUsed   bool                `json:"fallback_used"`
	Timestamp      time.Time           `json:"timestamp"`
}

// Stats summarizes the rule set
type Stats struct {
	TotalRules       int            `json:"total_rules"`
	EnabledRules     int            `json:"enabled_rules"`
	DisabledRules    int            `json:"disabled_rules"`
	RulesByEventType map[string]int `json:"rules_by_alert_type"`
	FallbackTargets  int            `json:"fallback_targets"`
}

// AlertRouter resolves events to a deduplicated, priority-ordered target list.
// Stored rules are never mutated in place; updates swap in a new copy so Route
// can evaluate a snapshot without holding the lock.
type AlertRouter struct {
	mu       sync.RWMutex
	rules    map[string]*Rule
	order    []string
	fallback []alert.RouteTarget
	counter  int

	log *logger.Logger
}

// NewAlertRouter creates a router preloaded with the default rule set
func NewAlertRouter(log *logger.Logger) *AlertRouter {
	if log == nil {
		log = logger.Get()
	}
	r := &AlertRouter{
		rules: make(map[string]*Rule),
		log:   log.With("component", "alert_router"),
	}
	for _, rule := range defaultRules() {
		if _, err := r.AddRule(rule); err != nil {
			// Default rules are static; failing here is a programming error
			panic(err)
		}
	}
	r.SetFallbackTargets(defaultFallback())
	return r
}

// NewEmptyAlertRouter creates a router without default rules or fallback targets
func NewEmptyAlertRouter(log *logger.Logger) *AlertRouter {
	if log == nil {
		log = logger.Get()
	}
	return &AlertRouter{
		rules: make(map[string]*Rule),
		log:   log.With("component", "alert_router"),
	}
}

// Route resolves targets for an event
func (r *AlertRouter) Route(eventType alert.EventType, attrs alert.Attributes) Result {
	rules, fallback := r.snapshot()

	// Stable: equal priorities keep registration order
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	result := Result{
		EventType:      eventType,
		MatchedRuleIDs: []string{},
		Timestamp:      time.Now(),
	}

	var collected []alert.RouteTarget
	for _, rule := range rules {
		if !rule.Matches(eventType, attrs) {
			continue
		}
		result.MatchedRuleIDs = append(result.MatchedRuleIDs, rule.ID)
		collected = append(collected, rule.EnabledTargets()...)
	}

	result.Targets = dedupTargets(collected)
	if len(result.Targets) == 0 {
		result.Targets = fallback
		result.FallbackUsed = true
	}
	result.Routed = len(result.Targets) > 0

	metrics.RecordRouting(eventType.String(), len(result.MatchedRuleIDs) > 0, result.FallbackUsed)
	r.log.Debugw("Event routed",
		"event_type", eventType,
		"matched_rules", result.MatchedRuleIDs,
		"targets", len(result.Targets),
		"fallback_used", result.FallbackUsed,
	)
	return result
}

// snapshot copies the rule pointers in registration order and the fallback list
func (r *AlertRouter) snapshot() ([]*Rule, []alert.RouteTarget) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]*Rule, 0, len(r.order))
	for _, id := range r.order {
		rules = append(rules, r.rules[id])
	}
	return rules, append([]alert.RouteTarget(nil), r.fallback...)
}

// dedupTargets keeps the first occurrence of each (kind, id)
func dedupTargets(targets []alert.RouteTarget) []alert.RouteTarget {
	seen := make(map[alert.TargetKey]struct{}, len(targets))
	out := make([]alert.RouteTarget, 0, len(targets))
	for _, t := range targets {
		key := t.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// AddRule validates and registers a rule, returning its id.
// An empty id is replaced by the next RULE-NNNN id; an existing id is overwritten in place.
func (r *AlertRouter) AddRule(rule Rule) (string, error) {
	c := rule.clone()
	if err := c.prepare(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = r.nextIDLocked()
	}
	r.putLocked(c)

	r.log.Infow("Routing rule added", "rule_id", c.ID, "priority", c.Priority, "event_types", c.EventTypes)
	return c.ID, nil
}

func (r *AlertRouter) nextIDLocked() string {
	for {
		r.counter++
		id := fmt.Sprintf("RULE-%04d", r.counter)
		if _, taken := r.rules[id]; !taken {
			return id
		}
	}
}

func (r *AlertRouter) putLocked(rule *Rule) {
	if _, exists := r.rules[rule.ID]; !exists {
		r.order = append(r.order, rule.ID)
	}
	r.rules[rule.ID] = rule
}

// RemoveRule deletes a rule. Returns false if it was not registered.
func (r *AlertRouter) RemoveRule(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return false
	}
	delete(r.rules, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.log.Infow("Routing rule removed", "rule_id", id)
	return true
}

// UpdateRule replaces an existing rule, keeping its registration position
func (r *AlertRouter) UpdateRule(rule Rule) error {
	c := rule.clone()
	if err := c.prepare(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[c.ID]; !ok {
		return errors.Wrapf(errors.ErrRuleNotFound, "%q", c.ID)
	}
	r.rules[c.ID] = c
	r.log.Infow("Routing rule updated", "rule_id", c.ID)
	return nil
}

// EnableRule enables a rule. Returns false if it was not registered.
func (r *AlertRouter) EnableRule(id string) bool {
	return r.setEnabled(id, true)
}

// DisableRule disables a rule. Returns false if it was not registered.
func (r *AlertRouter) DisableRule(id string) bool {
	return r.setEnabled(id, false)
}

func (r *AlertRouter) setEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rules[id]
	if !ok {
		return false
	}
	c := existing.clone()
	c.Enabled = enabled
	r.rules[id] = c
	return true
}

// GetRule returns a copy of a rule
func (r *AlertRouter) GetRule(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, errors.Wrapf(errors.ErrRuleNotFound, "%q", id)
	}
	return *rule.clone(), nil
}

// ListRules returns copies of all rules, highest priority first
func (r *AlertRouter) ListRules() []Rule {
	rules, _ := r.snapshot()
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, *rule.clone())
	}
	return out
}

// SetFallbackTargets replaces the targets used when no rule matches.
// Duplicate (kind, id) pairs are dropped, keeping the first.
func (r *AlertRouter) SetFallbackTargets(targets []alert.RouteTarget) {
	deduped := dedupTargets(targets)
	if dropped := len(targets) - len(deduped); dropped > 0 {
		r.log.Warnw("Duplicate fallback targets dropped",
			"configured", len(targets),
			"kept", len(deduped),
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = deduped
}

// FallbackTargets returns a copy of the fallback list
func (r *AlertRouter) FallbackTargets() []alert.RouteTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]alert.RouteTarget(nil), r.fallback...)
}

// GetStats summarizes the registered rules
func (r *AlertRouter) GetStats() Stats {
	rules, fallback := r.snapshot()

	stats := Stats{
		TotalRules:       len(rules),
		RulesByEventType: make(map[string]int),
		FallbackTargets:  len(fallback),
	}
	for _, rule := range rules {
		if rule.Enabled {
			stats.EnabledRules++
		}
		for _, et := range rule.EventTypes {
			stats.RulesByEventType[et.String()]++
		}
	}
	stats.DisabledRules = stats.TotalRules - stats.EnabledRules
	return stats
}
