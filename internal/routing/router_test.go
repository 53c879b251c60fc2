package routing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

func newTestRouter() *AlertRouter {
	return NewAlertRouter(logger.NewNop())
}

func attrs(m map[string]any) alert.Attributes {
	return alert.AttributesFromMap(m)
}

func TestAlertRouter_SingleRuleNoConditions(t *testing.T) {
	r := NewEmptyAlertRouter(logger.NewNop())
	r.SetFallbackTargets([]alert.RouteTarget{alert.NewTarget(alert.TargetBot, "fallback", 0)})

	id, err := r.AddRule(Rule{
		EventTypes: []alert.EventType{alert.EventEntry},
		Targets:    []alert.RouteTarget{alert.NewTarget(alert.TargetBot, "notification", 50)},
		Enabled:    true,
	})
	require.NoError(t, err)

	res := r.Route(alert.EventEntry, attrs(map[string]any{"symbol": "EURUSD"}))

	assert.Equal(t, []string{id}, res.MatchedRuleIDs)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, alert.TargetBot, res.Targets[0].Kind)
	assert.Equal(t, "notification", res.Targets[0].ID)
	assert.False(t, res.FallbackUsed)
	assert.True(t, res.Routed)
}

func TestAlertRouter_DefaultEmergencyBroadcast(t *testing.T) {
	r := newTestRouter()

	res := r.Route(alert.EventEmergency, nil)

	assert.Equal(t, []string{"DEFAULT-EMERGENCY"}, res.MatchedRuleIDs)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, alert.TargetKey{Kind: alert.TargetBroadcast, ID: "all"}, res.Targets[0].Key())
	assert.False(t, res.FallbackUsed)
}

func TestAlertRouter_DefaultRules(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		eventType alert.EventType
		ruleID    string
		target    string
	}{
		{alert.EventEntry, "DEFAULT-TRADES", "notification"},
		{alert.EventBreakeven, "DEFAULT-TRADES", "notification"},
		{alert.EventWeeklyReport, "DEFAULT-ANALYTICS", "analytics"},
		{alert.EventInfo, "DEFAULT-SYSTEM", "controller"},
		{alert.EventRisk, "DEFAULT-ERRORS", "notification"},
		{alert.EventCritical, "DEFAULT-EMERGENCY", "all"},
	}
	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			res := r.Route(tt.eventType, nil)
			assert.Equal(t, []string{tt.ruleID}, res.MatchedRuleIDs)
			require.Len(t, res.Targets, 1)
			assert.Equal(t, tt.target, res.Targets[0].ID)
		})
	}
}

func TestDefaultBot(t *testing.T) {
	assert.Equal(t, "notification", DefaultBot(alert.EventEntry))
	assert.Equal(t, "analytics", DefaultBot(alert.EventPerformance))
	assert.Equal(t, "controller", DefaultBot(alert.EventSystem))
	assert.Equal(t, "broadcast", DefaultBot(alert.EventCritical))
	assert.Equal(t, "notification", DefaultBot(alert.EventType("unknown")))
}

func TestAlertRouter_FallbackUsedWhenNothingMatches(t *testing.T) {
	r := newTestRouter()
	fallback := []alert.RouteTarget{
		alert.NewTarget(alert.TargetChat, "ops", 5),
		alert.NewTarget(alert.TargetBot, "notification", 0),
	}
	r.SetFallbackTargets(fallback)
	for _, rule := range r.ListRules() {
		r.DisableRule(rule.ID)
	}

	res := r.Route(alert.EventEntry, nil)

	assert.True(t, res.FallbackUsed)
	assert.Empty(t, res.MatchedRuleIDs)
	assert.Equal(t, fallback, res.Targets)
}

func TestAlertRouter_FallbackWhenMatchedRuleHasNoEnabledTargets(t *testing.T) {
	r := newTestRouter()
	disabled := alert.NewTarget(alert.TargetBot, "muted", 10)
	disabled.Enabled = false

	_, err := r.AddRule(Rule{
		ID:         "MUTED",
		EventTypes: []alert.EventType{alert.EventDailyReport},
		Targets:    []alert.RouteTarget{disabled},
		Priority:   500,
		Enabled:    true,
	})
	require.NoError(t, err)
	r.DisableRule("DEFAULT-ANALYTICS")

	res := r.Route(alert.EventDailyReport, nil)
	assert.Equal(t, []string{"MUTED"}, res.MatchedRuleIDs)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, r.FallbackTargets(), res.Targets)
}

func TestAlertRouter_UnknownEventTypeFallsBack(t *testing.T) {
	r := newTestRouter()

	res := r.Route(alert.EventType("margin_call"), nil)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "notification", res.Targets[0].ID)
}

func TestAlertRouter_PriorityOrderAndDedup(t *testing.T) {
	r := newTestRouter()

	_, err := r.AddRule(Rule{
		ID:         "EUR-DESK",
		EventTypes: []alert.EventType{alert.EventEntry},
		Targets: []alert.RouteTarget{
			alert.NewTarget(alert.TargetChat, "eur-desk", 1),
			alert.NewTarget(alert.TargetBot, "notification", 90),
		},
		Conditions: []Condition{{Field: "symbol", Operator: OpEq, Value: alert.String("EURUSD")}},
		Priority:   80,
		Enabled:    true,
	})
	require.NoError(t, err)

	res := r.Route(alert.EventEntry, attrs(map[string]any{"symbol": "EURUSD"}))

	assert.Equal(t, []string{"EUR-DESK", "DEFAULT-TRADES"}, res.MatchedRuleIDs)
	require.Len(t, res.Targets, 2)
	// Targets of a rule are sorted by their own priority; the first occurrence wins
	assert.Equal(t, "notification", res.Targets[0].ID)
	assert.Equal(t, 90, res.Targets[0].Priority)
	assert.Equal(t, "eur-desk", res.Targets[1].ID)

	seen := make(map[alert.TargetKey]bool)
	for _, target := range res.Targets {
		assert.False(t, seen[target.Key()], "duplicate target %s", target)
		seen[target.Key()] = true
	}
}

func TestAlertRouter_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	r := NewEmptyAlertRouter(logger.NewNop())

	for i := 0; i < 5; i++ {
		_, err := r.AddRule(Rule{
			ID:         fmt.Sprintf("R%d", i),
			EventTypes: []alert.EventType{alert.EventExit},
			Targets:    []alert.RouteTarget{alert.NewTarget(alert.TargetChat, fmt.Sprintf("c%d", i), 0)},
			Priority:   10,
			Enabled:    true,
		})
		require.NoError(t, err)
	}

	first := r.Route(alert.EventExit, nil)
	assert.Equal(t, []string{"R0", "R1", "R2", "R3", "R4"}, first.MatchedRuleIDs)

	for i := 0; i < 10; i++ {
		again := r.Route(alert.EventExit, nil)
		assert.Equal(t, first.Targets, again.Targets)
	}
}

func TestAlertRouter_GeneratedIDs(t *testing.T) {
	r := NewEmptyAlertRouter(logger.NewNop())
	rule := Rule{
		EventTypes: []alert.EventType{alert.EventInfo},
		Targets:    []alert.RouteTarget{alert.NewTarget(alert.TargetBot, "controller", 0)},
		Enabled:    true,
	}

	id1, err := r.AddRule(rule)
	require.NoError(t, err)
	id2, err := r.AddRule(rule)
	require.NoError(t, err)

	assert.Equal(t, "RULE-0001", id1)
	assert.Equal(t, "RULE-0002", id2)

	// An explicit id occupying the next slot is skipped
	_, err = r.AddRule(Rule{ID: "RULE-0003", EventTypes: rule.EventTypes, Targets: rule.Targets, Enabled: true})
	require.NoError(t, err)
	id4, err := r.AddRule(rule)
	require.NoError(t, err)
	assert.Equal(t, "RULE-0004", id4)
}

func TestAlertRouter_MutationsTakeEffect(t *testing.T) {
	r := newTestRouter()

	assert.True(t, r.DisableRule("DEFAULT-TRADES"))
	assert.True(t, r.Route(alert.EventEntry, nil).FallbackUsed)

	assert.True(t, r.EnableRule("DEFAULT-TRADES"))
	assert.False(t, r.Route(alert.EventEntry, nil).FallbackUsed)

	rule, err := r.GetRule("DEFAULT-TRADES")
	require.NoError(t, err)
	rule.Targets = []alert.RouteTarget{alert.NewTarget(alert.TargetChat, "trades", 1)}
	require.NoError(t, r.UpdateRule(rule))
	assert.Equal(t, "trades", r.Route(alert.EventEntry, nil).Targets[0].ID)

	assert.True(t, r.RemoveRule("DEFAULT-TRADES"))
	assert.False(t, r.RemoveRule("DEFAULT-TRADES"))
	assert.False(t, r.EnableRule("DEFAULT-TRADES"))

	_, err = r.GetRule("DEFAULT-TRADES")
	assert.True(t, errors.Is(err, errors.ErrRuleNotFound))
	assert.True(t, errors.Is(r.UpdateRule(rule), errors.ErrRuleNotFound))
}

func TestAlertRouter_GetRuleReturnsCopy(t *testing.T) {
	r := newTestRouter()

	rule, err := r.GetRule("DEFAULT-EMERGENCY")
	require.NoError(t, err)
	rule.Targets[0].ID = "hijacked"

	res := r.Route(alert.EventEmergency, nil)
	assert.Equal(t, "all", res.Targets[0].ID)
}

func TestAlertRouter_AddRuleValidation(t *testing.T) {
	r := newTestRouter()
	before := len(r.ListRules())

	_, err := r.AddRule(Rule{
		EventTypes: []alert.EventType{"bogus"},
		Targets:    []alert.RouteTarget{{Kind: "pager", ID: "x", Enabled: true}},
		Conditions: []Condition{{Field: "symbol", Operator: "like", Value: alert.String("x")}},
		Enabled:    true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRule))
	assert.True(t, errors.Is(err, errors.ErrUnknownEventType))
	assert.True(t, errors.Is(err, errors.ErrUnknownTargetKind))
	assert.True(t, errors.Is(err, errors.ErrUnknownOperator))
	assert.Len(t, r.ListRules(), before)
}

func TestAlertRouter_Helpers(t *testing.T) {
	r := newTestRouter()

	symbolID, err := r.CreateSymbolRule("XAUUSD", "gold", nil)
	require.NoError(t, err)
	pluginID, err := r.CreatePluginRule("combined_v3", "v3", nil)
	require.NoError(t, err)
	profitID, err := r.CreateProfitThresholdRule(decimal.NewFromInt(500), "whales")
	require.NoError(t, err)

	res := r.Route(alert.EventExit, attrs(map[string]any{
		"symbol": "XAUUSD",
		"plugin": "combined_v3",
		"profit": 750,
	}))
	assert.Equal(t, []string{profitID, symbolID, pluginID, "DEFAULT-TRADES"}, res.MatchedRuleIDs)
	ids := make([]string, 0, len(res.Targets))
	for _, target := range res.Targets {
		ids = append(ids, target.ID)
	}
	assert.Equal(t, []string{"whales", "gold", "v3", "notification"}, ids)

	small := r.Route(alert.EventExit, attrs(map[string]any{"symbol": "EURUSD", "profit": 10}))
	assert.Equal(t, []string{"DEFAULT-TRADES"}, small.MatchedRuleIDs)
}

func TestAlertRouter_GetStats(t *testing.T) {
	r := newTestRouter()
	r.DisableRule("DEFAULT-SYSTEM")

	stats := r.GetStats()
	assert.Equal(t, 5, stats.TotalRules)
	assert.Equal(t, 4, stats.EnabledRules)
	assert.Equal(t, 1, stats.DisabledRules)
	assert.Equal(t, 1, stats.FallbackTargets)
	assert.Equal(t, 1, stats.RulesByEventType["entry"])
	assert.Equal(t, 1, stats.RulesByEventType["emergency"])
}

func TestAlertRouter_SetFallbackTargetsDedups(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewEmptyAlertRouter(&logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	unique := []alert.RouteTarget{
		alert.NewTarget(alert.TargetBot, "a", 1),
		alert.NewTarget(alert.TargetChat, "a", 0),
	}
	r.SetFallbackTargets(unique)
	assert.Equal(t, unique, r.FallbackTargets(), "a list without duplicates is kept exactly")
	assert.Zero(t, logs.Len())

	r.SetFallbackTargets([]alert.RouteTarget{
		alert.NewTarget(alert.TargetBot, "a", 1),
		alert.NewTarget(alert.TargetBot, "a", 9),
		alert.NewTarget(alert.TargetChat, "a", 0),
	})

	got := r.FallbackTargets()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Priority)
	require.Equal(t, 1, logs.FilterMessage("Duplicate fallback targets dropped").Len())

	res := r.Route(alert.EventEntry, nil)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, got, res.Targets)
}

func TestAlertRouter_ConcurrentRouteAndMutate(t *testing.T) {
	r := newTestRouter()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				res := r.Route(alert.EventEntry, nil)
				assert.True(t, res.Routed)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			r.DisableRule("DEFAULT-TRADES")
			r.EnableRule("DEFAULT-TRADES")
			_, _ = r.CreateSymbolRule(fmt.Sprintf("SYM%d", j), "desk", nil)
		}
	}()
	wg.Wait()
}
