package routing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"alertbus/internal/domain/alert"
)

var tradeOutcomeTypes = []alert.EventType{
	alert.EventEntry, alert.EventExit, alert.EventTPHit, alert.EventSLHit,
}

// CreateSymbolRule routes events for one symbol to a bot. Nil types default to entry/exit/tp/sl.
func (r *AlertRouter) CreateSymbolRule(symbol, bot string, types []alert.EventType) (string, error) {
	if len(types) == 0 {
		types = tradeOutcomeTypes
	}
	return r.AddRule(Rule{
		Name:        "Symbol: " + symbol,
		EventTypes:  types,
		Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, bot, 0)},
		Conditions:  []Condition{{Field: "symbol", Operator: OpEq, Value: alert.String(symbol)}},
		Priority:    60,
		Enabled:     true,
		Description: fmt.Sprintf("Route %s alerts to %s", symbol, bot),
	})
}

// CreatePluginRule routes events produced by one plugin to a bot
func (r *AlertRouter) CreatePluginRule(plugin, bot string, types []alert.EventType) (string, error) {
	if len(types) == 0 {
		types = tradeOutcomeTypes
	}
	return r.AddRule(Rule{
		Name:        "Plugin: " + plugin,
		EventTypes:  types,
		Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, bot, 0)},
		Conditions:  []Condition{{Field: "plugin", Operator: OpEq, Value: alert.String(plugin)}},
		Priority:    55,
		Enabled:     true,
		Description: fmt.Sprintf("Route %s alerts to %s", plugin, bot),
	})
}

// CreateProfitThresholdRule routes exits booking at least minProfit to a bot
func (r *AlertRouter) CreateProfitThresholdRule(minProfit decimal.Decimal, bot string) (string, error) {
	return r.AddRule(Rule{
		Name:        fmt.Sprintf("High Profit (>= $%s)", minProfit.String()),
		EventTypes:  []alert.EventType{alert.EventExit, alert.EventTPHit},
		Targets:     []alert.RouteTarget{alert.NewTarget(alert.TargetBot, bot, 0)},
		Conditions:  []Condition{{Field: "profit", Operator: OpGte, Value: alert.Number(minProfit)}},
		Priority:    70,
		Enabled:     true,
		Description: fmt.Sprintf("Route high-profit trades (>= $%s) to %s", minProfit.String(), bot),
	})
}
