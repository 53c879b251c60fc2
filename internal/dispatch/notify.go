package dispatch

import (
	"context"

	"github.com/shopspring/decimal"

	"alertbus/internal/domain/alert"
)

func merge(base map[string]any, extra map[string]any) alert.Attributes {
	for k, v := range extra {
		if _, set := base[k]; !set {
			base[k] = v
		}
	}
	return alert.AttributesFromMap(base)
}

func (d *Dispatcher) send(ctx context.Context, t alert.EventType, p alert.Priority, attrs alert.Attributes) Record {
	return d.Dispatch(ctx, alert.Event{Type: t, Priority: p, Attributes: attrs})
}

// NotifyEntry announces a newly opened trade
func (d *Dispatcher) NotifyEntry(ctx context.Context, plugin, symbol, direction string, entryPrice decimal.Decimal, signalType string, extra map[string]any) Record {
	attrs := merge(map[string]any{
		"plugin_name": plugin,
		"symbol":      symbol,
		"direction":   direction,
		"entry_price": entryPrice,
		"signal_type": signalType,
	}, extra)
	return d.send(ctx, alert.EventEntry, alert.DefaultPriority(alert.EventEntry), attrs)
}

// NotifyExit announces a closed trade. The sign of profit selects the
// profit or loss voice wording.
func (d *Dispatcher) NotifyExit(ctx context.Context, plugin, symbol, direction string, entryPrice, exitPrice, profit decimal.Decimal, reason string, extra map[string]any) Record {
	attrs := merge(map[string]any{
		"plugin_name":  plugin,
		"symbol":       symbol,
		"direction":    direction,
		"entry_price":  entryPrice,
		"exit_price":   exitPrice,
		"profit":       profit,
		"close_reason": reason,
	}, extra)
	return d.send(ctx, alert.EventExit, alert.DefaultPriority(alert.EventExit), attrs)
}

// NotifyEmergency broadcasts an emergency stop at critical priority
func (d *Dispatcher) NotifyEmergency(ctx context.Context, message string, extra map[string]any) Record {
	attrs := merge(map[string]any{"message": message}, extra)
	if _, ok := attrs["reason"]; !ok {
		attrs["reason"] = alert.String(message)
	}
	return d.send(ctx, alert.EventEmergency, alert.PriorityCritical, attrs)
}

// NotifyDailySummary sends the end-of-day report
func (d *Dispatcher) NotifyDailySummary(ctx context.Context, summary map[string]any) Record {
	attrs := merge(map[string]any{}, summary)
	return d.send(ctx, alert.EventDailyReport, alert.DefaultPriority(alert.EventDailyReport), attrs)
}

// NotifySystem sends a system, info, warning or error message
func (d *Dispatcher) NotifySystem(ctx context.Context, t alert.EventType, message string, extra map[string]any) Record {
	attrs := merge(map[string]any{"message": message}, extra)
	return d.send(ctx, t, alert.DefaultPriority(t), attrs)
}
