package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
)

func TestCondition_Evaluate(t *testing.T) {
	attrs := alert.AttributesFromMap(map[string]any{
		"symbol": "EURUSD",
		"profit": 125.5,
		"lots":   2,
		"plugin": "combined_v3",
		"tags":   []string{"scalp", "london"},
		"live":   true,
	})

	tests := []struct {
		name  string
		field string
		op    Operator
		value alert.Value
		want  bool
	}{
		{"eq string", "symbol", OpEq, alert.String("EURUSD"), true},
		{"eq string mismatch", "symbol", OpEq, alert.String("GBPUSD"), false},
		{"eq number across scale", "lots", OpEq, alert.Float(2.0), true},
		{"eq no cross kind coercion", "lots", OpEq, alert.String("2"), false},
		{"eq bool", "live", OpEq, alert.Bool(true), true},
		{"ne", "symbol", OpNe, alert.String("GBPUSD"), true},
		{"gt", "profit", OpGt, alert.Int(100), true},
		{"gt equal is false", "profit", OpGt, alert.Float(125.5), false},
		{"gte equal", "profit", OpGte, alert.Float(125.5), true},
		{"lt", "profit", OpLt, alert.Int(200), true},
		{"lte", "lots", OpLte, alert.Int(2), true},
		{"gt type mismatch", "symbol", OpGt, alert.Int(1), false},
		{"gt string ordering", "symbol", OpGt, alert.String("AUDUSD"), true},
		{"in list", "symbol", OpIn, alert.List(alert.String("EURUSD"), alert.String("GBPUSD")), true},
		{"in list miss", "symbol", OpIn, alert.List(alert.String("USDJPY")), false},
		{"in string", "symbol", OpIn, alert.String("XEURUSDX"), true},
		{"not_in list", "symbol", OpNotIn, alert.List(alert.String("USDJPY")), true},
		{"not_in list hit", "symbol", OpNotIn, alert.List(alert.String("EURUSD")), false},
		{"not_in string with number field", "lots", OpNotIn, alert.String("abc"), false},
		{"regex anchored match", "symbol", OpRegex, alert.String("EUR"), true},
		{"regex does not search", "symbol", OpRegex, alert.String("USD"), false},
		{"regex alternation stays anchored", "symbol", OpRegex, alert.String("GBP|EUR"), true},
		{"regex on number", "profit", OpRegex, alert.String(`\d+\.5`), true},
		{"contains substring", "plugin", OpContains, alert.String("v3"), true},
		{"contains substring miss", "plugin", OpContains, alert.String("v6"), false},
		{"contains list member", "tags", OpContains, alert.String("london"), true},
		{"contains list miss", "tags", OpContains, alert.String("tokyo"), false},
		{"missing field eq", "account", OpEq, alert.String("x"), false},
		{"missing field ne", "account", OpNe, alert.String("x"), false},
		{"missing field not_in", "account", OpNotIn, alert.List(alert.String("x")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCondition(tt.field, tt.op, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Evaluate(attrs))
		})
	}
}

func TestCondition_Validation(t *testing.T) {
	_, err := NewCondition("symbol", Operator("between"), alert.Int(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownOperator))

	_, err = NewCondition("symbol", OpRegex, alert.String("(unclosed"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = NewCondition("symbol", OpRegex, alert.Int(3))
	assert.Error(t, err)

	_, err = NewCondition("symbol", OpIn, alert.Int(3))
	assert.Error(t, err)

	_, err = NewCondition("", OpEq, alert.Int(3))
	assert.Error(t, err)
}

func TestCondition_NilAttributes(t *testing.T) {
	c := MustCondition("symbol", OpEq, alert.String("EURUSD"))
	assert.False(t, c.Evaluate(nil))
}
