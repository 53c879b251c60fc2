package templates

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ErrTemplateNotFound is returned when no template exists for an ID
var ErrTemplateNotFound = errors.New("template not found")

// FuncMap returns the helpers available to every template
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"money":   Money,
		"signed":  Signed,
		"abs":     Abs,
		"upper":   strings.ToUpper,
		"comma":   Comma,
		"default": Default,
	}
}

// toDecimal converts numeric template data; ok is false for non-numbers
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	return decimal.Zero, false
}

// Money renders a number with two decimals; anything else is printed as is
func Money(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	return d.StringFixed(2)
}

// Signed renders a number with two decimals and an explicit sign
func Signed(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

// Abs returns the absolute value of a number; non-numbers pass through
func Abs(v any) any {
	d, ok := toDecimal(v)
	if !ok {
		return v
	}
	return d.Abs()
}

// Comma groups thousands: 1234567 -> 1,234,567
func Comma(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	if d.IsInteger() {
		return humanize.Comma(d.IntPart())
	}
	f, _ := d.Float64()
	return humanize.Commaf(f)
}

// Default returns def when v is nil or an empty string
func Default(def, v any) any {
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok && s == "" {
		return def
	}
	return v
}
