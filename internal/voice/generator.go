package voice

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/templates"
)

const ellipsis = "..."

// Generator renders spoken text from the voice/<lang>/<trigger> templates.
// It has no side effects.
type Generator struct {
	registry *templates.Registry
}

// NewGenerator creates a generator over a template registry.
// A nil registry uses the embedded templates.
func NewGenerator(registry *templates.Registry) *Generator {
	if registry == nil {
		registry = templates.Get()
	}
	return &Generator{registry: registry}
}

// Generate renders text for the trigger. Missing translations fall back to English,
// missing templates to a generic sentence.
func (g *Generator) Generate(trigger Trigger, lang Language, attrs alert.Attributes) string {
	data := prepareData(attrs)

	for _, l := range []Language{lang, LanguageEnglish} {
		id := templateID(l, trigger)
		if !g.registry.Has(id) {
			continue
		}
		text, err := g.registry.Render(id, data)
		if err != nil {
			break
		}
		return strings.TrimSpace(text)
	}
	return "Notification: " + string(trigger)
}

// Has reports whether a template exists for the trigger in the language
func (g *Generator) Has(trigger Trigger, lang Language) bool {
	return g.registry.Has(templateID(lang, trigger))
}

func templateID(lang Language, trigger Trigger) string {
	return "voice/" + string(lang) + "/" + string(trigger)
}

// prepareData fills the keys every voice template may reference
func prepareData(attrs alert.Attributes) map[string]any {
	data := attrs.Raw()

	profit := decimal.Zero
	if v, ok := attrs.Get("profit"); ok {
		if d, isNum := v.Num(); isNum {
			profit = d
		}
	}

	defaults := map[string]any{
		"direction":   "unknown",
		"symbol":      "unknown",
		"entry_price": 0,
		"signal_type": "unknown",
		"profit":      profit.Abs(),
		"loss":        profit.Abs(),
		"tp_level":    1,
		"message":     "",
		"trades":      rawOr(attrs, "total_trades", 0),
		"net_pnl":     0,
		"reason":      "unknown",
	}
	for k, v := range defaults {
		if _, exists := data[k]; !exists {
			data[k] = v
		}
	}
	// spoken amounts are magnitudes; the template wording carries the sign
	if _, ok := attrs.Get("profit"); ok {
		data["profit"] = profit.Abs()
	}
	return data
}

func rawOr(attrs alert.Attributes, key string, def any) any {
	if v, ok := attrs.Get(key); ok && !v.IsNull() {
		return v.Raw()
	}
	return def
}

// truncate shortens text to at most limit runes, ending with an ellipsis
func truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	keep := limit - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return string(runes[:keep]) + ellipsis
}
