package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"alertbus/internal/domain/alert"
)

func TestGenerator_Defaults(t *testing.T) {
	g := NewGenerator(nil)

	assert.Equal(t, "New unknown trade on unknown at 0. Signal: unknown.",
		g.Generate(TriggerEntry, LanguageEnglish, nil))
	assert.Equal(t, "Take profit 1 hit. Profit: 0 dollars.",
		g.Generate(TriggerTPHit, LanguageEnglish, nil))
	assert.Equal(t, "Daily summary. 14 trades. Net profit: 0 dollars.",
		g.Generate(TriggerDailySummary, LanguageEnglish, alert.AttributesFromMap(map[string]any{"total_trades": 14})))
}

func TestGenerator_LossIsMagnitude(t *testing.T) {
	g := NewGenerator(nil)
	attrs := alert.AttributesFromMap(map[string]any{"direction": "SELL", "profit": -42.5})

	assert.Equal(t, "SELL trade closed with loss of 42.5 dollars.",
		g.Generate(TriggerExitLoss, LanguageEnglish, attrs))
	assert.Equal(t, "Stop loss hit. Loss: 42.5 dollars.",
		g.Generate(TriggerSLHit, LanguageEnglish, attrs))
}

func TestGenerator_Fallbacks(t *testing.T) {
	g := NewGenerator(nil)

	assert.False(t, g.Has(TriggerBreakeven, LanguageHindi))
	assert.Equal(t, "Stop loss moved to breakeven.",
		g.Generate(TriggerBreakeven, LanguageHindi, nil), "missing translation uses English")
	assert.Equal(t, "Notification: mystery", g.Generate(Trigger("mystery"), LanguageEnglish, nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "नमस...", truncate("नमस्ते दुनिया", 6))
}
