package telegram

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBot struct {
	chatID int64
	text   string
	opts   MessageOptions
}

func (b *recordingBot) SendMessageWithOptions(_ context.Context, chatID int64, text string, opts MessageOptions) (int, error) {
	b.chatID, b.text, b.opts = chatID, text, opts
	return 42, nil
}

func (b *recordingBot) Username() string { return "alerts_bot" }

func TestMessageBuilder(t *testing.T) {
	bot := &recordingBot{}

	id, err := NewMessage(123, "heartbeat").SilentIf(true).NoPreview().Send(context.Background(), bot)
	require.NoError(t, err)

	assert.Equal(t, 42, id)
	assert.Equal(t, int64(123), bot.chatID)
	assert.True(t, bot.opts.DisableNotification)
	assert.True(t, bot.opts.DisableWebPagePreview)
	assert.Empty(t, bot.opts.ParseMode)

	assert.Equal(t, "HTML", NewMessage(1, "x").WithHTML().Build().ParseMode)
}

func TestEscapeAndTruncate(t *testing.T) {
	assert.Equal(t, `1\.0852 \(BUY\)`, Escape("1.0852 (BUY)"))

	long := strings.Repeat("é", MaxMessageLength+10)
	out := Truncate(long)
	assert.Equal(t, MaxMessageLength, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "short", Truncate("short"))
}

func TestAPIError(t *testing.T) {
	err := &APIError{Code: 403, Message: "Forbidden: bot was blocked by the user", ChatID: 7}

	assert.True(t, err.Permanent())
	assert.Equal(t, 403, err.StatusCode())
	assert.Contains(t, err.Error(), "chat 7")
	assert.False(t, (&APIError{Code: 429}).Permanent())
}
