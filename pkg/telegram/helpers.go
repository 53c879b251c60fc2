package telegram

import (
	"context"
	"fmt"
	"strings"
)

// MessageBuilder provides a fluent API for building messages
type MessageBuilder struct {
	chatID int64
	text   string
	opts   MessageOptions
}

// NewMessage creates a plain-text message builder
func NewMessage(chatID int64, text string) *MessageBuilder {
	return &MessageBuilder{chatID: chatID, text: text}
}

// WithMarkdown sets parse mode to Markdown
func (mb *MessageBuilder) WithMarkdown() *MessageBuilder {
	mb.opts.ParseMode = "Markdown"
	return mb
}

// WithHTML sets parse mode to HTML
func (mb *MessageBuilder) WithHTML() *MessageBuilder {
	mb.opts.ParseMode = "HTML"
	return mb
}

// Silent sends the message without a notification sound
func (mb *MessageBuilder) Silent() *MessageBuilder {
	mb.opts.DisableNotification = true
	return mb
}

// SilentIf is Silent when cond holds
func (mb *MessageBuilder) SilentIf(cond bool) *MessageBuilder {
	mb.opts.DisableNotification = cond
	return mb
}

// NoPreview disables link previews
func (mb *MessageBuilder) NoPreview() *MessageBuilder {
	mb.opts.DisableWebPagePreview = true
	return mb
}

// Build returns the message options
func (mb *MessageBuilder) Build() MessageOptions {
	return mb.opts
}

// Send sends the message with the given bot
func (mb *MessageBuilder) Send(ctx context.Context, bot Bot) (int, error) {
	return bot.SendMessageWithOptions(ctx, mb.chatID, mb.text, mb.opts)
}

// Bold formats text as bold (Markdown)
func Bold(text string) string {
	return fmt.Sprintf("*%s*", text)
}

// Code formats text as code (Markdown)
func Code(text string) string {
	return fmt.Sprintf("`%s`", text)
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// Escape escapes MarkdownV2 special characters
func Escape(text string) string {
	return markdownEscaper.Replace(text)
}

// MaxMessageLength is the Bot API limit for one text message
const MaxMessageLength = 4096

// Truncate shortens text to the Bot API limit, counting runes
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return text
	}
	return string(runes[:MaxMessageLength-3]) + "..."
}
