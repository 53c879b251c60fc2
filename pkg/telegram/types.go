package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Bot abstracts the Telegram Bot API calls the alert bus needs
type Bot interface {
	// SendMessageWithOptions sends a text message and returns its message id
	SendMessageWithOptions(ctx context.Context, chatID int64, text string, opts MessageOptions) (int, error)

	// Username returns the bot account name
	Username() string
}

// MessageOptions defines options for sending messages
type MessageOptions struct {
	// ParseMode (Markdown, HTML, MarkdownV2); empty sends plain text
	ParseMode string

	// DisableWebPagePreview disables link previews
	DisableWebPagePreview bool

	// DisableNotification sends message silently
	DisableNotification bool
}

// APIError is a failed Bot API call
type APIError struct {
	Code    int
	Message string
	Wait    time.Duration // flood-control wait requested by Telegram
	ChatID  int64
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d for chat %d: %s", e.Code, e.ChatID, e.Message)
}

// StatusCode exposes the HTTP-like error code for retry classification
func (e *APIError) StatusCode() int {
	return e.Code
}

// RetryAfter is the wait before the next attempt
func (e *APIError) RetryAfter() time.Duration {
	return e.Wait
}

// Permanent reports whether resending cannot succeed (blocked bot, bad chat)
func (e *APIError) Permanent() bool {
	switch e.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
