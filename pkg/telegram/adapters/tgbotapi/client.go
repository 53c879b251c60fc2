package tgbotapi

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
	"alertbus/pkg/telegram"
)

// Bot implements telegram.Bot on top of go-telegram-bot-api
type Bot struct {
	api         *tgbotapi.BotAPI
	log         *logger.Logger
	rateLimiter *rate.Limiter
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	Debug          bool
	HTTPTimeout    time.Duration
	RateLimitBurst int     // default 30
	RateLimitRate  float64 // messages per second, default 30 (Bot API global limit)
}

// NewBot authorizes the token and returns a rate-limited bot
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 30
	}
	if log == nil {
		log = logger.Get()
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	log.Infow("Authorized telegram bot", "username", api.Self.UserName)

	return &Bot{
		api:         api,
		log:         log.With("component", "telegram_bot"),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
	}, nil
}

// Username returns the bot account name
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendMessageWithOptions sends a message, waiting on the rate limiter within ctx
func (b *Bot) SendMessageWithOptions(ctx context.Context, chatID int64, text string, opts telegram.MessageOptions) (int, error) {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(err, "rate limiter")
	}

	msg := tgbotapi.NewMessage(chatID, telegram.Truncate(text))
	msg.ParseMode = opts.ParseMode
	msg.DisableWebPagePreview = opts.DisableWebPagePreview
	msg.DisableNotification = opts.DisableNotification

	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Debugw("Failed to send message", "chat_id", chatID, "error", err)
		return 0, convertError(chatID, err)
	}
	return sent.MessageID, nil
}

func convertError(chatID int64, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &telegram.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Wait:    time.Duration(apiErr.RetryAfter) * time.Second,
			ChatID:  chatID,
		}
	}
	return errors.Wrap(err, "failed to send telegram message")
}

// Verify Bot implements telegram.Bot interface at compile time
var _ telegram.Bot = (*Bot)(nil)
