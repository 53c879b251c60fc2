package telegram

import (
	"context"
	"sort"
	"strconv"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
	"alertbus/pkg/retry"
	"alertbus/pkg/telegram"
)

// Directory resolves route targets into Telegram chat ids
type Directory struct {
	// Named maps bot names, user names and chat aliases to chat ids
	Named map[string]int64
	// Groups maps group names to chat ids
	Groups map[string]int64
	// Broadcast lists extra chats reached by broadcast targets
	Broadcast []int64
}

// Resolve returns the chat ids for a target. Numeric ids are accepted for
// chat and user targets without a directory entry.
func (d Directory) Resolve(target alert.RouteTarget) ([]int64, error) {
	switch target.Kind {
	case alert.TargetBroadcast:
		return d.all(), nil
	case alert.TargetGroup:
		if id, ok := d.Groups[target.ID]; ok {
			return []int64{id}, nil
		}
	case alert.TargetBot, alert.TargetChat, alert.TargetUser:
		if id, ok := d.Named[target.ID]; ok {
			return []int64{id}, nil
		}
		if target.Kind != alert.TargetBot {
			if id, err := strconv.ParseInt(target.ID, 10, 64); err == nil {
				return []int64{id}, nil
			}
		}
	}
	return nil, errors.Wrapf(errors.ErrUnknownTarget, "%s", target)
}

// all returns every distinct chat id known to the directory, sorted
func (d Directory) all() []int64 {
	seen := make(map[int64]struct{})
	add := func(id int64) { seen[id] = struct{}{} }
	for _, id := range d.Named {
		add(id)
	}
	for _, id := range d.Groups {
		add(id)
	}
	for _, id := range d.Broadcast {
		add(id)
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChatChannel delivers formatted alerts to Telegram chats
type ChatChannel struct {
	bot       telegram.Bot
	directory Directory
	retry     *retry.Middleware
	log       *logger.Logger
}

// NewChatChannel creates the chat delivery channel
func NewChatChannel(bot telegram.Bot, directory Directory, retries int, log *logger.Logger) *ChatChannel {
	if log == nil {
		log = logger.Get()
	}
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = retries
	if retries <= 0 {
		cfg.MaxRetries = -1
	}
	cfg.Retryable = retryable

	return &ChatChannel{
		bot:       bot,
		directory: directory,
		retry:     retry.New(cfg),
		log:       log.With("component", "telegram_chat"),
	}
}

func retryable(err error) bool {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Permanent()
	}
	return retry.IsRetryable(err)
}

// Send delivers text to every chat the target resolves to. Silent messages
// are sent without a notification sound. The target fails only when no chat
// received the message.
func (c *ChatChannel) Send(ctx context.Context, target alert.RouteTarget, text string, silent bool) error {
	chats, err := c.directory.Resolve(target)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		return errors.Wrapf(errors.ErrNoTargets, "%s", target)
	}

	opts := telegram.NewMessage(0, text).SilentIf(silent).NoPreview().Build()

	var errs errors.MultiError
	delivered := 0
	for _, chatID := range chats {
		err := c.retry.Do(ctx, func(ctx context.Context) error {
			_, err := c.bot.SendMessageWithOptions(ctx, chatID, text, opts)
			return err
		})
		if err != nil {
			c.log.Warnw("Telegram delivery failed", "target", target.String(), "chat_id", chatID, "error", err)
			errs.Add(err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errs.ToError()
	}
	if errs.HasErrors() {
		c.log.Debugw("Partial broadcast delivery", "target", target.String(), "delivered", delivered, "failed", len(errs.Errors))
	}
	return nil
}
