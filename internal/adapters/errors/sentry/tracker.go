package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"alertbus/pkg/errors"
)

const flushTimeout = 2 * time.Second

type ctxKey string

// DispatchIDKey carries the dispatch correlation id into captured events
const DispatchIDKey ctxKey = "dispatch_id"

// Tracker reports errors and threshold violations to Sentry
type Tracker struct {
	hub *sentry.Hub
}

// New initializes the Sentry client for the given DSN
func New(dsn, environment, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry init")
	}

	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError sends an error with tags
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.scoped(ctx, tags, sentry.LevelError)
	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message, e.g. a threshold violation
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.scoped(ctx, tags, convertLevel(level))
	hub.CaptureMessage(message)
	return nil
}

// AddBreadcrumb records a trail entry attached to the next captured event
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:  message,
		Category: category,
		Level:    convertLevel(level),
		Data:     data,
	}, nil)
}

// Flush waits for pending events
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !t.hub.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

func (t *Tracker) scoped(ctx context.Context, tags map[string]string, level sentry.Level) *sentry.Hub {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if id, ok := ctx.Value(DispatchIDKey).(string); ok {
			scope.SetTag("dispatch_id", id)
		}
		scope.SetLevel(level)
	})
	return hub
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelInfo:
		return sentry.LevelInfo
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}

var _ errors.Tracker = (*Tracker)(nil)
