package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"alertbus/pkg/errors"
)

type statusErr struct {
	code  int
	after time.Duration
}

func (e statusErr) Error() string { return "telegram api error" }
func (e statusErr) StatusCode() int { return e.code }
func (e statusErr) RetryAfter() time.Duration { return e.after }

func fast() Config {
	return Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	calls := 0
	err := New(fast()).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr{code: 502}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := New(fast()).Do(context.Background(), func(context.Context) error {
		calls++
		return statusErr{code: 403}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := New(fast()).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection reset by peer")
	})

	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 4, calls)
}

func TestDo_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	calls := 0
	err := New(cfg).Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return statusErr{code: 500}
	})

	assert.ErrorContains(t, err, "retry cancelled")
	assert.Equal(t, 1, calls)
}

func TestDelay(t *testing.T) {
	m := New(Config{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second})

	assert.Equal(t, 100*time.Millisecond, m.delay(0, errors.New("x")))
	assert.Equal(t, 400*time.Millisecond, m.delay(2, errors.New("x")))
	assert.Equal(t, time.Second, m.delay(10, errors.New("x")))
	assert.Equal(t, 700*time.Millisecond, m.delay(0, statusErr{code: 429, after: 700 * time.Millisecond}))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(statusErr{code: 429}))
	assert.False(t, IsRetryable(statusErr{code: 400}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
	assert.False(t, IsRetryable(nil))
}
