// Package retry runs an operation with backoff until it succeeds, the error
// is permanent, or the context ends.
package retry

import (
	"context"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"alertbus/pkg/errors"
)

// Strategy defines the backoff curve
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
)

// Config contains retry configuration
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     Strategy
	Multiplier   float64 // For exponential backoff

	// Retryable overrides the default classification
	Retryable func(error) bool
}

// DefaultConfig returns the defaults used for chat delivery
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

// RetryAfter is implemented by errors that carry a server-provided wait time
type RetryAfter interface {
	RetryAfter() time.Duration
}

// Middleware retries operations with backoff
type Middleware struct {
	config Config
}

// New creates a retry middleware. Zero fields take defaults; MaxRetries < 0 disables retries.
func New(config Config) *Middleware {
	def := DefaultConfig()
	if config.MaxRetries == 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = def.Multiplier
	}
	if config.Strategy == "" {
		config.Strategy = def.Strategy
	}
	if config.Retryable == nil {
		config.Retryable = IsRetryable
	}
	return &Middleware{config: config}
}

// Do executes fn until it succeeds or retries are exhausted
func (m *Middleware) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !m.config.Retryable(err) || attempt == m.config.MaxRetries {
			break
		}

		delay := m.delay(attempt, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(lastErr, "retry cancelled")
		case <-timer.C:
		}
	}

	return lastErr
}

func (m *Middleware) delay(attempt int, err error) time.Duration {
	var ra RetryAfter
	if errors.As(err, &ra) && ra.RetryAfter() > 0 {
		return min(ra.RetryAfter(), m.config.MaxDelay)
	}

	var delay time.Duration
	switch m.config.Strategy {
	case StrategyExponential:
		delay = time.Duration(float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt)))
	case StrategyLinear:
		delay = m.config.InitialDelay * time.Duration(1+attempt)
	default:
		delay = m.config.InitialDelay
	}
	return min(delay, m.config.MaxDelay)
}

var retryableMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"temporary failure",
	"too many requests",
	"rate limit",
}

// IsRetryable classifies transient network and HTTP failures
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var httpErr interface{ StatusCode() int }
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode()
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, s := range retryableMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
