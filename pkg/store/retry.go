package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// retryPolicy bounds how long opening a networked store may keep trying
type retryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

var connectPolicy = retryPolicy{Attempts: 4, Backoff: 250 * time.Millisecond, MaxBackoff: 2 * time.Second}

// withRetry runs fn until it succeeds, fails permanently, or the attempts run out.
// The delay doubles after each transient failure.
func withRetry(ctx context.Context, p retryPolicy, fn func(context.Context) error) error {
	var lastErr error
	backoff := p.Backoff
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "retry cancelled")
		}
		lastErr = fn(ctx)
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return errors.Wrapf(lastErr, "gave up after %d attempts", p.Attempts)
}

var transientErrors = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"the database system is starting up",
	"eof",
	"broken pipe",
}

// isTransient reports whether err looks like a network hiccup worth retrying
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range transientErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
