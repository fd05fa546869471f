// Package retry wraps flaky operations in a fixed number of attempts with a
// linearly growing pause between them. Nothing in the store or the clients
// retries on its own; callers opt in by wrapping a call in Do.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

// Linear waits delay, 2*delay, 3*delay... between attempts.
type Linear struct {
	Delay   time.Duration
	attempt int64
}

func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.Delay
}

func (l *Linear) Reset() {
	l.attempt = 0
}

// Notify is called before each pause with the error that caused it.
type Notify func(err error, wait time.Duration)

// Do runs fn up to attempts times. Validation errors are returned at once.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return DoNotify(ctx, attempts, delay, fn, nil)
}

// DoNotify is Do with a hook that observes every failed attempt.
func DoNotify(ctx context.Context, attempts int, delay time.Duration, fn func() error, notify Notify) error {
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&Linear{Delay: delay}, uint64(attempts-1)),
		ctx,
	)

	op := func() error {
		err := fn()
		if err != nil && apperrors.IsCode(err, apperrors.ErrValidation) {
			return backoff.Permanent(err)
		}
		return err
	}

	if notify == nil {
		return backoff.Retry(op, policy)
	}
	return backoff.RetryNotify(op, policy, backoff.Notify(notify))
}
