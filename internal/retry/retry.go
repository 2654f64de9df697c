// Package retry re-attempts upstream calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	initialInterval = 500 * time.Millisecond
	maxInterval     = 10 * time.Second
)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

type temporary interface {
	Temporary() bool
}

// Do calls op until it succeeds, returns a Permanent error, ctx is done or
// retries additional attempts have been spent. The last error is returned.
// Errors that report Temporary() == false are not retried.
func Do(ctx context.Context, retries int, op func() error) error {
	if retries < 0 {
		retries = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0

	attempt := func() error {
		err := op()
		var t temporary
		if err != nil && errors.As(err, &t) && !t.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
}
