package driver

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// transientMarkers are the error codes and fragments that identify a
// connection-class failure worth retrying: socket errors, Postgres admin
// shutdown/crash/cannot-connect codes, and MySQL connection loss.
var transientMarkers = []string{
	"ECONNREFUSED",
	"ETIMEDOUT",
	"ECONNRESET",
	"EPIPE",
	"ENOTCONN",
	"57P01",
	"57P02",
	"57P03",
	"PROTOCOL_CONNECTION_LOST",
	"ER_CON_COUNT_ERROR",
}

// RetryOptions configures the exponential-backoff retry wrapper.
type RetryOptions struct {
	// MaxAttempts is the total number of tries; zero means 3.
	MaxAttempts int
	// BaseDelay is the first backoff interval; zero means 100ms.
	BaseDelay time.Duration
	// MaxDelay caps the backoff; zero means 5s.
	MaxDelay time.Duration
	// RetryOn extends the transient marker set.
	RetryOn []string
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 5 * time.Second
	}
	return o
}

// IsTransient reports whether err matches the transient marker set plus any
// caller-supplied extensions.
func IsTransient(err error, extra ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	for _, marker := range extra {
		if marker != "" && strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry runs op, retrying transient failures with exponential backoff:
// delay n is min(base·2ⁿ, max) plus up to 10% jitter. After the last allowed
// attempt the original error surfaces unchanged.
func WithRetry(ctx context.Context, opts RetryOptions, op func() error) error {
	opts = opts.withDefaults()

	var err error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsTransient(err, opts.RetryOn...) {
			return err
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}
		if sleepErr := sleepCtx(ctx, backoffDelay(opts, attempt)); sleepErr != nil {
			return err
		}
	}
	return err
}

func backoffDelay(opts RetryOptions, attempt int) time.Duration {
	delay := opts.BaseDelay << uint(attempt)
	if delay > opts.MaxDelay || delay <= 0 {
		delay = opts.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	return delay + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
