package fetch

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Default retry behaviour.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffFactor = 1 * time.Second

	// maxRetryAfter caps how long a server-provided Retry-After may stall us.
	maxRetryAfter = 30 * time.Second
)

// DefaultRetryableStatus is the set of response codes worth retrying.
var DefaultRetryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Outcome is what one attempt reports back to Policy.Do.
type Outcome struct {
	// StatusCode is zero when no response was received.
	StatusCode int

	// RetryAfter is the server-requested delay, zero if none.
	RetryAfter time.Duration

	// Err is the transport error of the attempt, if any.
	Err error
}

// Policy describes when and how often an operation is retried.
type Policy struct {
	MaxAttempts     int
	BackoffFactor   time.Duration
	RetryableStatus map[int]bool

	// Sleep waits between attempts; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns three attempts with a one-second backoff factor.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		BackoffFactor:   DefaultBackoffFactor,
		RetryableStatus: DefaultRetryableStatus,
		Sleep:           sleepCtx,
	}
}

// Backoff returns the delay before retry n (n >= 1): factor * 2^(n-1).
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.BackoffFactor << (n - 1)
}

// retryable reports whether another attempt could change the outcome.
func (p Policy) retryable(o Outcome) bool {
	if o.Err != nil {
		return isTransient(o.Err)
	}
	return p.RetryableStatus[o.StatusCode]
}

// Do calls attempt until it succeeds, fails permanently, the attempts are
// exhausted or ctx ends. It returns the last outcome and the number of
// attempts made. attempt receives its 1-based attempt number.
func (p Policy) Do(ctx context.Context, attempt func(ctx context.Context, n int) Outcome) (Outcome, int) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var last Outcome
	for n := 1; ; n++ {
		last = attempt(ctx, n)
		if n >= maxAttempts || !p.retryable(last) {
			return last, n
		}

		wait := p.Backoff(n)
		if last.RetryAfter > wait {
			wait = min(last.RetryAfter, maxRetryAfter)
		}
		if err := sleep(ctx, wait); err != nil {
			return last, n
		}
	}
}

// retryAfterDuration parses a Retry-After header given in seconds or as an
// HTTP date. It returns zero when the header is absent or malformed.
func retryAfterDuration(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
