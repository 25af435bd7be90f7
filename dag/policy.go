package dag

import (
	"context"
	"time"
)

// RetryPolicy retries a node's agent on failure with a fixed back-off
// between attempts; the counter is local to one Execute call and never
// crosses turn boundaries, per spec §4.7.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Policies bundles the three node-wrapping policies spec §4.7 describes,
// for use with WithPolicies. Any field left at its zero value is skipped.
type Policies[I, O any] struct {
	Retry    *RetryPolicy
	Timeout  time.Duration
	Fallback Agent[I, O]
}

// WithRetry retries agent up to maxAttempts times, waiting backoff between
// attempts, returning the last error if every attempt fails.
func WithRetry[I, O any](agent Agent[I, O], maxAttempts int, backoff time.Duration) Agent[I, O] {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return func(ctx context.Context, in I) (O, error) {
		var lastErr error
		for attempt := 0; attempt < maxAttempts; attempt++ {
			out, err := agent(ctx, in)
			if err == nil {
				return out, nil
			}
			lastErr = err
			if attempt == maxAttempts-1 {
				break
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				var zero O
				return zero, ctx.Err()
			}
		}
		var zero O
		return zero, lastErr
	}
}

// WithTimeout fails with *TimeoutError if agent does not complete within d.
// Cancellation of the inner call is best-effort: ctx is cancelled on
// timeout, but the goroutine running agent is not forcibly stopped, per
// spec §4.7 ("Cancellation of the inner call is best-effort").
func WithTimeout[I, O any](agent Agent[I, O], d time.Duration) Agent[I, O] {
	return func(ctx context.Context, in I) (O, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			out O
			err error
		}
		done := make(chan result, 1)
		go func() {
			out, err := agent(ctx, in)
			done <- result{out, err}
		}()

		select {
		case r := <-done:
			return r.out, r.err
		case <-ctx.Done():
			var zero O
			return zero, &TimeoutError{Duration: d}
		}
	}
}

// WithFallback invokes alternate with the same input if primary fails.
func WithFallback[I, O any](primary, alternate Agent[I, O]) Agent[I, O] {
	return func(ctx context.Context, in I) (O, error) {
		out, err := primary(ctx, in)
		if err == nil {
			return out, nil
		}
		return alternate(ctx, in)
	}
}

// WithPolicies composes retry, timeout and fallback around agent in the
// fixed order spec §4.7 requires: retry innermost, then timeout, then
// fallback outermost, so a fallback only fires once every retry attempt
// (each individually timeout-bounded) has been exhausted.
func WithPolicies[I, O any](agent Agent[I, O], p Policies[I, O]) Agent[I, O] {
	wrapped := agent
	if p.Retry != nil {
		wrapped = WithRetry(wrapped, p.Retry.MaxAttempts, p.Retry.Backoff)
	}
	if p.Timeout > 0 {
		wrapped = WithTimeout(wrapped, p.Timeout)
	}
	if p.Fallback != nil {
		wrapped = WithFallback(wrapped, p.Fallback)
	}
	return wrapped
}
