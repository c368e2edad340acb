package infra

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"dictation/internal/domain"
)

// RetryContext describes the state of one Execute call. It is handed to
// Strategy.OnRetry before each backoff sleep and never outlives the call.
type RetryContext struct {
	Attempt     int
	MaxAttempts int
	LastError   error
	NextDelay   time.Duration
}

// Strategy holds the retry configuration of one provider.
type Strategy struct {
	Name           string
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration
	Retryable      func(error) bool
	OnRetry        func(RetryContext)
}

// CloudStrategy returns the default strategy for network providers.
func CloudStrategy(name string) Strategy {
	return Strategy{
		Name:           name,
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		Multiplier:     2.0,
		AttemptTimeout: 30 * time.Second,
		Retryable:      DefaultRetryable,
	}
}

// LocalStrategy runs the operation exactly once under a timeout: local
// inference failures are not transient.
func LocalStrategy(timeout time.Duration) Strategy {
	return Strategy{
		Name:           "local",
		MaxAttempts:    1,
		AttemptTimeout: timeout,
		Retryable:      func(error) bool { return false },
	}
}

// DefaultRetryable retries network and server failures only.
func DefaultRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return de.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Delay returns the wait before the attempt following attempt n (1-based).
func (s Strategy) Delay(attempt int) time.Duration {
	mult := s.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(s.BaseDelay) * math.Pow(mult, float64(attempt-1)))
}

// Execute runs op until it succeeds, the strategy gives up or ctx is done.
// The final error is returned unchanged; callers classify it.
func Execute[T any](ctx context.Context, s Strategy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryable := s.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := runAttempt(ctx, s, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts || !retryable(err) {
			break
		}

		delay := s.Delay(attempt)
		if s.OnRetry != nil {
			s.OnRetry(RetryContext{
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
				LastError:   err,
				NextDelay:   delay,
			})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, s Strategy, op func(ctx context.Context) (T, error)) (T, error) {
	if s.AttemptTimeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.AttemptTimeout)
	defer cancel()

	result, err := op(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		var de *domain.Error
		if !errors.As(err, &de) {
			err = &domain.Error{Kind: domain.KindNetwork, Provider: s.Name, Message: "request timed out", Cause: err}
		}
	}
	return result, err
}
